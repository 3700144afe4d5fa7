//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"dm-gateway/domain"
	apperrors "dm-gateway/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MessageRepository persists the append-only direct-message log in BadgerDB.
//
// Primary keys are formatted "dm:{pair}:{timestamp_padded}:{uuid}" to:
//  1. Group both directions of a conversation under one prefix (pair key is
//     direction independent).
//  2. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order), with the UUID as a collision disconnector if
//     two messages land on the same nanosecond.
//
// A secondary index "dmid:{uuid}" points at the primary key so delivery and
// read flags can be set without knowing the conversation.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Delivered bool      `json:"delivered"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const maxTimestampPad = "9999999999999999999"

func primaryKey(pair string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("dm:%s:%019d:%s", pair, at.UnixNano(), id))
}

func indexKey(id uuid.UUID) []byte {
	return []byte("dmid:" + id.String())
}

// Append assigns the message identity and timestamps, then writes the record
// and its id index in a single transaction. The returned Message is the
// durable source of truth handed back to the sender as acknowledgement.
func (m MessageRepository) Append(ctx context.Context, from, to, text string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:        uuid.New(),
		From:      from,
		To:        to,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	bytes, err := json.Marshal(fromDomain(msg))
	if err != nil {
		return domain.Message{}, err
	}

	key := primaryKey(domain.PairKey(from, to), msg.CreatedAt, msg.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(indexKey(msg.ID), key)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Conversation retrieves up to limit messages between a and b, newest first,
// optionally restricted to strictly before the given time. Thanks to the
// padded timestamp in the key a reverse prefix scan yields descending
// creation order without any in-memory sort.
func (m MessageRepository) Conversation(ctx context.Context, a, b string, before *time.Time, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("dm:%s:", domain.PairKey(a, b)))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse Seek positions on the greatest key <= seekKey. Real keys
		// carry ":{uuid}" after the timestamp, so seeking the bare padded
		// timestamp excludes messages created exactly at `before`.
		seekKey := append(append([]byte{}, prefix...), []byte(maxTimestampPad)...)
		if before != nil {
			seekKey = append(append([]byte{}, prefix...), []byte(fmt.Sprintf("%019d", before.UnixNano()))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(raw) == limit {
				m.log.Debug(fmt.Sprintf("Conversation page limit of %d reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, bytes := range raw {
		var dm diskMessage
		if err = json.Unmarshal(bytes, &dm); err != nil {
			return nil, err
		}
		msg, err := toDomain(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// MarkDelivered flags a message as handed to at least one recipient session.
func (m MessageRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return m.setFlag(ctx, id, func(dm *diskMessage) { dm.Delivered = true })
}

// MarkSeen flags a message as read by the recipient.
func (m MessageRepository) MarkSeen(ctx context.Context, id uuid.UUID) error {
	return m.setFlag(ctx, id, func(dm *diskMessage) { dm.Seen = true })
}

// setFlag resolves the id index and rewrites the record with the flag set.
// The read and write happen in one transaction so concurrent flag updates
// never lose each other.
func (m MessageRepository) setFlag(ctx context.Context, id uuid.UUID, mutate func(*diskMessage)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(id))
		if err != nil {
			return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, id)
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		record, err := txn.Get(key)
		if err != nil {
			return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, id)
		}

		var dm diskMessage
		err = record.Value(func(value []byte) error {
			return json.Unmarshal(value, &dm)
		})
		if err != nil {
			return err
		}

		mutate(&dm)
		dm.UpdatedAt = time.Now().UTC()

		bytes, err := json.Marshal(dm)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
}

func fromDomain(msg domain.Message) diskMessage {
	return diskMessage{
		ID:        msg.ID.String(),
		From:      msg.From,
		To:        msg.To,
		Text:      msg.Text,
		Delivered: msg.Delivered,
		Seen:      msg.Seen,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
}

func toDomain(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		From:      dm.From,
		To:        dm.To,
		Text:      dm.Text,
		Delivered: dm.Delivered,
		Seen:      dm.Seen,
		CreatedAt: dm.CreatedAt.UTC(),
		UpdatedAt: dm.UpdatedAt.UTC(),
	}, nil
}

// Newest returns the most recent message of a conversation, if any.
// Used by the viewer CLI to summarize conversations.
func (m MessageRepository) Newest(ctx context.Context, a, b string) (*domain.Message, error) {
	messages, err := m.Conversation(ctx, a, b, nil, 1)
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return lo.ToPtr(messages[0]), nil
}
