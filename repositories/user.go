//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"dm-gateway/domain"
	apperrors "dm-gateway/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// UserRepository is the user directory backed by BadgerDB.
//
// Records live under "user:id:{id}"; "user:email:{email}" is a lookup index
// holding the id. Presence fields are mutated through SetPresence and
// ReleasePresence only, each a single read-modify-write transaction.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

type diskUser struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Avatar          string    `json:"avatar,omitempty"`
	PasswordHash    string    `json:"passwordHash"`
	Roles           []string  `json:"roles"`
	Online          bool      `json:"online"`
	AnchorSessionID string    `json:"anchorSessionId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func userKey(id string) []byte { return []byte("user:id:" + id) }

func emailKey(email string) []byte { return []byte("user:email:" + strings.ToLower(email)) }

// CreateUser persists a new user and returns the generated id.
// The email index is checked inside the transaction so a duplicate
// registration races cleanly into ErrUserAlreadyExists.
func (u *UserRepository) CreateUser(name, email, hashedPassword string) (string, error) {
	newID := uuid.New().String()
	record := diskUser{
		ID:           newID,
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(email), []byte(newID)); err != nil {
			return err
		}
		return txn.Set(userKey(newID), data)
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

func (u *UserRepository) GetUserByEmail(email string) (domain.User, error) {
	var id string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, email)
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return u.GetUserByID(id)
}

func (u *UserRepository) GetUserByID(id string) (domain.User, error) {
	var record diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(record), nil
}

// ListUsers returns a page of users matching q (case-insensitive name
// substring), excluding the requester, plus the total match count.
// Page numbers start at 1.
func (u *UserRepository) ListUsers(excludeID, q string, limit, page int) ([]domain.User, int, error) {
	var matches []domain.User
	needle := strings.ToLower(q)

	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:id:")
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record diskUser
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				if record.ID == excludeID {
					return nil
				}
				if needle != "" && !strings.Contains(strings.ToLower(record.Name), needle) {
					return nil
				}
				matches = append(matches, toDomainUser(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	// Badger iterates in key order (uuid order); present a stable,
	// human-meaningful ordering instead.
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })

	total := len(matches)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

// SetPresence marks the user online and re-points the presence anchor at the
// freshly registered session.
func (u *UserRepository) SetPresence(userID string, anchor domain.SessionID) error {
	return u.mutateUser(userID, func(record *diskUser) {
		record.Online = true
		record.AnchorSessionID = string(anchor)
	})
}

// ReleasePresence clears or re-points the presence anchor when a session
// closes. The write happens only if the closing session is still the one on
// record, tolerating the multi-device disconnect race.
func (u *UserRepository) ReleasePresence(userID string, closing, survivor domain.SessionID) error {
	return u.mutateUser(userID, func(record *diskUser) {
		if record.AnchorSessionID != string(closing) {
			return
		}
		if survivor != "" {
			record.AnchorSessionID = string(survivor)
			return
		}
		record.Online = false
		record.AnchorSessionID = ""
	})
}

func (u *UserRepository) mutateUser(userID string, mutate func(*diskUser)) error {
	return u.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
		}

		var record diskUser
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
		if err != nil {
			return err
		}

		mutate(&record)

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(userKey(userID), data)
	})
}

func toDomainUser(record diskUser) domain.User {
	return domain.User{
		ID:              record.ID,
		Name:            record.Name,
		Email:           record.Email,
		Avatar:          record.Avatar,
		PasswordHash:    record.PasswordHash,
		Roles:           record.Roles,
		Online:          record.Online,
		AnchorSessionID: record.AnchorSessionID,
		CreatedAt:       record.CreatedAt.UTC(),
	}
}
