// Package client is a thin NATS client for the gateway, used by the viewer
// CLI and the e2e suite. It mirrors the transport wire types.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"dm-gateway/transport"

	"github.com/nats-io/nats.go"
)

type Client struct {
	nc      *nats.Conn
	timeout time.Duration

	token     string
	sessionID string
	deliver   *nats.Subscription

	// Events receives everything published on the session's delivery
	// subject once Connect has succeeded.
	Events chan transport.Event
}

func New(url, name string, timeout time.Duration) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc, timeout: timeout, Events: make(chan transport.Event, 64)}, nil
}

func (c *Client) Close() {
	if c.deliver != nil {
		_ = c.deliver.Unsubscribe()
	}
	c.nc.Close()
}

// request sends a JSON request, with the bearer token when one is held, and
// decodes the JSON reply. A reply carrying an error descriptor becomes an
// error here.
func (c *Client) request(subject string, payload, reply any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if c.token != "" {
		msg.Header.Set(transport.HeaderAuthorization, "Bearer "+c.token)
	}

	resp, err := c.nc.RequestMsg(msg, c.timeout)
	if err != nil {
		return err
	}

	var failure transport.Ack
	if json.Unmarshal(resp.Data, &failure) == nil && failure.ErrorCode != "" {
		return fmt.Errorf("%s: %s", failure.ErrorCode, failure.ErrorMessage)
	}
	return json.Unmarshal(resp.Data, reply)
}

func (c *Client) Register(name, email, password string) (transport.AuthReply, error) {
	var reply transport.AuthReply
	err := c.request(transport.SubjectRegister, transport.RegisterRequest{Name: name, Email: email, Password: password}, &reply)
	if err == nil {
		c.token = reply.Token
	}
	return reply, err
}

func (c *Client) Login(email, password string) (transport.AuthReply, error) {
	var reply transport.AuthReply
	err := c.request(transport.SubjectLogin, transport.LoginRequest{Email: email, Password: password}, &reply)
	if err == nil {
		c.token = reply.Token
	}
	return reply, err
}

// UseToken installs an externally obtained credential.
func (c *Client) UseToken(token string) { c.token = token }

// Connect performs the handshake and starts feeding Events from the
// delivery subject.
func (c *Client) Connect() error {
	msg := nats.NewMsg(transport.SubjectConnect)
	if c.token != "" {
		msg.Header.Set(transport.HeaderAuthorization, "Bearer "+c.token)
	}

	resp, err := c.nc.RequestMsg(msg, c.timeout)
	if err != nil {
		return err
	}

	var failure transport.Ack
	if json.Unmarshal(resp.Data, &failure) == nil && failure.ErrorCode != "" {
		return fmt.Errorf("%s: %s", failure.ErrorCode, failure.ErrorMessage)
	}

	var reply transport.ConnectReply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return err
	}
	c.sessionID = reply.SessionID

	c.deliver, err = c.nc.Subscribe(reply.DeliverSubject, func(m *nats.Msg) {
		var evt transport.Event
		if json.Unmarshal(m.Data, &evt) != nil {
			return
		}
		select {
		case c.Events <- evt:
		default:
			// Slow consumer: drop rather than block the NATS callback.
		}
	})
	return err
}

func (c *Client) session(op string) string {
	return "session." + c.sessionID + "." + op
}

func (c *Client) Send(to, text string) (transport.Ack, error) {
	var ack transport.Ack
	body := text
	err := c.request(c.session("send"), transport.SendRequest{To: to, Text: &body}, &ack)
	return ack, err
}

func (c *Client) Typing(to string, typing bool) error {
	data, err := json.Marshal(transport.TypingRequest{To: to, Typing: typing})
	if err != nil {
		return err
	}
	return c.nc.Publish(c.session("typing"), data)
}

func (c *Client) Seen(messageID string) error {
	data, err := json.Marshal(transport.SeenRequest{MessageID: messageID})
	if err != nil {
		return err
	}
	return c.nc.Publish(c.session("seen"), data)
}

func (c *Client) Ping() error {
	return c.nc.Publish(c.session("ping"), nil)
}

// Disconnect closes the session; the connection to NATS stays usable.
func (c *Client) Disconnect() error {
	return c.nc.Publish(c.session("close"), nil)
}

func (c *Client) History(otherUserID string, limit int, before string) (transport.HistoryReply, error) {
	var reply transport.HistoryReply
	err := c.request(transport.SubjectHistory, transport.HistoryRequest{
		OtherUserID: otherUserID,
		Limit:       limit,
		Before:      before,
	}, &reply)
	return reply, err
}

func (c *Client) ListUsers(q string, limit, page int) (transport.ListUsersReply, error) {
	var reply transport.ListUsersReply
	err := c.request(transport.SubjectUsers, transport.ListUsersRequest{Q: q, Limit: limit, Page: page}, &reply)
	return reply, err
}
