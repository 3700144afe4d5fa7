package e2e

import (
	"fmt"
	"time"

	"dm-gateway/client"
	"dm-gateway/transport"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

// BaseSuite dials the gateway through NATS and provisions throwaway users.
// It skips itself entirely when GATEWAY_NATS_URL is not set, so the suite is
// inert under a plain `go test ./...`.
type BaseSuite struct {
	suite.Suite
	Config Config
}

func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.GatewayNatsURL == "" {
		s.T().Skip("GATEWAY_NATS_URL not set, skipping e2e suite")
	}
}

func (s *BaseSuite) step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// NewUser registers a fresh user with a unique email and returns a client
// holding its credential. The caller owns the Close.
func (s *BaseSuite) NewUser(name string) (*client.Client, transport.AuthReply) {
	c, err := client.New(s.Config.GatewayNatsURL, "e2e-"+name, s.Config.RequestTimeout)
	s.Require().NoError(err)

	email := fmt.Sprintf("%s-%s@e2e.example.com", name, uuid.NewString())
	reply, err := c.Register(name, email, "E2ePassword123!")
	s.Require().NoError(err, "Failed to register user "+name)
	s.Require().NotEmpty(reply.Token)
	s.Require().NotEmpty(reply.UserID)
	return c, reply
}

// WaitEvent drains the client's event channel until the predicate matches or
// the event timeout expires.
func (s *BaseSuite) WaitEvent(c *client.Client, what string, match func(transport.Event) bool) transport.Event {
	deadline := time.After(s.Config.EventTimeout)
	for {
		select {
		case evt := <-c.Events:
			if match(evt) {
				return evt
			}
		case <-deadline:
			s.Require().FailNowf("timed out", "No %s event within %v", what, s.Config.EventTimeout)
			return transport.Event{}
		}
	}
}
