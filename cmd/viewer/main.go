// Viewer is a small operator CLI: log in, list users, and print the recent
// history of one conversation as a table.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"dm-gateway/client"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	NatsURL        string        `env:"NATS_URL,default=nats://localhost:4222"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=5s"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Viewer error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	with := flag.String("with", "", "user id to show the conversation with")
	limit := flag.Int("limit", 20, "messages per page")
	flag.Parse()

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if *email == "" || *password == "" {
		return exitConfig, fmt.Errorf("both -email and -password are required")
	}

	c, err := client.New(config.NatsURL, "dm-gateway-viewer", config.RequestTimeout)
	if err != nil {
		return exitRuntime, err
	}
	defer c.Close()

	reply, err := c.Login(*email, *password)
	if err != nil {
		return exitRuntime, fmt.Errorf("login failed: %w", err)
	}
	color.Green.Printf("Logged in as %s\n", reply.UserID)

	if *with == "" {
		return exitOK, printUsers(c)
	}
	return exitOK, printConversation(c, *with, *limit)
}

func printUsers(c *client.Client) error {
	reply, err := c.ListUsers("", 100, 1)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Online"})
	for _, u := range reply.Users {
		online := color.Red.Render("offline")
		if u.Online {
			online = color.Green.Render("online")
		}
		table.Append([]string{u.ID, u.Name, online})
	}
	table.Render()
	fmt.Printf("%d users total\n", reply.Meta.Total)
	return nil
}

func printConversation(c *client.Client, otherUserID string, limit int) error {
	reply, err := c.History(otherUserID, limit, "")
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "From", "Text", "Seen"})
	for _, m := range reply.Messages {
		seen := ""
		if m.Seen {
			seen = "x"
		}
		table.Append([]string{m.CreatedAt.Format(time.RFC3339), m.From, m.Text, seen})
	}
	table.Render()
	return nil
}
