package domain

import "time"

// User is owned by the user directory. The gateway reads display attributes
// and mutates only the presence fields.
//
// Invariant: Online == true iff AnchorSessionID refers to a currently
// registered live session of this user. Exactly one session is tracked as
// the presence anchor even when several are open.
type User struct {
	ID              string
	Name            string
	Email           string
	Avatar          string
	PasswordHash    string
	Roles           []string
	Online          bool
	AnchorSessionID string
	CreatedAt       time.Time
}

// Profile is the public projection of a User, safe to return to other users.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Online bool   `json:"online"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Online: u.Online}
}
