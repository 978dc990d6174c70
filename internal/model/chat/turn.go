package chat

import "time"

// Turn is one user/assistant exchange recorded in the session history.
type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	CreatedAt time.Time `json:"createdAt"`
}
