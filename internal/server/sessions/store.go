// Package sessions keeps pending server joins: a client that joined a game
// server leaves a short-lived record which the game server consumes when it
// asks whether that player has joined.
package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("join record not found")

// Join is what the client announced when joining a server.
type Join struct {
	AccessToken   string    `json:"access_token"`
	CharacterUUID uuid.UUID `json:"character_uuid"`
	CharacterName string    `json:"character_name"`
	UserID        int64     `json:"user_id"`
	IP            string    `json:"ip,omitempty"`
}

// Store holds joins keyed by server id. Take removes the record it returns,
// so each join can be verified once.
type Store interface {
	Put(ctx context.Context, serverID string, j *Join) error
	Take(ctx context.Context, serverID string) (*Join, error)
	Count(ctx context.Context) (int, error)
}
