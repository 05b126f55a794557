// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account. Players log in with Email (or a character name) and
// own up to MaxCharactersPerUser characters.
type User struct {
	ID           int64     `db:"id"`
	UUID         uuid.UUID `db:"uuid"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`

	Characters []*Character
}

const MaxCharactersPerUser = 3

// Owns reports whether c is one of u's characters.
func (u *User) Owns(c *Character) bool {
	if c == nil {
		return false
	}
	for _, own := range u.Characters {
		if own.UUID == c.UUID {
			return true
		}
	}
	return false
}

// Character returns the user's character with the given id.
func (u *User) Character(id uuid.UUID) (*Character, bool) {
	for _, c := range u.Characters {
		if c.UUID == id {
			return c, true
		}
	}
	return nil, false
}
