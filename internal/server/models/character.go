package models

import (
	"time"

	"github.com/google/uuid"
)

// Character is a game profile owned by a User.
type Character struct {
	UUID      uuid.UUID
	Name      string
	OwnerID   int64
	Model     ModelType
	Textures  map[TextureSlot]string // slot -> texture hash
	CreatedAt time.Time
}

// UploadableSlots lists the texture slots a character may change.
func (c *Character) UploadableSlots() []TextureSlot {
	return AllTextureSlots
}

func (c *Character) CanUpload(slot TextureSlot) bool {
	for _, s := range c.UploadableSlots() {
		if s == slot {
			return true
		}
	}
	return false
}
