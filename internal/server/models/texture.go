package models

import (
	"fmt"
	"strings"
)

// ModelType is the arm model of a skin.
type ModelType string

const (
	ModelDefault ModelType = "default"
	ModelSlim    ModelType = "slim"
)

// ParseModelType maps the upload "model" field to a ModelType. Anything
// other than "slim" selects the default model.
func ParseModelType(s string) ModelType {
	if s == string(ModelSlim) {
		return ModelSlim
	}
	return ModelDefault
}

// TextureSlot is the closed set of texture kinds a character can wear.
type TextureSlot int

const (
	SlotSkin TextureSlot = iota
	SlotCape
	SlotElytra
)

var AllTextureSlots = []TextureSlot{SlotSkin, SlotCape, SlotElytra}

type slotInfo struct {
	name     string
	metadata func(c *Character) map[string]string
}

var slots = map[TextureSlot]slotInfo{
	SlotSkin: {name: "skin", metadata: func(c *Character) map[string]string {
		model := c.Model
		if model == "" {
			model = ModelDefault
		}
		return map[string]string{"model": string(model)}
	}},
	SlotCape:   {name: "cape"},
	SlotElytra: {name: "elytra"},
}

func (s TextureSlot) info() slotInfo {
	i, ok := slots[s]
	if !ok {
		panic(fmt.Sprintf("unknown texture slot %d", int(s)))
	}
	return i
}

// String is the lowercase name used in URLs and the uploadableTextures property.
func (s TextureSlot) String() string {
	return s.info().name
}

// WireName is the key used in the textures payload, e.g. "SKIN".
func (s TextureSlot) WireName() string {
	return strings.ToUpper(s.info().name)
}

// Metadata returns the per-slot metadata for c, or nil when the slot has none.
func (s TextureSlot) Metadata(c *Character) map[string]string {
	if f := s.info().metadata; f != nil {
		return f(c)
	}
	return nil
}

// ParseTextureSlot accepts slot names case-insensitively.
func ParseTextureSlot(s string) (TextureSlot, error) {
	for _, slot := range AllTextureSlots {
		if strings.EqualFold(s, slot.String()) {
			return slot, nil
		}
	}
	return 0, fmt.Errorf("unknown texture slot %q", s)
}

// Texture is a decoded, content-addressed image.
type Texture struct {
	Hash string
	Data []byte
}
