// Package profiles renders characters and users into the JSON shapes game
// clients expect, including the base64 textures property and its signature.
package profiles

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
)

const (
	PropertyTextures           = "textures"
	PropertyUploadableTextures = "uploadableTextures"
)

// Signer signs a property value, returning the base64 signature.
type Signer interface {
	Sign(value string) (string, error)
}

type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// Profile is a character as returned by the session endpoints. The simple
// form carries no properties.
type Profile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties,omitempty"`
}

// UserInfo is the "user" object of authenticate and refresh responses.
type UserInfo struct {
	ID         string     `json:"id"`
	Properties []Property `json:"properties"`
}

type TextureEntry struct {
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Envelope is the decoded value of the textures property.
type Envelope struct {
	Timestamp   int64                   `json:"timestamp"`
	ProfileID   string                  `json:"profileId"`
	ProfileName string                  `json:"profileName"`
	Textures    map[string]TextureEntry `json:"textures"`
}

type Builder struct {
	signer Signer
	urlFor func(hash string) string
	now    func() time.Time
}

type Option func(*Builder)

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder returns a Builder resolving texture hashes with urlFor and
// signing with signer.
func NewBuilder(signer Signer, urlFor func(hash string) string, opts ...Option) *Builder {
	b := &Builder{signer: signer, urlFor: urlFor, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

func Simple(c *models.Character) *Profile {
	return &Profile{ID: common.Unsign(c.UUID), Name: c.Name}
}

func User(u *models.User) *UserInfo {
	return &UserInfo{ID: common.Unsign(u.UUID), Properties: []Property{}}
}

// Complete renders c with its textures and uploadableTextures properties.
// When signed is set every property carries a signature.
func (b *Builder) Complete(c *models.Character, signed bool) (*Profile, error) {
	env := Envelope{
		Timestamp:   b.now().UnixMilli(),
		ProfileID:   common.Unsign(c.UUID),
		ProfileName: c.Name,
		Textures:    make(map[string]TextureEntry),
	}
	for _, slot := range c.UploadableSlots() {
		hash := c.Textures[slot]
		if hash == "" {
			continue
		}
		env.Textures[slot.WireName()] = TextureEntry{
			URL:      b.urlFor(hash),
			Metadata: slot.Metadata(c),
		}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode textures: %w", err)
	}

	props := []Property{{
		Name:  PropertyTextures,
		Value: base64.StdEncoding.EncodeToString(raw),
	}}

	if uploadable := c.UploadableSlots(); len(uploadable) > 0 {
		names := make([]string, 0, len(uploadable))
		for _, s := range uploadable {
			names = append(names, s.String())
		}
		props = append(props, Property{
			Name:  PropertyUploadableTextures,
			Value: strings.Join(names, ","),
		})
	}

	if signed {
		for i := range props {
			sig, err := b.signer.Sign(props[i].Value)
			if err != nil {
				return nil, fmt.Errorf("sign %s: %w", props[i].Name, err)
			}
			props[i].Signature = sig
		}
	}

	return &Profile{
		ID:         common.Unsign(c.UUID),
		Name:       c.Name,
		Properties: props,
	}, nil
}

// DecodeEnvelope parses the value of a textures property.
func DecodeEnvelope(value string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
