// Package captcha issues rotated-image challenges. The client is shown an
// image turned by a random angle and has to report that angle; the answer is
// kept in a one-shot store until the client submits it.
package captcha

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math/rand/v2"
	"strconv"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
)

const (
	// Tolerance is how far, in degrees, an answer may be off.
	Tolerance = 5

	minDegree   = 30
	degreeRange = 300
	jpegQuality = 85
	keyPrefix   = "verifyDegree-"
)

var ErrNoImage = errors.New("no verify image available")

// Source supplies the picture a challenge is built from.
type Source interface {
	Image(ctx context.Context) (image.Image, error)
}

// AnswerStore keeps the expected angle per client id. mail.CodeStore
// implementations satisfy it.
type AnswerStore interface {
	Save(ctx context.Context, key, code string) error
	Take(ctx context.Context, key string) (string, bool, error)
}

// Challenge is an issued captcha. JPEG holds the rotated image; the
// Origin sizes are those of the picture before rotation.
type Challenge struct {
	ClientID     string
	OriginWidth  int
	OriginHeight int
	Width        int
	Height       int
	JPEG         []byte
}

// Service issues and checks challenges.
type Service struct {
	source  Source
	answers AnswerStore
	degree  func() int
	newID   func() string
}

// Option customizes a Service created by New.
type Option func(*Service)

// WithDegrees replaces the random angle picker.
func WithDegrees(f func() int) Option {
	return func(s *Service) { s.degree = f }
}

// New creates a Service.
//
// Parameters:
//   - source: where challenge pictures come from
//   - answers: one-shot store for expected angles; its TTL is the challenge lifetime
//   - opts: optional overrides
func New(source Source, answers AnswerStore, opts ...Option) *Service {
	s := &Service{
		source:  source,
		answers: answers,
		degree:  func() int { return minDegree + rand.IntN(degreeRange) },
		newID:   common.RandomUnsignedUUID,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Issue picks a picture, rotates it and remembers the angle under a fresh
// client id.
func (s *Service) Issue(ctx context.Context) (*Challenge, error) {
	src, err := s.source.Image(ctx)
	if err != nil {
		return nil, err
	}

	degree := s.degree()
	rotated := Rotate(src, degree)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rotated, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode verify image: %w", err)
	}

	id := s.newID()
	if err := s.answers.Save(ctx, keyPrefix+id, strconv.Itoa(degree)); err != nil {
		return nil, fmt.Errorf("save verify answer: %w", err)
	}

	return &Challenge{
		ClientID:     id,
		OriginWidth:  src.Bounds().Dx(),
		OriginHeight: src.Bounds().Dy(),
		Width:        rotated.Bounds().Dx(),
		Height:       rotated.Bounds().Dy(),
		JPEG:         buf.Bytes(),
	}, nil
}

// Check reports whether degree is within Tolerance of the angle issued to
// clientID. Each challenge can be checked once; unknown and expired ids fail.
func (s *Service) Check(ctx context.Context, clientID string, degree int) (bool, error) {
	raw, ok, err := s.answers.Take(ctx, keyPrefix+clientID)
	if err != nil {
		return false, fmt.Errorf("load verify answer: %w", err)
	}
	if !ok {
		return false, nil
	}

	want, err := strconv.Atoi(raw)
	if err != nil {
		return false, fmt.Errorf("stored verify answer %q: %w", raw, err)
	}

	diff := degree - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= Tolerance, nil
}
