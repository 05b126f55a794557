// Package tokens manages the lifecycle of access tokens: issuing, validating
// at two strictness levels, one-shot consumption, and per-user revocation.
//
// Tokens live in a bounded, access-ordered table. Nothing sweeps it in the
// background: expiry is checked against the clock on lookup, and revocation
// is a per-user id watermark compared on lookup as well.
package tokens

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
)

// Level selects how strictly Authenticate validates a token.
type Level int

const (
	// Partial accepts any token that is not fully expired or revoked.
	Partial Level = iota
	// Complete additionally rejects partially expired tokens and, in
	// single-session mode, every token but the user's latest.
	Complete
)

func (l Level) String() string {
	switch l {
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Token is immutable once issued; only its presence in the Store changes.
type Token struct {
	ID             int64
	AccessToken    string
	ClientToken    string
	CreatedAt      time.Time
	User           *models.User
	BoundCharacter *models.Character
}

// Config holds the Store limits. Capacity bounds the number of live tokens;
// the least recently used token is evicted once it is exceeded. A token is
// fully expired after FullyExpiredTTL and, with EnablePartialExpiry, fails
// Complete validation after PartiallyExpiredTTL. OnlyLastSessionAvailable
// makes Complete validation accept only the user's most recent token.
type Config struct {
	Capacity                 int
	FullyExpiredTTL          time.Duration
	PartiallyExpiredTTL      time.Duration
	EnablePartialExpiry      bool
	OnlyLastSessionAvailable bool
}

// Generator produces the opaque access token string for a new token.
type Generator func(userID int64, clientToken string) (string, error)

// Verifier checks the format of an access token string before it is looked
// up. A non-nil error rejects the token.
type Verifier func(accessToken string) error

// Option customizes a Store created by New.
type Option func(*Store)

// WithClock replaces time.Now as the source of the current time for
// expiry checks and token creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithGenerator replaces the default random hex access token generator.
func WithGenerator(g Generator) Option {
	return func(s *Store) { s.generate = g }
}

// WithVerifier makes Authenticate reject access tokens that v refuses
// without touching the table.
func WithVerifier(v Verifier) Option {
	return func(s *Store) { s.verify = v }
}

// Store is safe for concurrent use. Unrelated users never contend on a
// common lock.
type Store struct {
	cfg      Config
	table    *boundedLRU[*Token]
	counter  atomic.Int64
	now      func() time.Time
	generate Generator
	verify   Verifier

	watermarks   sync.Map // user id -> *atomic.Int64
	lastAcquired sync.Map // user id -> *Token
}

// New creates an empty Store.
//
// Parameters:
//   - cfg: table capacity and expiry settings
//   - opts: optional overrides for the clock, generator and verifier
//
// Returns:
//   - *Store: ready for concurrent use
func New(cfg Config, opts ...Option) *Store {
	s := &Store{
		cfg:      cfg,
		now:      time.Now,
		generate: randomAccessToken,
	}
	for _, o := range opts {
		o(s)
	}
	s.table = newBoundedLRU(cfg.Capacity, s.onEvict)
	return s
}

func randomAccessToken(int64, string) (string, error) {
	return common.MakeRandHexString(16)
}

func (s *Store) onEvict(_ string, tok *Token) {
	s.lastAcquired.CompareAndDelete(tok.User.ID, tok)
}

// Acquire issues a new token for user. A selected character must belong to
// user, otherwise common.ErrInvalidArgument is returned and nothing changes.
// With no selection a user with exactly one character gets it bound.
// An empty clientToken is replaced by a random one.
func (s *Store) Acquire(user *models.User, clientToken string, selected *models.Character) (*Token, error) {
	var bound *models.Character
	if selected != nil {
		own, ok := user.Character(selected.UUID)
		if !ok {
			return nil, fmt.Errorf("%w: character %s does not belong to user %d",
				common.ErrInvalidArgument, common.Unsign(selected.UUID), user.ID)
		}
		bound = own
	} else if len(user.Characters) == 1 {
		bound = user.Characters[0]
	}

	if clientToken == "" {
		clientToken = common.RandomUnsignedUUID()
	}

	access, err := s.generate(user.ID, clientToken)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	tok := &Token{
		ID:             s.counter.Add(1),
		AccessToken:    access,
		ClientToken:    clientToken,
		CreatedAt:      s.now(),
		User:           user,
		BoundCharacter: bound,
	}

	s.table.Add(access, tok)
	s.lastAcquired.Store(user.ID, tok)
	// A tiny table can evict tok before the pointer above is stored, in
	// which case the eviction hook has already run and missed it.
	if !s.table.Contains(access) {
		s.lastAcquired.CompareAndDelete(user.ID, tok)
	}

	return tok, nil
}

// Authenticate looks up accessToken and validates it at level. A non-empty
// clientToken must match the one the token was issued with. Fully expired
// and revoked tokens are dropped from the table on the way out.
// An unknown level panics.
func (s *Store) Authenticate(accessToken, clientToken string, level Level) (*Token, bool) {
	if level != Partial && level != Complete {
		panic(fmt.Sprintf("tokens: unknown level %d", int(level)))
	}

	if s.verify != nil && s.verify(accessToken) != nil {
		return nil, false
	}

	tok, ok := s.table.Get(accessToken)
	if !ok {
		return nil, false
	}

	now := s.now()

	if s.fullyExpired(tok, now) {
		s.remove(tok)
		return nil, false
	}

	if clientToken != "" && clientToken != tok.ClientToken {
		return nil, false
	}

	if level == Partial {
		return tok, true
	}

	if s.cfg.EnablePartialExpiry && now.After(tok.CreatedAt.Add(s.cfg.PartiallyExpiredTTL)) {
		return nil, false
	}

	if s.cfg.OnlyLastSessionAvailable {
		last, ok := s.lastAcquired.Load(tok.User.ID)
		if !ok || last.(*Token) != tok {
			return nil, false
		}
	}

	return tok, true
}

// AuthenticateAndConsume authenticates the token, asks check whether it may
// be consumed and removes it if so. Only one of many concurrent callers can
// consume a given token; the others get ok == false.
//
// check returning an error aborts with that error; returning false aborts
// quietly. In both cases the token stays in place.
func (s *Store) AuthenticateAndConsume(accessToken, clientToken string, level Level, check func(*Token) (bool, error)) (*Token, bool, error) {
	tok, ok := s.Authenticate(accessToken, clientToken, level)
	if !ok {
		return nil, false, nil
	}

	proceed, err := check(tok)
	if err != nil {
		return nil, false, err
	}
	if !proceed {
		return nil, false, nil
	}

	if !s.remove(tok) {
		return nil, false, nil
	}
	return tok, true, nil
}

// RevokeAll invalidates every token issued to user so far. It only moves
// the user's watermark; tokens are dropped lazily when next looked up.
func (s *Store) RevokeAll(user *models.User) {
	current := s.counter.Load()

	v, _ := s.watermarks.LoadOrStore(user.ID, new(atomic.Int64))
	w := v.(*atomic.Int64)
	for {
		old := w.Load()
		if old >= current || w.CompareAndSwap(old, current) {
			return
		}
	}
}

// Count is the approximate number of live tokens.
func (s *Store) Count() int {
	return s.table.Len()
}

func (s *Store) fullyExpired(tok *Token, now time.Time) bool {
	if now.After(tok.CreatedAt.Add(s.cfg.FullyExpiredTTL)) {
		return true
	}
	if v, ok := s.watermarks.Load(tok.User.ID); ok && tok.ID <= v.(*atomic.Int64).Load() {
		return true
	}
	return false
}

func (s *Store) remove(tok *Token) bool {
	if !s.table.RemoveIf(tok.AccessToken, tok) {
		return false
	}
	s.lastAcquired.CompareAndDelete(tok.User.ID, tok)
	return true
}
