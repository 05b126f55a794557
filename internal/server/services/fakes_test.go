package services

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/cryptox"
	"github.com/dmitrijs2005/yggkeeper/internal/dbx"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/characters"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
	"github.com/google/uuid"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var (
	hashOnce   sync.Once
	secretHash string
)

const secretPassword = "hunter2"

func passwordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := cryptox.HashPassword(secretPassword)
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		secretHash = h
	})
	return secretHash
}

func newTokenStore() *tokens.Store {
	return tokens.New(tokens.Config{
		Capacity:                 100,
		FullyExpiredTTL:          time.Hour,
		PartiallyExpiredTTL:      30 * time.Minute,
		EnablePartialExpiry:      true,
		OnlyLastSessionAvailable: true,
	})
}

// --- in-memory repositories ---

type memDB struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
	chars  map[uuid.UUID]*models.Character

	failUsers error
	failChars error
}

func newMemDB() *memDB {
	return &memDB{users: map[int64]*models.User{}, chars: map[uuid.UUID]*models.Character{}}
}

func (m *memDB) addUser(t *testing.T, email string) *models.User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u := &models.User{ID: m.nextID, UUID: uuid.New(), Email: email, PasswordHash: passwordHash(t)}
	m.users[u.ID] = u
	return u
}

func (m *memDB) addCharacter(owner *models.User, name string) *models.Character {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Character{UUID: uuid.New(), Name: name, OwnerID: owner.ID, Model: models.ModelDefault,
		Textures: map[models.TextureSlot]string{}, CreatedAt: time.Now()}
	m.chars[c.UUID] = c
	return c
}

// copies keep callers from mutating stored rows, as a real database would.
func copyUser(u *models.User) *models.User {
	cp := *u
	cp.Characters = nil
	return &cp
}

func copyChar(c *models.Character) *models.Character {
	cp := *c
	cp.Textures = make(map[models.TextureSlot]string, len(c.Textures))
	for k, v := range c.Textures {
		cp.Textures[k] = v
	}
	return &cp
}

type memUsers struct{ m *memDB }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, other := range r.m.users {
		if other.Email == u.Email {
			return nil, common.ErrNameAlreadyTaken
		}
	}
	r.m.nextID++
	u.ID = r.m.nextID
	r.m.users[u.ID] = copyUser(u)
	return u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failUsers != nil {
		return nil, r.m.failUsers
	}
	for _, u := range r.m.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(u), nil
}

func (r memUsers) Count(context.Context) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return len(r.m.users), nil
}

type memChars struct{ m *memDB }

func (r memChars) Create(_ context.Context, c *models.Character) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c.CreatedAt = time.Now()
	r.m.chars[c.UUID] = copyChar(c)
	return nil
}

func (r memChars) GetByUUID(_ context.Context, id uuid.UUID) (*models.Character, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failChars != nil {
		return nil, r.m.failChars
	}
	c, ok := r.m.chars[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyChar(c), nil
}

func (r memChars) GetByName(_ context.Context, name string) (*models.Character, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failChars != nil {
		return nil, r.m.failChars
	}
	for _, c := range r.m.chars {
		if strings.EqualFold(c.Name, name) {
			return copyChar(c), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memChars) ListByOwner(_ context.Context, ownerID int64) ([]*models.Character, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Character
	for _, c := range r.m.chars {
		if c.OwnerID == ownerID {
			out = append(out, copyChar(c))
		}
	}
	return out, nil
}

func (r memChars) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	list, err := r.ListByOwner(ctx, ownerID)
	return len(list), err
}

func (r memChars) SetTexture(_ context.Context, id uuid.UUID, slot models.TextureSlot, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.chars[id]
	if !ok {
		return common.ErrorNotFound
	}
	if hash == "" {
		delete(c.Textures, slot)
	} else {
		c.Textures[slot] = hash
	}
	return nil
}

func (r memChars) SetModel(_ context.Context, id uuid.UUID, model models.ModelType) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.chars[id]
	if !ok {
		return common.ErrorNotFound
	}
	c.Model = model
	return nil
}

type fakeRepoManager struct{ m *memDB }

func (f fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f fakeRepoManager) Users(dbx.DBTX) users.Repository              { return memUsers{f.m} }
func (f fakeRepoManager) Characters(dbx.DBTX) characters.Repository    { return memChars{f.m} }

type countingRecorder struct {
	mu      sync.Mutex
	results map[string]int
	limited map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{results: map[string]int{}, limited: map[string]int{}}
}

func (r *countingRecorder) AuthResult(op string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := op + ":fail"
	if ok {
		key = op + ":ok"
	}
	r.results[key]++
}

func (r *countingRecorder) RateLimited(keyspace string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limited[keyspace]++
}
