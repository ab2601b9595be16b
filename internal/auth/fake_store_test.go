package auth

import (
	"context"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

var testHashParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]UserRecord // by email
	sessions map[string]Session    // by id
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]UserRecord{}, sessions: map[string]Session{}}
}

func (f *fakeStore) CreateUser(_ context.Context, name, email, hash string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return User{}, ErrEmailTaken
	}
	now := time.Now().UTC()
	u := User{ID: uuid.NewString(), Name: name, Email: email, CreatedAt: now, UpdatedAt: now}
	f.users[email] = UserRecord{User: u, PasswordHash: hash}
	return u, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.users[email]
	if !ok {
		return UserRecord{}, common.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) UserByID(_ context.Context, id string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.users {
		if rec.ID == id {
			return rec.User, nil
		}
	}
	return User{}, common.ErrNotFound
}

func (f *fakeStore) CreateSession(_ context.Context, s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = uuid.NewString()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) SessionByTokenHash(_ context.Context, hash string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.TokenHash == hash {
			return s, nil
		}
	}
	return Session{}, common.ErrNotFound
}

func (f *fakeStore) RotateSession(_ context.Context, id, newHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return common.ErrNotFound
	}
	s.TokenHash = newHash
	s.ExpiresAt = expiresAt
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) RevokeSession(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.TokenHash == hash {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeStore) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}
