package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/db"
)

// ErrEmailTaken is returned by CreateUser when the email already exists.
var ErrEmailTaken = errors.New("auth: email already registered")

// UserRecord is a user row including its password hash.
type UserRecord struct {
	User
	PasswordHash string
}

// Session is a refresh-token session. Only the token hash is stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	IP        string
	ExpiresAt time.Time
}

// Store persists users and sessions. Lookups return common.ErrNotFound when nothing matches.
type Store interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (User, error)
	UserByEmail(ctx context.Context, email string) (UserRecord, error)
	UserByID(ctx context.Context, id string) (User, error)
	CreateSession(ctx context.Context, s Session) error
	SessionByTokenHash(ctx context.Context, hash string) (Session, error)
	RotateSession(ctx context.Context, id, newHash string, expiresAt time.Time) error
	RevokeSession(ctx context.Context, hash string) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	DB db.DBTX
}

const createUser = `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3)
	RETURNING id, name, email, created_at, updated_at`

func (s PGStore) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	var (
		u  User
		id pgtype.UUID
	)
	err := s.DB.QueryRow(ctx, createUser, name, email, passwordHash).Scan(&id, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = db.UUIDString(id)
	return u, nil
}

const userByEmail = `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE lower(email) = lower($1)`

func (s PGStore) UserByEmail(ctx context.Context, email string) (UserRecord, error) {
	var (
		u  UserRecord
		id pgtype.UUID
	)
	err := s.DB.QueryRow(ctx, userByEmail, email).Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return UserRecord{}, common.ErrNotFound
		}
		return UserRecord{}, fmt.Errorf("get user by email: %w", err)
	}
	u.ID = db.UUIDString(id)
	return u, nil
}

const userByID = `SELECT id, name, email, created_at, updated_at FROM users WHERE id = $1`

func (s PGStore) UserByID(ctx context.Context, userID string) (User, error) {
	pgID, ok := db.ParseUUID(userID)
	if !ok {
		return User{}, common.ErrNotFound
	}
	var (
		u  User
		id pgtype.UUID
	)
	if err := s.DB.QueryRow(ctx, userByID, pgID).Scan(&id, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return User{}, common.ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.ID = db.UUIDString(id)
	return u, nil
}

const createSession = `INSERT INTO sessions (user_id, refresh_token_hash, user_agent, ip, expires_at) VALUES ($1, $2, $3, $4, $5)`

func (s PGStore) CreateSession(ctx context.Context, sess Session) error {
	userID, ok := db.ParseUUID(sess.UserID)
	if !ok {
		return fmt.Errorf("create session: invalid user id %q", sess.UserID)
	}
	if _, err := s.DB.Exec(ctx, createSession, userID, sess.TokenHash, db.Text(sess.UserAgent), db.Text(sess.IP), sess.ExpiresAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

const sessionByTokenHash = `SELECT id, user_id, refresh_token_hash, user_agent, ip, expires_at
	FROM sessions WHERE refresh_token_hash = $1 AND revoked_at IS NULL`

func (s PGStore) SessionByTokenHash(ctx context.Context, hash string) (Session, error) {
	var (
		sess       Session
		id, userID pgtype.UUID
		ua, ip     pgtype.Text
	)
	err := s.DB.QueryRow(ctx, sessionByTokenHash, hash).Scan(&id, &userID, &sess.TokenHash, &ua, &ip, &sess.ExpiresAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Session{}, common.ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.ID = db.UUIDString(id)
	sess.UserID = db.UUIDString(userID)
	sess.UserAgent = ua.String
	sess.IP = ip.String
	return sess, nil
}

const rotateSession = `UPDATE sessions SET refresh_token_hash = $2, expires_at = $3 WHERE id = $1 AND revoked_at IS NULL`

func (s PGStore) RotateSession(ctx context.Context, sessionID, newHash string, expiresAt time.Time) error {
	id, ok := db.ParseUUID(sessionID)
	if !ok {
		return common.ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, rotateSession, id, newHash, expiresAt)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

const revokeSession = `UPDATE sessions SET revoked_at = now() WHERE refresh_token_hash = $1 AND revoked_at IS NULL`

func (s PGStore) RevokeSession(ctx context.Context, hash string) error {
	if _, err := s.DB.Exec(ctx, revokeSession, hash); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
