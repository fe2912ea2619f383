package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/drive-tagger/internal/domain"
)

// SessionRepository implements domain.SessionRepository using SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite-backed SessionRepository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db.SqlDB}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	now := time.Now().UTC().Truncate(time.Second)
	var expiry sql.NullTime
	if !s.Credentials.Expiry.IsZero() {
		expiry = sql.NullTime{Time: s.Credentials.Expiry.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, email, access_token, refresh_token, token_type, token_expiry, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Email, s.Credentials.AccessToken, s.Credentials.RefreshToken,
		s.Credentials.TokenType, expiry, now, s.ExpiresAt.UTC().Truncate(time.Second),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	s.CreatedAt = now
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	s := &domain.Session{}
	var expiry sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, access_token, refresh_token, token_type, token_expiry, created_at, expires_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Email, &s.Credentials.AccessToken, &s.Credentials.RefreshToken,
		&s.Credentials.TokenType, &expiry, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query session by id: %w", err)
	}
	if expiry.Valid {
		s.Credentials.Expiry = expiry.Time
	}
	return s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
