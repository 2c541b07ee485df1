package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresSchema creates the profiles table. Uniqueness of email_key (the
// normalized email) and user_id is enforced by the database; InsertIfAbsent
// relies on it.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL UNIQUE,
	first_name        TEXT NOT NULL,
	last_name         TEXT NOT NULL,
	full_name         TEXT NOT NULL,
	name_key          TEXT NOT NULL,
	email             TEXT NOT NULL,
	email_key         TEXT NOT NULL UNIQUE,
	phone             TEXT,
	avatar_url        TEXT,
	bio               TEXT,
	birth_date        TEXT,
	birth_time        TEXT,
	birth_place       TEXT,
	email_verified    BOOLEAN NOT NULL DEFAULT FALSE,
	profile_completed BOOLEAN NOT NULL DEFAULT FALSE,
	status            TEXT NOT NULL CHECK (status IN ('active', 'inactive', 'suspended')),
	metadata          JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	last_seen_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS profiles_name_key_idx ON profiles (name_key);
`

const profileColumns = `id, user_id, first_name, last_name, full_name, email, phone, avatar_url, bio,
	birth_date, birth_time, birth_place, email_verified, profile_completed, status, metadata,
	created_at, updated_at, last_seen_at`

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies PostgresSchema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("migrate profiles: %w", err)
	}
	return nil
}

// InsertIfAbsent inserts the row unless the id, email or user_id is taken.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, p *Profile) error {
	stored := p.Clone()
	stored.Email = strings.TrimSpace(stored.Email)
	stored.SetName(stored.FirstName, stored.LastName)

	metadata, err := encodeMetadata(stored.Metadata)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, user_id, first_name, last_name, full_name, name_key, email, email_key,
			phone, avatar_url, bio, birth_date, birth_time, birth_place, email_verified, profile_completed,
			status, metadata, created_at, updated_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT DO NOTHING`,
		stored.ID, stored.UserID, stored.FirstName, stored.LastName, stored.FullName, stored.NameKey(),
		stored.Email, NormalizeEmail(stored.Email), stored.Phone, stored.AvatarURL, stored.Bio,
		stored.BirthDate, stored.BirthTime, stored.BirthPlace, stored.EmailVerified, stored.ProfileCompleted, stored.Status.String(),
		metadata, stored.CreatedAt, stored.UpdatedAt, stored.LastSeenAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Profile, error) {
	return s.queryOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	return s.queryOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email_key = $1`, NormalizeEmail(email))
}

func (s *PostgresStore) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	return s.queryOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
}

func (s *PostgresStore) ListByFullName(ctx context.Context, fullName string) ([]Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE name_key = $1 ORDER BY created_at, id`,
		FoldName(fullName))
	if err != nil {
		return nil, fmt.Errorf("list profiles by name: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles by name: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateName(ctx context.Context, id string, update NameUpdate) (*Profile, error) {
	return s.mutate(ctx, id, func(p *Profile) error {
		applyNameUpdate(p, update, time.Now().UTC())
		return nil
	})
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, st Status) (*Profile, error) {
	return s.mutate(ctx, id, func(p *Profile) error {
		return applyStatus(p, st, time.Now().UTC())
	})
}

// mutate loads the row FOR UPDATE, applies fn and writes the mutable columns back.
func (s *PostgresStore) mutate(ctx context.Context, id string, fn func(*Profile) error) (*Profile, error) {
	var result *Profile
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id)
		p, err := scanProfile(row)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE profiles
			SET first_name = $2, last_name = $3, full_name = $4, name_key = $5, status = $6, updated_at = $7
			WHERE id = $1`,
			p.ID, p.FirstName, p.LastName, p.FullName, p.NameKey(), p.Status.String(), p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, arg string) (*Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx, query, arg))
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p        Profile
		st       string
		metadata []byte
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.FullName, &p.Email, &p.Phone, &p.AvatarURL,
		&p.Bio, &p.BirthDate, &p.BirthTime, &p.BirthPlace, &p.EmailVerified, &p.ProfileCompleted,
		&st, &metadata, &p.CreatedAt, &p.UpdatedAt, &p.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if p.Status, err = ParseStatus(st); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode profile metadata: %w", err)
		}
	}
	return &p, nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode profile metadata: %w", err)
	}
	return b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)
