package pg

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobnotify/internal/domain"
)

//go:embed schema.sql
var schema string

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// EnsureSchema creates the tables used by the store if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

func (s *Store) LoadToken(ctx context.Context) (domain.TokenPair, error) {
	var pair domain.TokenPair
	err := s.DB.QueryRow(ctx, `
		SELECT access_token, refresh_token FROM oauth_tokens WHERE id=1
	`).Scan(&pair.AccessToken, &pair.RefreshToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenPair{}, nil
	}
	if err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func (s *Store) SaveToken(ctx context.Context, pair domain.TokenPair) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO oauth_tokens (id, access_token, refresh_token, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE SET access_token=$1, refresh_token=$2, updated_at=now()
	`, pair.AccessToken, pair.RefreshToken)
	return err
}

func (s *Store) IsSuppressed(ctx context.Context, ch domain.Channel, identity string) (bool, error) {
	var one int
	err := s.DB.QueryRow(ctx, `
		SELECT 1 FROM suppression_list WHERE channel=$1 AND identity=$2
	`, string(ch), identity).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) AddSuppression(ctx context.Context, ch domain.Channel, identity string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO suppression_list (channel, identity) VALUES ($1, $2)
		ON CONFLICT (channel, identity) DO NOTHING
	`, string(ch), identity)
	return err
}

func (s *Store) RemoveSuppression(ctx context.Context, ch domain.Channel, identity string) error {
	_, err := s.DB.Exec(ctx, `
		DELETE FROM suppression_list WHERE channel=$1 AND identity=$2
	`, string(ch), identity)
	return err
}

func (s *Store) AppendSMS(ctx context.Context, item domain.QueuedSMS) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO sms_queue (id, to_phone, message, regarding_job_uuid, enqueued_at)
		VALUES ($1,$2,$3,$4,$5)
	`, item.ID, item.To, item.Message, item.RegardingJobID, item.EnqueuedAt)
	return err
}

// TakeAllSMS deletes and returns the whole queue in a single statement.
func (s *Store) TakeAllSMS(ctx context.Context) ([]domain.QueuedSMS, error) {
	rows, err := s.DB.Query(ctx, `
		WITH taken AS (
			DELETE FROM sms_queue
			RETURNING seq, id, to_phone, message, regarding_job_uuid, enqueued_at
		)
		SELECT id, to_phone, message, regarding_job_uuid, enqueued_at FROM taken ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueuedSMS
	for rows.Next() {
		var q domain.QueuedSMS
		if err := rows.Scan(&q.ID, &q.To, &q.Message, &q.RegardingJobID, &q.EnqueuedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) CountSMS(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT count(*) FROM sms_queue`).Scan(&n)
	return n, err
}
