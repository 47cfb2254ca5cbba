package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
)

// SpamFilterRepository persists the per-user set of token names marked as spam.
// The store validates that every name belongs to a known token.
type SpamFilterRepository struct {
	db *PostgresDB
}

// NewSpamFilterRepository creates a new spam filter repository
func NewSpamFilterRepository(db *PostgresDB) *SpamFilterRepository {
	return &SpamFilterRepository{db: db}
}

// SpamTokens returns the user's spam set, empty if none was saved
func (r *SpamFilterRepository) SpamTokens(ctx context.Context, userID string) ([]string, error) {
	var names []string
	err := r.db.Pool().QueryRow(ctx, `
		SELECT spam_tokens FROM user_spam_filters WHERE user_id = $1
	`, userID).Scan(&names)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []string{}, nil
		}
		return nil, classifyError("get spam tokens", err)
	}
	if names == nil {
		names = []string{}
	}
	sort.Strings(names)
	return names, nil
}

// SetSpamTokens replaces the user's spam set. Unknown token names are
// rejected by the store and surface as a validation failure.
func (r *SpamFilterRepository) SetSpamTokens(ctx context.Context, userID string, names []string) error {
	if names == nil {
		names = []string{}
	}
	return r.db.WithTx(ctx, "set spam tokens", func(tx pgx.Tx) error {
		if err := registerUser(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_spam_filters (user_id, spam_tokens)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET
				spam_tokens = EXCLUDED.spam_tokens
		`, userID, names)
		return classifyError("set spam tokens", err)
	})
}
