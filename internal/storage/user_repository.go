package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// UserRepository handles users and their wallet associations
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// RegisterUser creates the user if it does not exist yet
func (r *UserRepository) RegisterUser(ctx context.Context, userID string) error {
	return registerUser(ctx, r.db.Pool(), userID)
}

func registerUser(ctx context.Context, q DBTX, userID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO users (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return classifyError("register user", err)
}

// UserExists reports whether the user row exists
func (r *UserRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, classifyError("check user", err)
	}
	return exists, nil
}

// LinkAddress associates a normalized address with a user in one
// transaction: the user and wallet rows are created if missing, and an
// existing link is left as is.
func (r *UserRepository) LinkAddress(ctx context.Context, userID, address string) error {
	return r.db.WithTx(ctx, "link address", func(tx pgx.Tx) error {
		if err := registerUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := ensureWallet(ctx, tx, address); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_wallets (user_id, wallet_address) VALUES ($1, $2)
			ON CONFLICT (user_id, wallet_address) DO NOTHING
		`, userID, address)
		return classifyError("link address", err)
	})
}

// UnlinkAddress removes one association. The wallet row and other users'
// links are untouched; a missing link is not an error.
func (r *UserRepository) UnlinkAddress(ctx context.Context, userID, address string) error {
	_, err := r.db.Pool().Exec(ctx, `
		DELETE FROM user_wallets WHERE user_id = $1 AND wallet_address = $2
	`, userID, address)
	return classifyError("unlink address", err)
}

// DeleteUser removes the user's links, rollup rows and spam filter, then the
// user itself, in one transaction. Shared wallet rows survive.
func (r *UserRepository) DeleteUser(ctx context.Context, userID string) error {
	return r.db.WithTx(ctx, "delete user", func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM user_wallets WHERE user_id = $1`,
			`DELETE FROM user_portfolio WHERE user_id = $1`,
			`DELETE FROM user_spam_filters WHERE user_id = $1`,
			`DELETE FROM users WHERE user_id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, userID); err != nil {
				return classifyError("delete user", err)
			}
		}
		return nil
	})
}

// ListAddresses returns the addresses linked to a user, in no particular order
func (r *UserRepository) ListAddresses(ctx context.Context, userID string) ([]string, error) {
	return r.collectStrings(ctx, "list addresses",
		`SELECT wallet_address FROM user_wallets WHERE user_id = $1`, userID)
}

// ListUsers returns every user id, sorted
func (r *UserRepository) ListUsers(ctx context.Context) ([]string, error) {
	return r.collectStrings(ctx, "list users", `SELECT user_id FROM users ORDER BY user_id`)
}

// ListLinkedWallets returns the distinct addresses linked to at least one user
func (r *UserRepository) ListLinkedWallets(ctx context.Context) ([]string, error) {
	return r.collectStrings(ctx, "list linked wallets",
		`SELECT DISTINCT wallet_address FROM user_wallets ORDER BY wallet_address`)
}

// ListUsersForWallet returns the users a wallet is linked to
func (r *UserRepository) ListUsersForWallet(ctx context.Context, address string) ([]string, error) {
	return r.collectStrings(ctx, "list users for wallet",
		`SELECT user_id FROM user_wallets WHERE wallet_address = $1 ORDER BY user_id`, address)
}

func (r *UserRepository) collectStrings(ctx context.Context, operation, query string, args ...any) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError(operation, err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classifyError(operation, err)
	}
	return values, nil
}
