package storage

import (
	"context"
	"os"
	"testing"
	"time"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// testDatabaseURL returns TEST_DATABASE_URL or skips the test
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping integration test - TEST_DATABASE_URL not set")
	}
	return url
}

// setupTestDB connects to TEST_DATABASE_URL, applies the embedded schema and
// empties every table. The test is skipped when no database is available.
func setupTestDB(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	url := testDatabaseURL(t)

	db, err := NewPostgresDBFromURL(context.Background(), url)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(url, ""); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	_, err = db.Pool().Exec(testContext(t), `
		TRUNCATE users, wallets, user_wallets, chains, wallet_chain_balances, tokens,
			wallet_token_balances, nfts, nft_attributes, solana_native_balances,
			solana_tokens, solana_nfts, bitcoin_addresses, user_portfolio, user_spam_filters
		CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	return db
}
