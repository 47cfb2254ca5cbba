package storage

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/migrations"
)

// RunClickHouseMigrations applies the embedded ClickHouse schema. Statements
// are idempotent (IF NOT EXISTS), so the whole set runs on every start.
func RunClickHouseMigrations(ctx context.Context, db *ClickHouseDB) error {
	return runClickHouseMigrations(ctx, db, migrations.ClickHouse, "clickhouse")
}

func runClickHouseMigrations(ctx context.Context, db *ClickHouseDB, fsys fs.FS, dir string) error {
	logger := logging.FromContext(ctx).WithComponent("clickhouse-migrate")

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		for i, stmt := range splitSQLStatements(string(content)) {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute statement %d in %s: %w", i+1, name, err)
			}
		}
		logger.WithField("file", name).Info("Applied ClickHouse migration")
	}

	return nil
}

// splitSQLStatements splits a script on statement-terminating semicolons,
// dropping comment-only lines. ClickHouse rejects the trailing semicolon.
func splitSQLStatements(content string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	flush := func() {
		stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	return statements
}
