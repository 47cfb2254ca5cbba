// Package migrations embeds the SQL schemas so binaries and tests can migrate
// without a checkout of the migrations directory.
package migrations

import "embed"

// Postgres holds the relational store migrations under "postgres/"
//
//go:embed postgres/*.sql
var Postgres embed.FS

// ClickHouse holds the history sink schema under "clickhouse/"
//
//go:embed clickhouse/*.sql
var ClickHouse embed.FS
