// Package db embeds the storefront schema.
package db

import _ "embed"

// Schema creates the products, orders and session_snapshots tables. Every
// statement is idempotent, so it is applied on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
