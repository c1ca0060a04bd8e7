// Package db provides the embedded SQL migrations for the PostgreSQL
// document store.
package db

import "embed"

// Migrations holds the golang-migrate files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
