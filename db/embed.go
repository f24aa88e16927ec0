// Package db provides the embedded goose migrations for the orders schema.
package db

import "embed"

// Migrations holds the versioned SQL migrations under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
