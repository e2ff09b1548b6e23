// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ideaforge/ideaforge/pkg/persistence"
	"github.com/ideaforge/ideaforge/pkg/persistence/file"
	"github.com/ideaforge/ideaforge/pkg/persistence/postgresql"
)

// NewPersistence selects the execution store from the database URL scheme.
// PostgreSQL URLs get the relational store; anything else is treated as a
// filesystem root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL)
	}
}
