// Package surrealdb adapts the teacher's SurrealDB-backed storage
// manager (connect/signin/use/define-table, one struct per logical
// store) to this domain's two durable stores: the job history store (B)
// and the schema registry store (C/D) — see historystore.Store and
// SchemaStore in this package.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/bqlite/internal/common"
)

// Manager owns the single SurrealDB connection shared by the history
// store and schema store, mirroring the teacher's one-manager-many-
// stores shape.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewManager connects to SurrealDB, signs in, selects the configured
// namespace/database, and defines the tables this domain persists to.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	tables := []string{"history", "schemas", "schema_versions", "schema_fields"}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return &Manager{db: db, logger: logger}, nil
}

// DB returns the underlying connection for constructing the history
// store and schema store.
func (m *Manager) DB() *surrealdb.DB { return m.db }

// Close releases the SurrealDB connection.
func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}
