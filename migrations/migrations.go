// Package migrations embeds the goose SQL migrations so the server, the
// migrate command and integration tests apply the same schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

var setupOnce sync.Once

func setup() error {
	var err error
	setupOnce.Do(func() {
		goose.SetBaseFS(FS)
		err = goose.SetDialect("postgres")
	})
	return err
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Run executes a goose command (up, down, status, version, redo, up-to,
// down-to) against the embedded migrations.
func Run(ctx context.Context, command string, db *sql.DB, args ...string) error {
	if err := setup(); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, db, ".", args...)
}
