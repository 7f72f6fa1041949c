// Package calibdb is the system of record for calibration data: inventory,
// calibration events with their raw and adjusted rows, the reference range
// table and staff calibration results.
package calibdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

var (
	shared     *DB
	sharedErr  error
	sharedOnce sync.Once
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type DB struct {
	*sql.DB
	path string
}

// Open connects to the database at path and applies pending migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open calibration database %s: %w", path, err)
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)

	// SQLite allows one writer; a single connection also serialises the
	// delete-then-insert replacements.
	db.SetMaxOpenConns(1)

	logrus.WithField("path", path).Debug("Calibration database ready")
	return &DB{DB: db, path: path}, nil
}

// GetDB returns the process-wide database, opened on first use.
func GetDB(path string) (*DB, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = Open(path)
	})
	return shared, sharedErr
}

// Queries runs statements outside a transaction.
// Do not call it from inside InTx: the pool holds one connection.
func (db *DB) Queries() *Queries {
	return &Queries{q: db.DB}
}

// InTx runs fn in a transaction that is committed when fn returns nil.
func (db *DB) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logrus.WithError(rbErr).Warn("Rollback failed")
		}
		return err
	}
	return tx.Commit()
}
