package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/vaultsync/internal/client/migrations"
	"github.com/dmitrijs2005/vaultsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaultsync/internal/filex"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// OpenDB opens the local sqlite database at path and migrates it. Writers
// take the lock up front so a CLI edit and a running daemon queue behind
// each other instead of failing with SQLITE_BUSY.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")

	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

// EnsureDeviceID returns the persisted device id, generating one on first
// use. A non-empty override replaces the stored id.
func EnsureDeviceID(ctx context.Context, r metadata.Repository, override string) (string, error) {
	if override != "" {
		if err := r.Set(ctx, metadata.KeyDeviceID, []byte(override)); err != nil {
			return "", err
		}
		return override, nil
	}

	id, err := metadata.GetString(ctx, r, metadata.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := r.Set(ctx, metadata.KeyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
