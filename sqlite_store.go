package fidokey

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// sqliteStore is an alternate Store backend, useful for host-side
// development and debugging where a real flash-backed flat region
// isn't available. It keeps the same append/scan/erase contract as
// flatStore behind a relational schema.
type sqliteStore struct{ db *sql.DB }

// OpenSQLiteStore opens/creates a SQLite DB and ensures schema + PRAGMAs.
func OpenSQLiteStore(dsn string) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	st := &sqliteStore{db: db}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}
	schema := `
CREATE TABLE IF NOT EXISTS slots (
  idx           INTEGER PRIMARY KEY,
  app_id_hash   BLOB NOT NULL,
  credential_id BLOB NOT NULL,
  private_key   BLOB NOT NULL,
  slot_tag      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS header (
  id    INTEGER PRIMARY KEY CHECK(id=1),
  count INTEGER NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO header(id, count) VALUES (1, 0)`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) readCount(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT count FROM header WHERE id=1`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Append implements Store.
func (s *sqliteStore) Append(appIDHash AppIDHash, credentialID CredentialID, privateKey PrivateKey) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	count, err := s.readCount(ctx, tx)
	if err != nil {
		return err
	}
	if count == MaxSlots {
		return ErrStorageFull
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO slots(idx, app_id_hash, credential_id, private_key, slot_tag) VALUES (?, ?, ?, ?, ?)`,
		count, appIDHash[:], credentialID[:], privateKey[:], slotTagOccupied); err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE header SET count=? WHERE id=1`, count+1); err != nil {
		return fmt.Errorf("update header: %w", err)
	}

	return tx.Commit()
}

// FindByAppID implements Store.
func (s *sqliteStore) FindByAppID(appIDHash AppIDHash) (Credential, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := s.readCount(ctx, s.db)
	if err != nil {
		return Credential{}, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT app_id_hash, credential_id, private_key FROM slots WHERE idx < ? ORDER BY idx ASC`, count)
	if err != nil {
		return Credential{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var aidh, cid, priv []byte
		if err := rows.Scan(&aidh, &cid, &priv); err != nil {
			return Credential{}, false, err
		}
		if len(aidh) != 20 || len(cid) != 16 || len(priv) != 21 {
			return Credential{}, false, fmt.Errorf("corrupt slot row sizes")
		}
		var cred Credential
		copy(cred.AppIDHash[:], aidh)
		if cred.AppIDHash != appIDHash {
			continue
		}
		copy(cred.CredentialID[:], cid)
		copy(cred.PrivateKey[:], priv)
		return cred, true, nil
	}
	return Credential{}, false, rows.Err()
}

// EraseAll implements Store.
func (s *sqliteStore) EraseAll() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	count, err := s.readCount(ctx, tx)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE slots SET slot_tag=? WHERE idx < ?`, slotTagFree, count); err != nil {
		return fmt.Errorf("clear slot tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE header SET count=0 WHERE id=1`); err != nil {
		return fmt.Errorf("reset header: %w", err)
	}

	return tx.Commit()
}

// Enumerate implements Store.
func (s *sqliteStore) Enumerate() ([]EnumeratedCredential, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := s.readCount(ctx, s.db)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT app_id_hash, credential_id FROM slots WHERE idx < ? ORDER BY idx ASC`, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]EnumeratedCredential, 0, count)
	for rows.Next() {
		var aidh, cid []byte
		if err := rows.Scan(&aidh, &cid); err != nil {
			return nil, err
		}
		var e EnumeratedCredential
		copy(e.AppIDHash[:], aidh)
		copy(e.CredentialID[:], cid)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count implements Store.
func (s *sqliteStore) Count() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.readCount(ctx, s.db)
}

// Close implements Store.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
