package pg

import (
	"context"
	"fmt"
)

// AlreadyImported reports whether a byte-identical file was fully processed
// before.
func (s *Store) AlreadyImported(ctx context.Context, fileHash string) (ok bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.AlreadyImported: %w", err)
		}
	}()

	err = s.db.Conn().QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM imported_files WHERE file_hash = $1)`,
		fileHash,
	).Scan(&ok)
	return ok, err
}

// RecordImported appends the file to the ledger. Called only after every
// record in the file has been durably reconciled; a crash before this point
// leaves the file eligible for a safe retry.
func (s *Store) RecordImported(ctx context.Context, filename, fileHash string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.RecordImported: %w", err)
		}
	}()

	_, err = s.db.Conn().Exec(ctx, `
		INSERT INTO imported_files (filename, file_hash)
		VALUES ($1, $2)
		ON CONFLICT (file_hash) DO NOTHING`,
		filename, fileHash,
	)
	return err
}
