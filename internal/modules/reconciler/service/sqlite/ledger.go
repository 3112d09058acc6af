package sqlite

import (
	"context"
	"fmt"
)

func (s *Store) AlreadyImported(ctx context.Context, fileHash string) (ok bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite.AlreadyImported: %w", err)
		}
	}()

	var n int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM imported_files WHERE file_hash = ?`, fileHash,
	).Scan(&n)
	return n > 0, err
}

func (s *Store) RecordImported(ctx context.Context, filename, fileHash string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite.RecordImported: %w", err)
		}
	}()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO imported_files (filename, file_hash)
		VALUES (?, ?)`,
		filename, fileHash,
	)
	return err
}
