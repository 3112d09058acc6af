package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"trade_ledger/internal/modules/config"
	reconciler "trade_ledger/internal/modules/reconciler/service"
	"trade_ledger/internal/modules/reconciler/service/sqlite"
	"trade_ledger/internal/notify"
	"trade_ledger/pkg/logger"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Init(true)
	os.Exit(m.Run())
}

func newTestImporter(t *testing.T, cfg *config.Config) (*Service, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := sqlite.New(dbPath, sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := reconciler.NewReconciler(store, store, reconciler.Options{
		CloseRetries:        cfg.CloseRetries,
		CloseRetryBackoff:   cfg.CloseRetryBackoff,
		ContinueOnMalformed: true,
	})

	svc, err := New(cfg, engine, notify.NewStdout())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return svc, db
}

func TestImportFileEndToEnd(t *testing.T) {
	t.Parallel()

	inbox := t.TempDir()
	archive := t.TempDir()
	csvPath := filepath.Join(inbox, "export.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleExport), 0o644))

	cfg := &config.Config{
		InputPath:  inbox,
		ArchiveDir: archive,
		SourceName: "blofin_order_history",
	}
	svc, db := newTestImporter(t, cfg)

	require.NoError(t, svc.Run(context.Background()))

	// Opens: BTC long + ICP short; close matched the BTC open; the
	// ticker-less row was rejected as malformed.
	var trades int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&trades))
	assert.Equal(t, 2, trades)

	var open int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM trades WHERE end_date IS NULL`).Scan(&open))
	assert.Equal(t, 1, open)

	// File moved to the archive and recorded in the ledger.
	_, err := os.Stat(csvPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(archive, "export.csv"))
	assert.NoError(t, err)

	var files int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM imported_files`).Scan(&files))
	assert.Equal(t, 1, files)
}

func TestImportFileAlreadyImportedIsNoOp(t *testing.T) {
	t.Parallel()

	inbox := t.TempDir()
	csvPath := filepath.Join(inbox, "export.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleExport), 0o644))

	cfg := &config.Config{
		InputPath:  inbox,
		SourceName: "blofin_order_history",
	}
	svc, db := newTestImporter(t, cfg)

	_, err := svc.ImportFile(context.Background(), csvPath)
	require.NoError(t, err)

	// No archive dir configured: the file stays put and a second run hits
	// the ledger, not the engine.
	_, err = svc.ImportFile(context.Background(), csvPath)
	require.NoError(t, err)

	var trades int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&trades))
	assert.Equal(t, 2, trades)
}

func TestFileSHA256(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.csv")
	p2 := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(p1, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("same bytes"), 0o644))

	h1, err := fileSHA256(p1)
	require.NoError(t, err)
	h2, err := fileSHA256(p2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	require.NoError(t, os.WriteFile(p2, []byte("other bytes"), 0o644))
	h3, err := fileSHA256(p2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestGatherInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), nil, 0o644))

	paths, err := gatherInputs(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "a.csv", filepath.Base(paths[0]))
	assert.Equal(t, "b.csv", filepath.Base(paths[1]))
}
