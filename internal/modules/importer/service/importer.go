package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"trade_ledger/internal/models"
	"trade_ledger/internal/modules/config"
	reconciler "trade_ledger/internal/modules/reconciler/service"
	"trade_ledger/internal/notify"
	"trade_ledger/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// Service drives the pipeline: gather files, hash, parse, feed the
// reconciler, archive. It owns every policy the engine does not: which
// files to pick up, what to do with them afterwards and how to report.
type Service struct {
	cfg      *config.Config
	engine   *reconciler.Reconciler
	notifier notify.Notifier
	loc      *time.Location
}

func New(cfg *config.Config, engine *reconciler.Reconciler, notifier notify.Notifier) (*Service, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, errors.Wrap(err, "load timezone")
		}
		loc = l
	}
	return &Service{
		cfg:      cfg,
		engine:   engine,
		notifier: notifier,
		loc:      loc,
	}, nil
}

// Run imports everything under the configured input path. A failed file
// does not stop the rest; the first error is reported at the end.
func (s *Service) Run(ctx context.Context) error {
	paths, err := gatherInputs(s.cfg.InputPath)
	if err != nil {
		return errors.Wrap(err, "gather inputs")
	}
	if len(paths) == 0 {
		logger.Info("no CSV files found under %s", s.cfg.InputPath)
		return nil
	}

	var firstErr error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.ImportFile(ctx, path); err != nil {
			logger.Error("import %s failed: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Service) ImportFile(ctx context.Context, path string) (*models.ImportResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "import_file")
	span.SetTag("file", baseName(path))
	defer span.Finish()

	hash, err := fileSHA256(path)
	if err != nil {
		return nil, errors.Wrap(err, "hash file")
	}

	records, err := parseFile(path, s.cfg.SourceName, s.loc)
	if err != nil {
		return nil, errors.Wrap(err, "parse file")
	}

	recSpan, recCtx := opentracing.StartSpanFromContext(ctx, "reconcile")
	res, err := s.engine.Reconcile(recCtx, hash, baseName(path), records)
	recSpan.Finish()
	if errors.Is(err, reconciler.ErrAlreadyImported) {
		logger.Info("%s already imported, skipping", baseName(path))
		return res, nil
	}
	if err != nil {
		return res, err
	}

	logger.Info("run %s imported %s", res.RunID, res)
	s.report(res)

	if err := s.archive(path); err != nil {
		return res, errors.Wrap(err, "archive file")
	}
	return res, nil
}

// report sends the per-file summary. Orphans go out even when everything
// else is quiet; they mean a data gap or a matching edge case that needs a
// human look.
func (s *Service) report(res *models.ImportResult) {
	if res.Orphaned > 0 {
		s.notifier.Sendf("⚠ import %s: %d orphan close(s) need review (%s)",
			res.Filename, res.Orphaned, res.RunID)
	}
	s.notifier.Sendf("imported %s", res)
}

// archive moves the file out of the inbox once the ledger has it. Skipped
// when no archive dir is configured or the file already lives there.
func (s *Service) archive(path string) error {
	if s.cfg.ArchiveDir == "" {
		return nil
	}

	srcDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return err
	}
	dstDir, err := filepath.Abs(s.cfg.ArchiveDir)
	if err != nil {
		return err
	}
	if srcDir == dstDir {
		return nil
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dstDir, baseName(path)))
}

func gatherInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return filepath.Glob(filepath.Join(path, "*.csv"))
	}
	return filepath.Glob(path)
}
