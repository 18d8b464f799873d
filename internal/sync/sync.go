// Package sync reconciles word-list sources into their decks.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/gitsource"
	"github.com/conorfennell/vocadeck/internal/parser"
)

// Store is the part of the word store a sync needs.
type Store interface {
	WordRegistry
	ListSources(ctx context.Context) ([]domain.Source, error)
	UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error
}

// GitFunc brings the checkout of a git source at localPath up to date.
type GitFunc func(ctx context.Context, log *zap.Logger, repoURL, localPath string) error

// Report counts what one source contributed to its deck.
type Report struct {
	SourceID   int64
	Deck       string
	Path       string
	Added      int
	Merged     int
	Duplicates int
	Errors     []error
}

// Syncer walks sources and registers their words.
type Syncer struct {
	store    Store
	log      *zap.Logger
	reposDir string
	delay    time.Duration
	git      GitFunc
	now      func() time.Time
}

// NewSyncer returns a Syncer that checks git sources out under reposDir and
// schedules new words delay after registration.
func NewSyncer(store Store, log *zap.Logger, reposDir string, delay time.Duration) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		store:    store,
		log:      log,
		reposDir: reposDir,
		delay:    delay,
		git:      gitsource.Sync,
		now:      time.Now,
	}
}

// RunSync iterates over all sources and reconciles them. A source that fails
// to check out is reported and skipped; the others still run.
func (s *Syncer) RunSync(ctx context.Context) ([]Report, error) {
	s.log.Info("starting sync process for all sources")
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		s.log.Info("no sources configured")
		return nil, nil
	}

	reports := make([]Report, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		s.log.Info("syncing source",
			zap.Int64("id", source.ID),
			zap.String("deck", source.Deck),
			zap.String("type", string(source.Type)),
			zap.String("path", source.Path),
		)

		report := Report{SourceID: source.ID, Deck: source.Deck, Path: source.Path}
		dir := source.Path
		if source.Type == domain.GitSource {
			dir, err = s.checkout(ctx, source.Path)
			if err != nil {
				s.log.Error("error syncing git repo", zap.String("url", source.Path), zap.Error(err))
				report.Errors = append(report.Errors, err)
				reports = append(reports, report)
				continue
			}
		}
		s.reconcile(ctx, source, dir, &report)
		reports = append(reports, report)
	}
	s.log.Info("sync process complete", zap.Int("sources", len(reports)))
	return reports, nil
}

func (s *Syncer) checkout(ctx context.Context, repoURL string) (string, error) {
	localPath, err := gitsource.LocalPath(s.reposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := s.git(ctx, s.log, repoURL, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// reconcile registers every entry found under dir. Words are never deleted:
// removing a line from a word list must not discard its review history.
func (s *Syncer) reconcile(ctx context.Context, source domain.Source, dir string, report *Report) {
	now := s.now()

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isWordList(d.Name()) {
			return nil
		}
		entries, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, e := range entries {
			outcome, err := Register(ctx, s.store, source.Deck, e, now, s.delay)
			if err != nil {
				report.Errors = append(report.Errors, err)
				continue
			}
			switch outcome {
			case Added:
				report.Added++
			case Merged:
				report.Merged++
			default:
				report.Duplicates++
			}
		}
		return nil
	})
	if walkErr != nil {
		s.log.Error("error walking directory", zap.String("path", dir), zap.Error(walkErr))
		report.Errors = append(report.Errors, walkErr)
		return
	}

	if err := s.store.UpdateSourceLastScanned(ctx, source.ID, now); err != nil {
		s.log.Warn("failed to update last scanned for source", zap.Int64("source_id", source.ID), zap.Error(err))
	}

	s.log.Info("reconciliation complete",
		zap.String("path", dir),
		zap.String("deck", source.Deck),
		zap.Int("added", report.Added),
		zap.Int("merged", report.Merged),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("errors", len(report.Errors)),
	)
}

func isWordList(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".csv"
}
