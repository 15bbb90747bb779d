// Package scanner watches a drop directory for log files and submits their
// contents to the pipeline. It is a poll-based watcher: every interval it
// lists the directory and submits any file content it has not seen before.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/inbound"
	"github.com/jonny/guardian/internal/ingest"
)

// watchedExtensions are the file types treated as ingestable logs.
var watchedExtensions = map[string]bool{
	".log":    true,
	".txt":    true,
	".json":   true,
	".syslog": true,
}

// Config holds scanner configuration.
type Config struct {
	Dir      string
	Interval time.Duration
}

// Status is the scanner's operability snapshot, served by the scheduler
// API endpoints.
type Status struct {
	Enabled   bool       `json:"enabled"`
	Dir       string     `json:"dir,omitempty"`
	Interval  string     `json:"interval,omitempty"`
	LastSweep *time.Time `json:"last_sweep,omitempty"`
	Submitted int        `json:"submitted_total"`
}

// Scanner polls a directory and submits new log content. Deduplication is
// by content hash, so renaming or touching a file never resubmits it.
type Scanner struct {
	cfg       Config
	submitter inbound.IncidentSubmitter
	deduper   *ingest.Deduper
	logger    *slog.Logger

	mu        sync.Mutex
	lastSweep time.Time
	submitted int
}

func New(cfg Config, submitter inbound.IncidentSubmitter, deduper *ingest.Deduper, logger *slog.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Scanner{
		cfg:       cfg,
		submitter: submitter,
		deduper:   deduper,
		logger:    logger,
	}
}

// Run scans once immediately, then on every tick until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner started",
		slog.String("dir", s.cfg.Dir),
		slog.Duration("interval", s.cfg.Interval))

	s.scan(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// Status reports the scanner's progress counters.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Enabled:   true,
		Dir:       s.cfg.Dir,
		Interval:  s.cfg.Interval.String(),
		Submitted: s.submitted,
	}
	if !s.lastSweep.IsZero() {
		t := s.lastSweep
		st.LastSweep = &t
	}
	return st
}

// ScanNow runs one sweep immediately, outside the ticker schedule.
func (s *Scanner) ScanNow(ctx context.Context) {
	s.scan(ctx)
}

// scan submits every unseen watched file in the directory. Errors on a
// single file are logged and do not stop the sweep.
func (s *Scanner) scan(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.lastSweep = time.Now().UTC()
		s.mu.Unlock()
	}()

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		s.logger.Warn("reading scan directory",
			slog.String("dir", s.cfg.Dir),
			slog.String("error", err.Error()))
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !watchedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		s.ingestFile(ctx, filepath.Join(s.cfg.Dir, entry.Name()))
	}
}

func (s *Scanner) ingestFile(ctx context.Context, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("reading log file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return
	}

	ok, err := s.deduper.ShouldSubmit(ctx, content)
	if err != nil {
		s.logger.Error("checking dedup state",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}

	inc, err := s.submitter.Submit(ctx, string(content), model.SourceWatcher)
	if err != nil {
		s.logger.Error("submitting scanned log",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	s.submitted++
	s.mu.Unlock()

	// Marked only after a successful submit so a failed submit is retried
	// on the next sweep.
	if err := s.deduper.MarkSubmitted(ctx, content, string(model.SourceWatcher)); err != nil {
		s.logger.Error("marking content seen",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	s.logger.Info("scanned log submitted",
		slog.String("path", path),
		slog.String("incidentID", inc.ID))
}
