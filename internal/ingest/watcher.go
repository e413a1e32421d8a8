// Package ingest feeds claim documents into the processing pipeline
// from a watched uploads directory and an optional carrier FTP drop
// folder.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
	"github.com/harborview/claims-triage/internal/pipeline"
)

const (
	defaultSettleDelay   = 500 * time.Millisecond
	defaultMaxConcurrent = 4
)

// FileProcessor runs one document through intake. The pipeline
// processor is idempotent per source filename, so re-delivery of the
// same file is safe.
type FileProcessor interface {
	ProcessFile(ctx context.Context, filePath, source string) (*pipeline.Result, error)
}

// skipName reports whether a directory entry is not a claim document.
func skipName(name string) bool {
	switch name {
	case ".DS_Store", ".gitkeep", ".gitignore", ".keep", "Thumbs.db":
		return true
	}
	return strings.HasPrefix(name, ".")
}

// Watcher processes files dropped into the uploads directory. Files are
// processed only after they stop changing for a settle delay, since
// large documents arrive as a series of write events.
type Watcher struct {
	cfg  config.IngestConfig
	proc FileProcessor
	sem  chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates an uploads-directory watcher.
func NewWatcher(cfg config.IngestConfig, proc FileProcessor) *Watcher {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Watcher{
		cfg:     cfg,
		proc:    proc,
		sem:     make(chan struct{}, maxConcurrent),
		pending: make(map[string]*time.Timer),
	}
}

func (w *Watcher) settleDelay() time.Duration {
	if w.cfg.SettleDelayMS > 0 {
		return time.Duration(w.cfg.SettleDelayMS) * time.Millisecond
	}
	return defaultSettleDelay
}

// Run watches the uploads directory until ctx is cancelled. Files
// already present at startup are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "ingest: create watcher")
	}
	defer fw.Close() //nolint:errcheck

	if err := fw.Add(w.cfg.UploadsDir); err != nil {
		return eris.Wrapf(err, "ingest: watch %s", w.cfg.UploadsDir)
	}

	log := zap.L().With(zap.String("component", "ingest.watcher"))
	log.Info("watching uploads directory",
		zap.String("dir", w.cfg.UploadsDir),
		zap.Duration("settle_delay", w.settleDelay()),
	)

	if err := w.processExisting(ctx, log); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			log.Info("uploads watcher stopped")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return eris.New("ingest: watcher event channel closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if skipName(filepath.Base(ev.Name)) {
				continue
			}
			w.schedule(ctx, ev.Name, log)
		case err, ok := <-fw.Errors:
			if !ok {
				return eris.New("ingest: watcher error channel closed")
			}
			log.Error("uploads watcher error", zap.Error(err))
		}
	}
}

// processExisting handles files that were dropped while the watcher was
// not running.
func (w *Watcher) processExisting(ctx context.Context, log *zap.Logger) error {
	entries, err := os.ReadDir(w.cfg.UploadsDir)
	if err != nil {
		return eris.Wrapf(err, "ingest: read %s", w.cfg.UploadsDir)
	}
	for _, entry := range entries {
		if entry.IsDir() || skipName(entry.Name()) {
			continue
		}
		w.submit(ctx, filepath.Join(w.cfg.UploadsDir, entry.Name()), log)
	}
	return nil
}

// schedule (re)arms the settle timer for a path. Each write event
// pushes processing back until the file has been quiet for the full
// delay.
func (w *Watcher) schedule(ctx context.Context, path string, log *zap.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settleDelay())
		return
	}
	w.pending[path] = time.AfterFunc(w.settleDelay(), func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.submit(ctx, path, log)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// submit runs the file through the pipeline, bounded by the
// concurrency semaphore.
func (w *Watcher) submit(ctx context.Context, path string, log *zap.Logger) {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	go func() {
		defer func() { <-w.sem }()

		res, err := w.proc.ProcessFile(ctx, path, "upload")
		if err != nil {
			log.Error("ingest: processing failed",
				zap.String("file", path),
				zap.Error(err),
			)
			return
		}
		log.Info("ingest: file processed",
			zap.String("file", path),
			zap.String("status", res.Status),
			zap.String("claim_id", res.ClaimID),
		)
	}()
}
