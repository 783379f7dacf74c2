// Package tuning loads pipeline parameters from a YAML file and reloads them
// when the file changes, so batch size and chunking can be adjusted without
// a restart.
package tuning

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/voicetyped/scribe/internal/transcription/pipeline"
)

// Params overrides the configured pipeline settings. Zero fields keep the
// configured value.
type Params struct {
	BatchSize        int     `yaml:"batch_size"`
	ChunkDurationSec float64 `yaml:"chunk_duration_sec"`
	SearchWindowSec  float64 `yaml:"search_window_sec"`
	DropPolicy       string  `yaml:"drop_policy"`
	RetryAttempts    int     `yaml:"retry_attempts"`
}

// Validate rejects values that would break segmentation or batching.
func (p Params) Validate() error {
	var errs []error
	if p.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", p.BatchSize))
	}
	if p.ChunkDurationSec < 0 {
		errs = append(errs, fmt.Errorf("chunk_duration_sec must be positive, got %g", p.ChunkDurationSec))
	}
	if p.SearchWindowSec < 0 {
		errs = append(errs, fmt.Errorf("search_window_sec must not be negative, got %g", p.SearchWindowSec))
	}
	if p.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry_attempts must not be negative, got %d", p.RetryAttempts))
	}
	if _, err := pipeline.ParseDropPolicy(p.DropPolicy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Loader holds the most recent valid Params read from path.
type Loader struct {
	path string

	mu       sync.RWMutex
	current  Params
	loaded   bool
	onReload func(Params)
}

// NewLoader creates a loader for the given file. Nothing is read until Load.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and validates the file. On error the previous Params stay in
// effect.
func (l *Loader) Load() (Params, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Params{}, fmt.Errorf("read tuning file %q: %w", l.path, err)
	}

	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("parse YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, fmt.Errorf("invalid tuning file %q: %w", l.path, err)
	}

	l.mu.Lock()
	l.current = p
	l.loaded = true
	l.mu.Unlock()
	return p, nil
}

// OnReload registers fn to run after each successful reload triggered by
// WatchAndReload.
func (l *Loader) OnReload(fn func(Params)) {
	l.mu.Lock()
	l.onReload = fn
	l.mu.Unlock()
}

// Current returns the last successfully loaded Params.
func (l *Loader) Current() (Params, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current, l.loaded
}

// WatchAndReload watches the file's directory, since editors often replace
// files rather than write them in place, and reloads on change. It blocks
// until done is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}
	name := filepath.Clean(l.path)

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if p, err := l.Load(); err != nil {
					slog.Warn("tuning: reload failed, keeping previous values", "path", l.path, "error", err)
				} else {
					slog.Info("tuning: reloaded", "path", l.path, "batch_size", p.BatchSize,
						"chunk_duration_sec", p.ChunkDurationSec, "drop_policy", p.DropPolicy)
					l.mu.RLock()
					fn := l.onReload
					l.mu.RUnlock()
					if fn != nil {
						fn(p)
					}
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
