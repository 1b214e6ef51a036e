package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Source fetches the raw dataset document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the dataset from local disk, the simplest deployment.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return data, nil
}

// Loader performs the one-time dataset load and hands out the immutable
// result. A failed load is terminal until an explicit Reload succeeds;
// there is no automatic retry.
type Loader struct {
	mu  sync.RWMutex
	src Source
	cat *Catalog
	err error
}

func NewLoader(src Source) *Loader {
	return &Loader{src: src, err: fmt.Errorf("catalog not loaded yet")}
}

// Load fetches and parses the dataset, replacing the current snapshot on
// success. On failure the previous snapshot, if any, stays in place and the
// error is retained as the load status.
func (l *Loader) Load(ctx context.Context) error {
	data, err := l.src.Fetch(ctx)
	if err == nil {
		var cat *Catalog
		cat, err = Parse(data)
		if err == nil {
			l.mu.Lock()
			l.cat = cat
			l.err = nil
			l.mu.Unlock()
			slog.Info("catalog: loaded", "categories", len(cat.Categories), "items", len(cat.Items))
			return nil
		}
	}

	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	slog.Error("catalog: load failed", "error", err)
	return err
}

// Current returns the loaded catalog, or the load error when none is
// available. Callers surface the error as a status message, never a crash.
func (l *Loader) Current() (*Catalog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cat != nil {
		return l.cat, nil
	}
	return nil, l.err
}
