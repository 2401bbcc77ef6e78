// Package ingest turns raw CSV order exports into the cleaned
// stores/orders/customers tables of the master store. Raw exports embed
// unescaped JSON objects whose commas break naive CSV parsing, so every
// line passes through a brace-aware escape step before parsing.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/storequery/storequery/internal/storage"
)

// Source enumerates raw CSV files and opens them for reading.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirSource reads raw exports from a local directory.
type DirSource struct {
	Dir string
}

func (s DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %q: %w", s.Dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("open raw file %q: %w", name, err)
	}
	return f, nil
}

// ObjectSource reads raw exports from the object store.
type ObjectSource struct {
	Store storage.ObjectStore
}

func (s ObjectSource) List(ctx context.Context) ([]string, error) {
	infos, err := s.Store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".csv") {
			names = append(names, info.Key)
		}
	}
	return names, nil
}

func (s ObjectSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.Store.Get(ctx, name)
}

// Sink receives the cleaned per-table CSV outputs.
type Sink interface {
	Write(ctx context.Context, name string, body []byte) error
}

// DirSink writes cleaned CSVs into a local directory.
type DirSink struct {
	Dir string
}

func (s DirSink) Write(_ context.Context, name string, body []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %q: %w", s.Dir, err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), body, 0o644); err != nil {
		return fmt.Errorf("write cleaned file %q: %w", name, err)
	}
	return nil
}

// ObjectSink writes cleaned CSVs back to the object store under
// cleaned/.
type ObjectSink struct {
	Store storage.ObjectStore
}

func (s ObjectSink) Write(ctx context.Context, name string, body []byte) error {
	_, err := s.Store.Put(ctx, "cleaned/"+name, strings.NewReader(string(body)), int64(len(body)),
		storage.PutOptions{ContentType: "text/csv"})
	return err
}
