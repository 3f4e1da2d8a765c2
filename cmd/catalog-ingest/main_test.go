package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
)

type recordingWriter struct {
	mu    sync.Mutex
	items []catalog.Item
	err   error
}

func (w *recordingWriter) Upsert(_ context.Context, items []catalog.Item) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	w.items = append(w.items, items...)
	return int64(len(items)), nil
}

func writeShard(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestIngest(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeShard(t, dir, "menu1.jsonl.gz",
			`{"id":"espresso","name":"Espresso","price":"3.50"}`,
			`{"id":"latte","name":"Latte","price":"4.95"}`,
		),
		writeShard(t, dir, "menu2.jsonl.gz",
			`{"id":"latte","name":"Latte","price":"4.95"}`,
			`{"id":"croissant","name":"Croissant","price":"4.25"}`,
			`{"id":"broken","price":`,
		),
	}

	w := &recordingWriter{}
	stats, err := ingest(context.Background(), files, w)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.read)
	assert.Equal(t, 1, stats.duplicates)
	assert.Equal(t, 1, stats.malformed)
	assert.Equal(t, int64(3), stats.written)

	prices := make(map[string]int64)
	for _, it := range w.items {
		prices[it.ID] = it.PriceCents
	}
	assert.Equal(t, map[string]int64{"espresso": 350, "latte": 495, "croissant": 425}, prices)
}

func TestIngest_WriterError(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeShard(t, dir, "menu1.jsonl.gz", `{"id":"espresso","name":"Espresso","price":"3.50"}`)}

	_, err := ingest(context.Background(), files, &recordingWriter{err: errors.New("db down")})
	require.ErrorContains(t, err, "db down")
}

func TestIngest_MissingShard(t *testing.T) {
	_, err := ingest(context.Background(), []string{filepath.Join(t.TempDir(), "nope.gz")}, &recordingWriter{})
	require.Error(t, err)
}

func TestIDSet(t *testing.T) {
	s := newIDSet()
	assert.True(t, s.add("espresso"))
	assert.True(t, s.add("latte"))
	assert.False(t, s.add("espresso"))
	assert.False(t, s.add("latte"))
}
