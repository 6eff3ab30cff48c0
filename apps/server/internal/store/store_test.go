package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scoreDoc struct {
	Name    string    `json:"name" validate:"required"`
	WinRate float64   `json:"winRate" validate:"gte=0,lte=1"`
	Rewards []float64 `json:"rewards" validate:"max=100"`
}

type bulkDoc struct {
	Items []int  `json:"items"`
	Blob  string `json:"blob"`
}

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	return New(b), dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()

	in := scoreDoc{Name: "ai", WinRate: 0.4, Rewards: []float64{1, -0.5}}
	require.NoError(t, s.Save(ctx, "metrics", in))

	var out scoreDoc
	require.NoError(t, s.Load(ctx, "metrics", &out))
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not survive a save")
	assert.Equal(t, "metrics.json", entries[0].Name())
}

func TestSaveRejectsSchemaViolationAndKeepsOldBody(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "metrics", scoreDoc{Name: "ai", WinRate: 0.5}))
	before, err := os.ReadFile(filepath.Join(dir, "metrics.json"))
	require.NoError(t, err)

	err = s.Save(ctx, "metrics", scoreDoc{Name: "ai", WinRate: 1.5})
	require.Error(t, err)
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "save", pe.Op)
	assert.ErrorIs(t, err, ErrSchema)

	after, err := os.ReadFile(filepath.Join(dir, "metrics.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestKeysAreRestricted(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "../escape", "a/b", "with space", "dot.json", strings.Repeat("k", 200)} {
		err := s.Save(ctx, key, scoreDoc{Name: "x"})
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
	assert.NoError(t, ValidateKey("patternRecord-player_1"))
}

func TestLoadMissingIsNotFound(t *testing.T) {
	s, _ := newFileStore(t)
	var out scoreDoc
	err := s.Load(context.Background(), "nothing", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSizeAndArrayLimits(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	err := s.Save(ctx, "bulk", bulkDoc{Items: make([]int, MaxArrayElements+1)})
	assert.ErrorIs(t, err, ErrTooManyElements)

	require.NoError(t, s.Save(ctx, "bulk", bulkDoc{Items: make([]int, MaxArrayElements)}))

	err = s.Save(ctx, "bulk", bulkDoc{Blob: strings.Repeat("x", MaxDocumentBytes)})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoadValidatesStoredBody(t *testing.T) {
	b := NewMemoryBackend()
	s := New(b)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "metrics", []byte(`{"name":"ai","winRate":3}`)))
	var out scoreDoc
	assert.ErrorIs(t, s.Load(ctx, "metrics", &out), ErrSchema)

	require.NoError(t, b.Write(ctx, "metrics", []byte(`{"name":"ai","winRate":0.2,"extra":true}`)))
	assert.ErrorIs(t, s.Load(ctx, "metrics", &out), ErrSchema, "unknown fields are rejected")

	require.NoError(t, b.Write(ctx, "metrics", []byte(`{"name":"ai","winRate":0.2`)))
	assert.Error(t, s.Load(ctx, "metrics", &out))

	big := `{"items":[` + strings.TrimSuffix(strings.Repeat("1,", MaxArrayElements+1), ",") + `]}`
	require.NoError(t, b.Write(ctx, "bulk", []byte(big)))
	var bulk bulkDoc
	assert.ErrorIs(t, s.Load(ctx, "bulk", &bulk), ErrTooManyElements)
}

func TestNestedArraysCountedSeparately(t *testing.T) {
	body := []byte(`{"a":[[1,2,3],[4,5]],"b":{"c":[1,2]}}`)
	assert.NoError(t, checkArrayLimits(body, 3))
	assert.ErrorIs(t, checkArrayLimits(body, 2), ErrTooManyElements)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "gone", scoreDoc{Name: "x"}))
	require.NoError(t, s.Delete(ctx, "gone"))
	require.NoError(t, s.Delete(ctx, "gone"))

	var out scoreDoc
	assert.ErrorIs(t, s.Load(ctx, "gone", &out), ErrNotFound)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"":       "file",
		"file":   "file",
		"memory": "memory",
		"local":  "sqlite",
		"badger": "badger",
	}
	for mode, want := range cases {
		b, got, err := Open(Options{Mode: mode, Dir: filepath.Join(dir, "m-"+want+mode)})
		require.NoError(t, err, mode)
		assert.Equal(t, want, got)
		require.NoError(t, b.Close())
	}

	_, _, err := Open(Options{Mode: "tape"})
	assert.Error(t, err)
}

func TestBackendsShareContract(t *testing.T) {
	dir := t.TempDir()
	sqliteB, err := NewSQLiteBackend(filepath.Join(dir, "docs.db"))
	require.NoError(t, err)
	badgerB, err := NewBadgerBackend(filepath.Join(dir, "badger"))
	require.NoError(t, err)
	fileB, err := NewFileBackend(filepath.Join(dir, "files"))
	require.NoError(t, err)

	backends := map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqliteB,
		"badger": badgerB,
		"file":   fileB,
	}
	ctx := context.Background()
	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			s := New(b)

			var out scoreDoc
			require.ErrorIs(t, s.Load(ctx, "policyTable", &out), ErrNotFound)

			require.NoError(t, s.Save(ctx, "policyTable", scoreDoc{Name: "v1", WinRate: 0.1}))
			require.NoError(t, s.Save(ctx, "policyTable", scoreDoc{Name: "v2", WinRate: 0.2}))
			require.NoError(t, s.Load(ctx, "policyTable", &out))
			assert.Equal(t, "v2", out.Name)

			require.NoError(t, s.Delete(ctx, "policyTable"))
			require.ErrorIs(t, s.Load(ctx, "policyTable", &out), ErrNotFound)
		})
	}
}
