package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreRoundtrip(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	payload := []byte("attachment payload")
	url, size, err := store.Save(ctx, "report.pdf", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "/media/report.pdf", url)
	assert.EqualValues(t, len(payload), size)

	rc, err := store.Open(ctx, "report.pdf")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDiskStoreStripsPathComponents(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	url, _, err := store.Save(context.Background(), "../../escape.txt", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "/media/escape.txt", url)

	// The blob landed inside the root, not above it.
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestDiskStoreOpenMissing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "nope.bin")
	assert.Error(t, err)
}
