package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalFileStorage {
	t.Helper()
	s, err := NewLocalFileStorage(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func TestLocalFileStorage_SaveAndRead(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "invoices/user-1/inv-1.jpg", []byte("jpeg")))
	assert.True(t, s.Exists(ctx, "invoices/user-1/inv-1.jpg"))

	content, err := s.Read(ctx, "invoices/user-1/inv-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), content)

	// overwrite replaces content
	require.NoError(t, s.Save(ctx, "invoices/user-1/inv-1.jpg", []byte("jpeg-v2")))
	content, err = s.Read(ctx, "invoices/user-1/inv-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-v2"), content)

	entries, err := os.ReadDir(filepath.Dir(s.GetFullPath("invoices/user-1/inv-1.jpg")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalFileStorage_ReadMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Read(context.Background(), "invoices/missing.jpg")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, s.Exists(context.Background(), "invoices/missing.jpg"))
}

func TestLocalFileStorage_Delete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a.jpg", []byte("x")))
	require.NoError(t, s.Delete(ctx, "a.jpg"))
	assert.False(t, s.Exists(ctx, "a.jpg"))
	assert.NoError(t, s.Delete(ctx, "a.jpg"))
}

func TestLocalFileStorage_RejectsEscapingPaths(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, p := range []string{"../outside.jpg", "invoices/../../outside.jpg", "", "."} {
		t.Run(p, func(t *testing.T) {
			assert.Error(t, s.Save(ctx, p, []byte("x")))
			_, err := s.Read(ctx, p)
			assert.Error(t, err)
			assert.False(t, s.Exists(ctx, p))
		})
	}
}
