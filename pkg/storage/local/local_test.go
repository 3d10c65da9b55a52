package local

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/docflow/pkg/logger"
)

func TestPutAndGet(t *testing.T) {
	s, err := New(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	key, err := s.Put(ctx, bytes.NewReader([]byte("hello")), "doc-1_invoice.pdf")
	require.NoError(t, err)
	assert.Equal(t, "doc-1_invoice.pdf", key)

	r, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestKeysAreSanitized(t *testing.T) {
	s, err := New(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	// a traversal attempt lands in the storage dir under its base name
	key, err := s.Put(ctx, bytes.NewReader([]byte("x")), "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "passwd", key)

	_, err = s.Get(ctx, "passwd")
	assert.NoError(t, err)
}

func TestGetMissing(t *testing.T) {
	s, err := New(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nope.pdf")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	s, err := New(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Put(ctx, bytes.NewReader([]byte("x")), "a.pdf")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "a.pdf"))

	_, err = s.Get(ctx, "a.pdf")
	assert.Error(t, err)
}

func TestPurgeOlderThan(t *testing.T) {
	s, err := New(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Put(ctx, bytes.NewReader([]byte("old")), "old.pdf")
	require.NoError(t, err)

	// everything written so far is older than a future threshold
	require.NoError(t, s.PurgeOlderThan(ctx, time.Now().Add(time.Minute)))
	_, err = s.Get(ctx, "old.pdf")
	assert.Error(t, err)

	_, err = s.Put(ctx, bytes.NewReader([]byte("new")), "new.pdf")
	require.NoError(t, err)
	require.NoError(t, s.PurgeOlderThan(ctx, time.Now().Add(-time.Minute)))
	_, err = s.Get(ctx, "new.pdf")
	assert.NoError(t, err)
}
