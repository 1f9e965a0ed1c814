package cart

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	_, err := m.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Save(ctx, []byte("abc")))
	data, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cart.json")
	f := NewFileStorage(path)

	_, err := f.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.Save(ctx, []byte(`{"version":1}`)))
	require.NoError(t, f.Save(ctx, []byte(`{"version":1,"items":[]}`)))

	data, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"items":[]}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStorage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFileStorage(filepath.Join(t.TempDir(), "cart.json"))
	assert.Error(t, f.Save(ctx, []byte("{}")))
}

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	r := NewRedisStorage(client, "till-1")

	_, err := r.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Save(ctx, []byte(`{"version":1,"items":[]}`)))
	assert.True(t, mr.Exists("pos:cart:till-1"))
	assert.Equal(t, time.Duration(0), mr.TTL("pos:cart:till-1"))

	data, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"items":[]}`, string(data))
}

func TestRedisStorage_ServerDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedisStorage(client, "till-1")
	mr.SetError("ERR server down")

	_, err := r.Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_WithRedisStorage(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, "till-2")

	s := Open(context.Background(), storage, testLogger())
	p := paracetamol()
	require.NoError(t, s.AddItem(p, 2, p.SellingPrice, decimal.Zero))
	s.Close()

	restored := Open(context.Background(), storage, testLogger())
	defer restored.Close()
	assertDecimal(t, "160.5", restored.Total())
}
