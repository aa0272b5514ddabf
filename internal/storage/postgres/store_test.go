package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeduel-backend/internal/storage"
)

// TestStoreIntegration exercises the store against a live Postgres.
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_POSTGRES_INTEGRATION") != "true" {
		t.Skip("set RUN_POSTGRES_INTEGRATION=true to run this integration test")
	}

	_ = godotenv.Load("../../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dbURL)
	require.NoError(t, err)
	defer store.Close()

	prefix := fmt.Sprintf("it_%d/", time.Now().UnixNano())
	defer func() {
		keys, _ := store.List(ctx, prefix)
		for _, k := range keys {
			_ = store.Delete(ctx, k)
		}
	}()

	_, err = store.Get(ctx, prefix+"missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Put(ctx, prefix+"a", []byte("one")))
	require.NoError(t, store.Put(ctx, prefix+"a", []byte("two")))
	require.NoError(t, store.Put(ctx, prefix+"b", []byte("three")))

	v, err := store.Get(ctx, prefix+"a")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), v)

	keys, err := store.List(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{prefix + "a", prefix + "b"}, keys)

	require.NoError(t, store.Delete(ctx, prefix+"a"))
	_, err = store.Get(ctx, prefix+"a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
