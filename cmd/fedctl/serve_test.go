package fedctl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore_MemoryScheme(t *testing.T) {
	st, closeFn, err := openStore(context.Background(), "memory://")
	require.NoError(t, err)
	defer closeFn()

	assert.NotNil(t, st)
}

func TestOpenStore_NonMemorySchemeAttemptsSQLOpen(t *testing.T) {
	// sqlstore.Open validates/pings the DSN, so an unreachable one must
	// fail fast rather than silently falling back to memstore.
	_, _, err := openStore(context.Background(), "postgres://unreachable.invalid/db")
	assert.Error(t, err)
}
