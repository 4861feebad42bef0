package textgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func managerWithKeys(t *testing.T, free []string, paid string) *KeyManager {
	t.Helper()
	km := &KeyManager{now: time.Now}
	for _, v := range free {
		km.keys = append(km.keys, &apiKey{value: v, name: "free", active: true})
	}
	if paid != "" {
		km.keys = append(km.keys, &apiKey{value: paid, name: "paid", paid: true, active: true})
	}
	return km
}

func TestNextPrefersFreeKeys(t *testing.T) {
	km := managerWithKeys(t, []string{"free-1"}, "paid-1")

	key, err := km.Next()
	require.NoError(t, err)
	assert.Equal(t, "free-1", key)
}

func TestNextFallsBackToPaidKey(t *testing.T) {
	km := managerWithKeys(t, []string{"free-1"}, "paid-1")
	km.Deactivate("free-1")

	key, err := km.Next()
	require.NoError(t, err)
	assert.Equal(t, "paid-1", key)
}

func TestNextErrorsWhenPoolExhausted(t *testing.T) {
	km := managerWithKeys(t, []string{"free-1"}, "")
	km.Deactivate("free-1")

	_, err := km.Next()
	assert.ErrorIs(t, err, ErrNoKeysAvailable)
}

func TestDailyQuotaExhaustsFreeKey(t *testing.T) {
	km := managerWithKeys(t, []string{"free-1"}, "paid-1")

	for i := 0; i < freeDayQuota; i++ {
		key, err := km.Next()
		require.NoError(t, err)
		require.Equal(t, "free-1", key)
	}

	key, err := km.Next()
	require.NoError(t, err)
	assert.Equal(t, "paid-1", key, "over-quota free key must yield to the paid key")
}

func TestDayBoundaryReactivatesKeys(t *testing.T) {
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	km := managerWithKeys(t, []string{"free-1"}, "")
	km.now = func() time.Time { return day }

	km.Deactivate("free-1")
	_, err := km.Next()
	require.ErrorIs(t, err, ErrNoKeysAvailable)

	km.now = func() time.Time { return day.Add(24 * time.Hour) }
	key, err := km.Next()
	require.NoError(t, err)
	assert.Equal(t, "free-1", key)
	assert.Equal(t, 1, km.Available())
}

func TestNewKeyManagerFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY_1", "env-free")
	t.Setenv("GOOGLE_API_KEY_8", "env-paid")

	km := NewKeyManagerFromEnv()
	assert.Equal(t, 2, km.Available())

	key, err := km.Next()
	require.NoError(t, err)
	assert.Equal(t, "env-free", key)
}
