package textgen

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoKeysAvailable is returned when every configured key is either
// deactivated or over its daily quota.
var ErrNoKeysAvailable = errors.New("no API keys available")

const (
	maxFreeKeys   = 7
	freeDayQuota  = 1500
	paidKeyEnvVar = "GOOGLE_API_KEY_8"
)

type apiKey struct {
	value     string
	name      string
	paid      bool
	active    bool
	usedDay   string
	usedToday int
}

// KeyManager rotates generation API keys. Free-tier keys carry a daily
// request quota that resets at the day boundary; the paid key has none
// and is used last. Keys that return auth or quota errors are
// deactivated until the next day.
type KeyManager struct {
	mu   sync.Mutex
	keys []*apiKey
	now  func() time.Time
}

// NewKeyManagerFromEnv loads GOOGLE_API_KEY_1..7 (free tier) and
// GOOGLE_API_KEY_8 (paid) from the environment.
func NewKeyManagerFromEnv() *KeyManager {
	km := &KeyManager{now: time.Now}
	for i := 1; i <= maxFreeKeys; i++ {
		name := fmt.Sprintf("GOOGLE_API_KEY_%d", i)
		if v := os.Getenv(name); v != "" {
			km.keys = append(km.keys, &apiKey{value: v, name: name, active: true})
		}
	}
	if v := os.Getenv(paidKeyEnvVar); v != "" {
		km.keys = append(km.keys, &apiKey{value: v, name: paidKeyEnvVar, paid: true, active: true})
	}
	log.Info().Int("keys", len(km.keys)).Msg("loaded text generation API keys")
	return km
}

func (km *KeyManager) day() string {
	return km.now().Format("2006-01-02")
}

// resetIfNewDay clears usage and reactivates keys at the day boundary.
// Caller holds km.mu.
func (km *KeyManager) resetIfNewDay(k *apiKey) {
	today := km.day()
	if k.usedDay == today {
		return
	}
	if k.usedDay != "" {
		k.usedToday = 0
		k.active = true
	}
	k.usedDay = today
}

// Next returns the next usable key. Free keys are preferred; the paid
// key serves only when all free keys are exhausted.
func (km *KeyManager) Next() (string, error) {
	km.mu.Lock()
	defer km.mu.Unlock()

	var paid *apiKey
	for _, k := range km.keys {
		km.resetIfNewDay(k)
		if !k.active {
			continue
		}
		if k.paid {
			paid = k
			continue
		}
		if k.usedToday >= freeDayQuota {
			continue
		}
		k.usedToday++
		return k.value, nil
	}
	if paid != nil {
		paid.usedToday++
		return paid.value, nil
	}
	return "", ErrNoKeysAvailable
}

// Deactivate marks a key unusable until the next daily reset. Used
// after auth or quota errors from the provider.
func (km *KeyManager) Deactivate(value string) {
	km.mu.Lock()
	defer km.mu.Unlock()
	for _, k := range km.keys {
		if k.value == value {
			k.active = false
			log.Warn().Str("key", k.name).Msg("deactivated text generation API key")
			return
		}
	}
}

// Available counts keys currently usable.
func (km *KeyManager) Available() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	n := 0
	for _, k := range km.keys {
		km.resetIfNewDay(k)
		if k.active && (k.paid || k.usedToday < freeDayQuota) {
			n++
		}
	}
	return n
}
