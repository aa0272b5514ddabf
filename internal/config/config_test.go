package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.True(t, cfg.EntryFee.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.WinnerPayout.Equal(decimal.NewFromInt(16)))
	assert.True(t, cfg.PlatformFee.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 3*time.Minute, cfg.MatchDuration)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "refund", cfg.NoWinnerPolicy)

	fees, err := cfg.FeeSchedule()
	require.NoError(t, err)
	assert.True(t, fees.PrizePool.Equal(decimal.NewFromInt(20)))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", " Redis ")
	t.Setenv("ENTRY_FEE", "2.50")
	t.Setenv("WINNER_PAYOUT", "4.50")
	t.Setenv("PLATFORM_FEE", "0.50")
	t.Setenv("MATCH_DURATION", "90s")
	t.Setenv("DEVELOPER_CONTACTS", "dev@example.com, +15550001111 ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.StoreDriver)
	assert.Equal(t, "2.5", cfg.EntryFee.String())
	assert.Equal(t, 90*time.Second, cfg.MatchDuration)
	assert.Equal(t, []string{"dev@example.com", "+15550001111"}, cfg.DeveloperContacts)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{}},
		{name: "unbalanced fees", env: map[string]string{"JWT_SECRET": "s", "WINNER_PAYOUT": "17"}},
		{name: "unknown driver", env: map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "mongo"}},
		{name: "postgres without url", env: map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "postgres"}},
		{name: "s3 without bucket", env: map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "s3"}},
		{name: "zero duration", env: map[string]string{"JWT_SECRET": "s", "MATCH_DURATION": "0s"}},
		{name: "unknown no-winner policy", env: map[string]string{"JWT_SECRET": "s", "NO_WINNER_POLICY": "keep"}},
		{name: "sub-second duration", env: map[string]string{"JWT_SECRET": "s", "MATCH_DURATION": "1500ms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
