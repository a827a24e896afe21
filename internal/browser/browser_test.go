package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, "127.0.0.1", cfg.DebugHost)
	assert.Equal(t, 9222, cfg.DebugPort)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, 60*time.Second, cfg.CleanupInterval)
	assert.Equal(t, 30*time.Second, cfg.NavigateTimeout)
	assert.Equal(t, 20*time.Second, cfg.SelectorTimeout)
	assert.Equal(t, 2*time.Second, cfg.RenderDelay)
}

func TestConfigDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{DebugHost: "10.0.0.5", DebugPort: 9333, MaxConcurrent: 4}.withDefaults()

	assert.Equal(t, "10.0.0.5", cfg.DebugHost)
	assert.Equal(t, 9333, cfg.DebugPort)
	assert.Equal(t, 4, cfg.MaxConcurrent)
}

func TestDetectDailyLimit(t *testing.T) {
	cases := map[string]bool{
		"You have reached your daily limit of searches": true,
		"Search limit exceeded, come back tomorrow":     true,
		"Welcome to the search results page":             false,
		"": false,
	}

	for content, want := range cases {
		assert.Equal(t, want, detectDailyLimit(content), content)
	}
}

func TestBotCheckDetectedError(t *testing.T) {
	err := &BotCheckDetected{Source: "filae"}
	assert.Contains(t, err.Error(), "filae")
	assert.Contains(t, err.Error(), "human intervention")
}

func TestDailyLimitReachedError(t *testing.T) {
	err := &DailyLimitReached{Source: "geneanet"}
	assert.Contains(t, err.Error(), "geneanet")
	assert.Contains(t, err.Error(), "daily search limit")
}
