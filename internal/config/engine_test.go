package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineConfigHolderSanitizes(t *testing.T) {
	holder := &EngineConfigHolder{}
	holder.Store(EngineConfig{
		RefreshInterval:    -time.Second,
		EvaluateRatePerSec: 0,
	})

	cfg := holder.Get()
	defaults := DefaultEngineConfig()
	assert.Equal(t, defaults.RefreshInterval, cfg.RefreshInterval)
	assert.Equal(t, defaults.RefreshTimeout, cfg.RefreshTimeout)
	assert.Equal(t, defaults.TelemetryBufferSize, cfg.TelemetryBufferSize)
	assert.Equal(t, defaults.EvaluateRatePerSec, cfg.EvaluateRatePerSec)
}

func TestEngineConfigHolderKeepsValidValues(t *testing.T) {
	holder := &EngineConfigHolder{}
	holder.Store(EngineConfig{
		RefreshInterval:      5 * time.Second,
		RefreshTimeout:       2 * time.Second,
		TelemetryBufferSize:  128,
		EvaluateRatePerSec:   50,
		EvaluateBurst:        100,
		TelemetryFlushWindow: 250 * time.Millisecond,
	})

	cfg := holder.Get()
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 128, cfg.TelemetryBufferSize)
	assert.Equal(t, float64(50), cfg.EvaluateRatePerSec)
}
