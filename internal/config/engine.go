package config

import (
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EngineConfig tunes the evaluation hot path. It is loaded from an
// optional engine.yml and hot-reloaded, so operators can adjust refresh
// cadence and telemetry buffering without restarting evaluation.
type EngineConfig struct {
	RefreshInterval      time.Duration `mapstructure:"refreshInterval"`
	RefreshTimeout       time.Duration `mapstructure:"refreshTimeout"`
	TelemetryBufferSize  int           `mapstructure:"telemetryBufferSize"`
	EvaluateRatePerSec   float64       `mapstructure:"evaluateRatePerSec"`
	EvaluateBurst        int           `mapstructure:"evaluateBurst"`
	TelemetryFlushWindow time.Duration `mapstructure:"telemetryFlushWindow"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RefreshInterval:      30 * time.Second,
		RefreshTimeout:       10 * time.Second,
		TelemetryBufferSize:  4096,
		EvaluateRatePerSec:   500,
		EvaluateBurst:        1000,
		TelemetryFlushWindow: time.Second,
	}
}

// EngineConfigHolder exposes the current EngineConfig behind an atomic
// swap so hot-path readers never lock.
type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

func NewEngineConfigHolder() (*EngineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("engine")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/beacon/config")
	v.AddConfigPath("/etc/beacon")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEngineConfig()
	v.SetDefault("engine.refreshInterval", defaults.RefreshInterval)
	v.SetDefault("engine.refreshTimeout", defaults.RefreshTimeout)
	v.SetDefault("engine.telemetryBufferSize", defaults.TelemetryBufferSize)
	v.SetDefault("engine.evaluateRatePerSec", defaults.EvaluateRatePerSec)
	v.SetDefault("engine.evaluateBurst", defaults.EvaluateBurst)
	v.SetDefault("engine.telemetryFlushWindow", defaults.TelemetryFlushWindow)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg EngineConfig
	if err := v.UnmarshalKey("engine", &cfg); err != nil {
		return nil, err
	}
	cfg = sanitizeEngineConfig(cfg)

	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineConfig
		if err := v.UnmarshalKey("engine", &updated); err != nil {
			log.Printf("[engine-config] reload failed: %v", err)
			return
		}
		holder.current.Store(sanitizeEngineConfig(updated))
		log.Printf("[engine-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *EngineConfigHolder) Get() EngineConfig {
	return h.current.Load().(EngineConfig)
}

// Store replaces the current config. Exposed for tests and for callers
// that build a holder without a backing file.
func (h *EngineConfigHolder) Store(cfg EngineConfig) {
	h.current.Store(sanitizeEngineConfig(cfg))
}

func sanitizeEngineConfig(cfg EngineConfig) EngineConfig {
	defaults := DefaultEngineConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaults.RefreshTimeout
	}
	if cfg.TelemetryBufferSize <= 0 {
		cfg.TelemetryBufferSize = defaults.TelemetryBufferSize
	}
	if cfg.EvaluateRatePerSec <= 0 {
		cfg.EvaluateRatePerSec = defaults.EvaluateRatePerSec
	}
	if cfg.EvaluateBurst <= 0 {
		cfg.EvaluateBurst = defaults.EvaluateBurst
	}
	if cfg.TelemetryFlushWindow <= 0 {
		cfg.TelemetryFlushWindow = defaults.TelemetryFlushWindow
	}
	return cfg
}
