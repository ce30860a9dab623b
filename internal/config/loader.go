package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "JOBQUEUE"

var (
	configMu  sync.Mutex
	appConfig *Config
)

// envSpec documents one environment variable binding, surfaced via
// getEnvSpecs for tests.
type envSpec struct {
	Name string // e.g. JOBQUEUE_PORT
	Key  string // viper key, e.g. server.port
}

func specs() []envSpec {
	return []envSpec{
		{Name: envPrefix + "_HOST", Key: "server.host"},
		{Name: envPrefix + "_PORT", Key: "server.port"},
		{Name: envPrefix + "_READ_TIMEOUT", Key: "server.read_timeout"},
		{Name: envPrefix + "_WRITE_TIMEOUT", Key: "server.write_timeout"},
		{Name: envPrefix + "_IDLE_TIMEOUT", Key: "server.idle_timeout"},
		{Name: envPrefix + "_SHUTDOWN_TIMEOUT", Key: "server.shutdown_timeout"},
		{Name: envPrefix + "_LOG_LEVEL", Key: "logging.level"},
		{Name: envPrefix + "_LOG_PROFILE", Key: "logging.profile"},
		{Name: envPrefix + "_METRICS_ENABLED", Key: "metrics.enabled"},
		{Name: envPrefix + "_METRICS_PORT", Key: "metrics.port"},
		{Name: envPrefix + "_HEALTH_ENABLED", Key: "health.enabled"},
		{Name: envPrefix + "_DEBUG_ENABLED", Key: "debug.enabled"},
		{Name: envPrefix + "_DEBUG_PPROF", Key: "debug.pprof_enabled"},
		{Name: envPrefix + "_WORKERS", Key: "workers"},
		{Name: envPrefix + "_STORE_PATH", Key: "store.path"},
		{Name: envPrefix + "_STORE_URL", Key: "store.url"},
		{Name: envPrefix + "_STORE_AUTH_TOKEN", Key: "store.auth_token"},
	}
}

// getEnvSpecs exposes the env var bindings to this package's tests.
func getEnvSpecs() []envSpec {
	return specs()
}

// flattenOverrides walks a nested overrides map (e.g.
// {"server": {"port": 5000}}) and calls set for every leaf with its
// dotted-path key (e.g. "server.port").
func flattenOverrides(prefix string, m map[string]any, set func(key string, val any)) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenOverrides(key, nested, set)
			continue
		}
		set(key, v)
	}
}

// Load resolves the runtime Config from defaults, environment variables
// (JOBQUEUE_*), and then the optional runtime overrides map, in that
// ascending precedence order, and caches the result for GetConfig. Runtime
// overrides are applied via Set, viper's highest-precedence tier, so they
// beat both bound env vars and defaults regardless of merge order.
func Load(_ context.Context, overrides ...map[string]any) (*Config, error) {
	v := viper.New()

	def := defaults()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", def.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.profile", def.Logging.Profile)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.port", def.Metrics.Port)
	v.SetDefault("health.enabled", def.Health.Enabled)
	v.SetDefault("debug.enabled", def.Debug.Enabled)
	v.SetDefault("debug.pprof_enabled", def.Debug.PprofEnabled)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("store.url", def.Store.URL)
	v.SetDefault("store.auth_token", def.Store.AuthToken)

	for _, s := range specs() {
		if err := v.BindEnv(s.Key, s.Name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", s.Name, err)
		}
	}

	if len(overrides) > 0 && overrides[0] != nil {
		flattenOverrides("", overrides[0], v.Set)
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently Loaded Config, or nil if Load hasn't
// run yet in this process.
func GetConfig() *Config {
	configMu.Lock()
	defer configMu.Unlock()
	return appConfig
}
