package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togetheros/rollout/pkg/config"
)

type defaultsConfig struct {
	Name    string        `env:"CFG_TEST_NAME" envDefault:"controlplane"`
	TTL     time.Duration `env:"CFG_TEST_TTL" envDefault:"30s"`
	Enabled bool          `env:"CFG_TEST_ENABLED" envDefault:"true"`
}

type requiredConfig struct {
	Value string `env:"CFG_TEST_REQUIRED,required"`
}

type cachedConfig struct {
	Value string `env:"CFG_TEST_CACHED" envDefault:"first"`
}

type fileConfig struct {
	Value string   `env:"CFG_TEST_FILE_VALUE"`
	List  []string `env:"CFG_TEST_LIST" envSeparator:","`
}

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Parse[defaultsConfig]()
		require.NoError(t, err)
		assert.Equal(t, "controlplane", cfg.Name)
		assert.Equal(t, 30*time.Second, cfg.TTL)
		assert.True(t, cfg.Enabled)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("CFG_TEST_TTL", "5s")
		t.Setenv("CFG_TEST_ENABLED", "false")
		cfg, err := config.Parse[defaultsConfig]()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.TTL)
		assert.False(t, cfg.Enabled)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := config.Parse[requiredConfig]()
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestLoad(t *testing.T) {
	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[defaultsConfig](nil), config.ErrNilPointer)
	})

	t.Run("cached per type", func(t *testing.T) {
		config.ResetCache()
		t.Cleanup(config.ResetCache)

		t.Setenv("CFG_TEST_CACHED", "first")
		var a cachedConfig
		require.NoError(t, config.Load(&a))
		assert.Equal(t, "first", a.Value)

		t.Setenv("CFG_TEST_CACHED", "second")
		var b cachedConfig
		require.NoError(t, config.Load(&b))
		assert.Equal(t, "first", b.Value)

		config.ResetCache()
		var c cachedConfig
		require.NoError(t, config.Load(&c))
		assert.Equal(t, "second", c.Value)
	})

	t.Run("must load panics", func(t *testing.T) {
		config.ResetCache()
		t.Cleanup(config.ResetCache)
		assert.Panics(t, func() {
			var cfg requiredConfig
			config.MustLoad(&cfg)
		})
	})
}

func TestLoadEnv(t *testing.T) {
	require.NoError(t, config.LoadEnv("testdata/.env.test"))

	cfg, err := config.Parse[fileConfig]()
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.Value)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.List)

	assert.ErrorIs(t, config.LoadEnv("testdata/missing.env"), config.ErrLoadingEnvFile)
}
