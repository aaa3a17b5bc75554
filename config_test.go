package senseapp

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	obs := ObserverPreset()
	require.NoError(t, obs.Validate())
	assert.Equal(t, 7, obs.ParamLen())
	assert.Equal(t, 0.0289, obs.ReferenceFreq)
	assert.Equal(t, HalfBins, obs.SpectrumBins)

	kal := KalmanPreset()
	require.NoError(t, kal.Validate())
	assert.Equal(t, 10, kal.ParamLen())
	assert.True(t, kal.SeedBiasWithMean)
	assert.Equal(t, 0.0309, kal.ReferenceFreq)
	assert.Equal(t, HalfBinsPlusOne, kal.SpectrumBins)

	p, err := Preset("Kalman")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(kal, p))
	_, err = Preset("particle")
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"variant":           func(c *Config) { c.Variant = 0 },
		"order":             func(c *Config) { c.Order = 0 },
		"omega":             func(c *Config) { c.Omega = -1 },
		"rho":               func(c *Config) { c.Rho = 1 },
		"mu below rho":      func(c *Config) { c.Mu = 1 },
		"lambda":            func(c *Config) { c.Lambda = 0 },
		"too many children": func(c *Config) { c.Mu, c.Lambda = 3, 4 },
		"generations":       func(c *Config) { c.Generations = -1 },
		"cost order":        func(c *Config) { c.CostOrder = 0 },
		"reference":         func(c *Config) { c.ReferenceFreq = 0.05 },
		"bins":              func(c *Config) { c.SpectrumBins = 0 },
		"workers":           func(c *Config) { c.Workers = -2 },
		"budget":            func(c *Config) { c.TimeBudget = -time.Second },
		"gain bounds":       func(c *Config) { c.Gain.LStart, c.Gain.REnd = 8, 0 },
	}
	for name, mutate := range cases {
		c := ObserverPreset()
		mutate(&c)
		assert.True(t, errors.Is(c.Validate(), ErrConfig), name)
	}
	k := KalmanPreset()
	k.Covariance.RLB = 0
	assert.True(t, errors.Is(k.Validate(), ErrConfig))
	k = KalmanPreset()
	k.Covariance.QREnd = k.Covariance.QLEnd
	assert.True(t, errors.Is(k.Validate(), ErrConfig))

	c := ObserverPreset()
	c.Mu, c.Lambda = 3, 3
	assert.NoError(t, c.Validate())
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, want := range []Config{ObserverPreset(), KalmanPreset()} {
		want.Generations = 7
		want.TimeBudget = 90 * time.Second
		var buf bytes.Buffer
		require.NoError(t, want.WriteYAML(&buf))
		path := filepath.Join(dir, want.Name+".yaml")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		got, err := LoadConfig(path, nil)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s round trip (-want +got):\n%s", want.Name, diff)
		}
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sense.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variant: kalman\nmu: 40\nlambda: 20\ngenerations: 3\n"), 0o644))

	t.Setenv("SENSE_MU", "30")
	t.Setenv("SENSE_GENERATIONS", "5")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--mu=20", "--time-budget=2m"}))

	cfg, err := LoadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, KalmanVariant, cfg.Variant, "variant selects the preset")
	assert.Equal(t, KalmanPreset().Covariance, cfg.Covariance)
	assert.Equal(t, 20, cfg.Mu, "flags override env")
	assert.Equal(t, 5, cfg.Generations, "env overrides the file")
	assert.Equal(t, 20, cfg.Lambda, "file overrides the preset")
	assert.Equal(t, 2*time.Minute, cfg.TimeBudget)
	assert.Equal(t, 1, cfg.Order)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(ObserverPreset(), cfg))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--preset=kalman"}))
	cfg, err = LoadConfig("", fs)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(KalmanPreset(), cfg))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--mu=2", "--lambda=5"}))
	_, err = LoadConfig("", fs)
	assert.True(t, errors.Is(err, ErrConfig))
}
