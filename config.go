package senseapp

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Variant selects how a candidate parameter vector becomes a filter gain.
type Variant uint8

const (
	// ObserverVariant reads the gain L directly from the candidate.
	ObserverVariant Variant = iota + 1
	// KalmanVariant reads a (Q, R) pair and derives the steady-state Kalman gain.
	KalmanVariant
)

func (v Variant) String() string {
	switch v {
	case ObserverVariant:
		return "observer"
	case KalmanVariant:
		return "kalman"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "observer":
		*v = ObserverVariant
	case "kalman":
		*v = KalmanVariant
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrConfig, b)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b BinConvention) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BinConvention) UnmarshalText(text []byte) error {
	switch string(text) {
	case "half":
		*b = HalfBins
	case "half+1":
		*b = HalfBinsPlusOne
	default:
		return fmt.Errorf("%w: unknown spectrum bin convention %q", ErrConfig, text)
	}
	return nil
}

// GainBounds bound the log-scale sampling of the initial population: a value
// x drawn uniformly in [LStart, REnd) maps to ±10^(|x−mid|+LB), or to zero
// within DeadZone of the midpoint.
type GainBounds struct {
	LB       float64 `yaml:"lb"`
	LStart   float64 `yaml:"lstart"`
	REnd     float64 `yaml:"rend"`
	DeadZone float64 `yaml:"deadzone"`
}

// CovarianceBounds bound the initial population of the Kalman variant: the
// entries of M, with Q = M·Mᵀ, are log-scale sampled as in GainBounds and R is
// uniform in [RLB, RUB).
type CovarianceBounds struct {
	QLB      float64 `yaml:"qlb"`
	QLEnd    float64 `yaml:"qlend"`
	QREnd    float64 `yaml:"qrend"`
	DeadZone float64 `yaml:"deadzone"`
	RLB      float64 `yaml:"rlb"`
	RUB      float64 `yaml:"rub"`
}

// Config is the complete, immutable description of a filter family and its
// optimization.
type Config struct {
	Name             string           `yaml:"name"`
	Variant          Variant          `yaml:"variant"`
	Order            int              `yaml:"order"`
	Omega            float64          `yaml:"omega"`
	Zeta             float64          `yaml:"zeta"`
	BiasSeed         float64          `yaml:"bias_seed"`
	SeedBiasWithMean bool             `yaml:"seed_bias_with_mean"`
	Mu               int              `yaml:"mu"`
	Lambda           int              `yaml:"lambda"`
	Rho              int              `yaml:"rho"`
	Generations      int              `yaml:"generations"`
	Gain             GainBounds       `yaml:"gain"`
	Covariance       CovarianceBounds `yaml:"covariance"`
	CostOrder        int              `yaml:"cost_order"`
	ReferenceFreq    float64          `yaml:"reference_freq"`
	SpectrumBins     BinConvention    `yaml:"spectrum_bins"`
	Workers          int              `yaml:"workers"`
	TimeBudget       time.Duration    `yaml:"time_budget"`
}

// ObserverPreset returns the third order harmonic observer.
func ObserverPreset() Config {
	return Config{
		Name:          "observer",
		Variant:       ObserverVariant,
		Order:         3,
		Omega:         CircadianOmega,
		Zeta:          1,
		BiasSeed:      70,
		Mu:            100,
		Lambda:        50,
		Rho:           2,
		Generations:   25,
		Gain:          GainBounds{LB: -5, LStart: 0, REnd: 8, DeadZone: 0.5},
		CostOrder:     1,
		ReferenceFreq: 0.0289,
		SpectrumBins:  HalfBins,
	}
}

// KalmanPreset returns the first order steady-state Kalman filter.
func KalmanPreset() Config {
	return Config{
		Name:             "kalman",
		Variant:          KalmanVariant,
		Order:            1,
		Omega:            CircadianOmega,
		Zeta:             1,
		SeedBiasWithMean: true,
		Mu:               100,
		Lambda:           50,
		Rho:              2,
		Generations:      25,
		Covariance:       CovarianceBounds{QLB: -5, QLEnd: 0, QREnd: 18, DeadZone: 0.5, RLB: 1e2, RUB: 1e8},
		CostOrder:        1,
		ReferenceFreq:    0.0309,
		SpectrumBins:     HalfBinsPlusOne,
	}
}

// Preset returns the named preset.
func Preset(name string) (Config, error) {
	switch strings.ToLower(name) {
	case "observer", "":
		return ObserverPreset(), nil
	case "kalman":
		return KalmanPreset(), nil
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrConfig, name)
	}
}

// StateDim returns the dimension of the filter state.
func (c Config) StateDim() int {
	return StateDim(c.Order)
}

// ParamLen returns the length of a candidate parameter vector: the gain for
// the observer, the flattened M followed by R for the Kalman filter.
func (c Config) ParamLen() int {
	n := c.StateDim()
	if c.Variant == KalmanVariant {
		return n*n + 1
	}
	return n
}

// Validate returns an error wrapping ErrConfig describing the first
// inconsistency found.
func (c Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Variant != ObserverVariant && c.Variant != KalmanVariant:
		return fail("unknown variant %s", c.Variant)
	case c.Order < 1:
		return fail("order must be positive, got %d", c.Order)
	case !(c.Omega > 0) || math.IsInf(c.Omega, 0):
		return fail("omega must be positive, got %g", c.Omega)
	case !(c.Zeta > 0) || math.IsInf(c.Zeta, 0):
		return fail("zeta must be positive, got %g", c.Zeta)
	case math.IsNaN(c.BiasSeed) || math.IsInf(c.BiasSeed, 0):
		return fail("bias seed must be finite")
	case c.Rho < 2:
		return fail("recombination arity rho must be at least 2, got %d", c.Rho)
	case c.Mu < c.Rho:
		return fail("mu=%d cannot provide rho=%d parents", c.Mu, c.Rho)
	case c.Lambda < 1:
		return fail("lambda must be positive, got %d", c.Lambda)
	case !atLeastCombinations(c.Mu, c.Rho, c.Lambda):
		return fail("lambda=%d exceeds the %d-combinations of mu=%d", c.Lambda, c.Rho, c.Mu)
	case c.Generations < 0:
		return fail("generations must not be negative, got %d", c.Generations)
	case c.CostOrder < 1:
		return fail("cost order must be positive, got %d", c.CostOrder)
	case !(c.ReferenceFreq > 0):
		return fail("reference frequency must be positive, got %g", c.ReferenceFreq)
	case c.ReferenceFreq >= c.Omega/(2*math.Pi):
		return fail("reference frequency %g must lie below the fundamental %g", c.ReferenceFreq, c.Omega/(2*math.Pi))
	case c.SpectrumBins != HalfBins && c.SpectrumBins != HalfBinsPlusOne:
		return fail("unknown spectrum bin convention %s", c.SpectrumBins)
	case c.Workers < 0:
		return fail("workers must not be negative, got %d", c.Workers)
	case c.TimeBudget < 0:
		return fail("time budget must not be negative, got %s", c.TimeBudget)
	}
	if c.Variant == ObserverVariant {
		g := c.Gain
		if !(g.LStart < g.REnd) || g.DeadZone < 0 || math.IsNaN(g.LB) || math.IsInf(g.LB, 0) {
			return fail("invalid gain bounds %+v", g)
		}
		return nil
	}
	q := c.Covariance
	if !(q.QLEnd < q.QREnd) || q.DeadZone < 0 || math.IsNaN(q.QLB) || math.IsInf(q.QLB, 0) {
		return fail("invalid covariance bounds %+v", q)
	}
	if !(q.RLB > 0) || !(q.RLB < q.RUB) || math.IsInf(q.RUB, 0) {
		return fail("invalid measurement variance bounds [%g, %g)", q.RLB, q.RUB)
	}
	return nil
}

// atLeastCombinations returns whether C(n, k) ≥ want, without overflowing.
func atLeastCombinations(n, k, want int) bool {
	if k > n {
		return want <= 0
	}
	c := 1.0
	for i := 1; i <= k; i++ {
		c = c * float64(n-k+i) / float64(i)
		if c >= float64(want) {
			return true
		}
	}
	return c >= float64(want)
}

// WriteYAML encodes the config.
func (c Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// flagBindings maps viper keys (also the YAML keys, and SENSE_-prefixed env
// names with dots as underscores) to pflag names.
var flagBindings = map[string]string{
	"preset":              "preset",
	"name":                "name",
	"variant":             "variant",
	"order":               "order",
	"omega":               "omega",
	"zeta":                "zeta",
	"bias_seed":           "bias-seed",
	"seed_bias_with_mean": "seed-bias-with-mean",
	"mu":                  "mu",
	"lambda":              "lambda",
	"rho":                 "rho",
	"generations":         "generations",
	"gain.lb":             "gain-lb",
	"gain.lstart":         "gain-lstart",
	"gain.rend":           "gain-rend",
	"gain.deadzone":       "gain-deadzone",
	"covariance.qlb":      "q-lb",
	"covariance.qlend":    "q-lend",
	"covariance.qrend":    "q-rend",
	"covariance.deadzone": "q-deadzone",
	"covariance.rlb":      "r-lb",
	"covariance.rub":      "r-ub",
	"cost_order":          "cost-order",
	"reference_freq":      "reference-freq",
	"spectrum_bins":       "spectrum-bins",
	"workers":             "workers",
	"time_budget":         "time-budget",
}

// RegisterFlags defines on fs the flags LoadConfig reads. Only flags that are
// explicitly set override the preset and the config file.
func RegisterFlags(fs *flag.FlagSet) {
	d := ObserverPreset()
	fs.String("preset", d.Name, "named preset: observer or kalman")
	fs.String("name", "", "configuration name")
	fs.String("variant", d.Variant.String(), "filter variant: observer or kalman")
	fs.Int("order", d.Order, "number of harmonic oscillators")
	fs.Float64("omega", d.Omega, "fundamental angular frequency (rad/h)")
	fs.Float64("zeta", d.Zeta, "output weight numerator")
	fs.Float64("bias-seed", d.BiasSeed, "initial bias state")
	fs.Bool("seed-bias-with-mean", d.SeedBiasWithMean, "seed the bias state with the mean reading")
	fs.Int("mu", d.Mu, "population size")
	fs.Int("lambda", d.Lambda, "offspring per generation")
	fs.Int("rho", d.Rho, "parents per offspring")
	fs.Int("generations", d.Generations, "number of generations")
	fs.Float64("gain-lb", d.Gain.LB, "gain sampling: lowest decade")
	fs.Float64("gain-lstart", d.Gain.LStart, "gain sampling: range start")
	fs.Float64("gain-rend", d.Gain.REnd, "gain sampling: range end")
	fs.Float64("gain-deadzone", d.Gain.DeadZone, "gain sampling: half-width of the zero band")
	fs.Float64("q-lb", -5, "Q sampling: lowest decade")
	fs.Float64("q-lend", 0, "Q sampling: range start")
	fs.Float64("q-rend", 18, "Q sampling: range end")
	fs.Float64("q-deadzone", 0.5, "Q sampling: half-width of the zero band")
	fs.Float64("r-lb", 1e2, "R sampling: lower bound")
	fs.Float64("r-ub", 1e8, "R sampling: upper bound")
	fs.Int("cost-order", d.CostOrder, "number of harmonics scored by the cost")
	fs.Float64("reference-freq", d.ReferenceFreq, "reference frequency defining the band half-width (1/h)")
	fs.String("spectrum-bins", d.SpectrumBins.String(), "spectrum bin convention: half or half+1")
	fs.Int("workers", d.Workers, "parallel candidate evaluations (0 for GOMAXPROCS)")
	fs.Duration("time-budget", d.TimeBudget, "wall-clock budget of the optimization (0 for none)")
}

// LoadConfig resolves a Config. Precedence: flags > env > config file > preset.
// The preset is selected by the "preset" key, else by the variant, else
// observer. path and flags may both be empty.
func LoadConfig(path string, flags *flag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	preset := v.GetString("preset")
	if !v.IsSet("preset") && v.IsSet("variant") {
		preset = v.GetString("variant")
	}
	base, err := Preset(preset)
	if err != nil {
		return Config{}, err
	}
	setDefaults(v, base)

	cfg := Config{
		Name:             v.GetString("name"),
		Order:            v.GetInt("order"),
		Omega:            v.GetFloat64("omega"),
		Zeta:             v.GetFloat64("zeta"),
		BiasSeed:         v.GetFloat64("bias_seed"),
		SeedBiasWithMean: v.GetBool("seed_bias_with_mean"),
		Mu:               v.GetInt("mu"),
		Lambda:           v.GetInt("lambda"),
		Rho:              v.GetInt("rho"),
		Generations:      v.GetInt("generations"),
		Gain: GainBounds{
			LB:       v.GetFloat64("gain.lb"),
			LStart:   v.GetFloat64("gain.lstart"),
			REnd:     v.GetFloat64("gain.rend"),
			DeadZone: v.GetFloat64("gain.deadzone"),
		},
		Covariance: CovarianceBounds{
			QLB:      v.GetFloat64("covariance.qlb"),
			QLEnd:    v.GetFloat64("covariance.qlend"),
			QREnd:    v.GetFloat64("covariance.qrend"),
			DeadZone: v.GetFloat64("covariance.deadzone"),
			RLB:      v.GetFloat64("covariance.rlb"),
			RUB:      v.GetFloat64("covariance.rub"),
		},
		CostOrder:     v.GetInt("cost_order"),
		ReferenceFreq: v.GetFloat64("reference_freq"),
		Workers:       v.GetInt("workers"),
		TimeBudget:    v.GetDuration("time_budget"),
	}
	if err := cfg.Variant.UnmarshalText([]byte(v.GetString("variant"))); err != nil {
		return Config{}, err
	}
	if err := cfg.SpectrumBins.UnmarshalText([]byte(v.GetString("spectrum_bins"))); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("name", c.Name)
	v.SetDefault("variant", c.Variant.String())
	v.SetDefault("order", c.Order)
	v.SetDefault("omega", c.Omega)
	v.SetDefault("zeta", c.Zeta)
	v.SetDefault("bias_seed", c.BiasSeed)
	v.SetDefault("seed_bias_with_mean", c.SeedBiasWithMean)
	v.SetDefault("mu", c.Mu)
	v.SetDefault("lambda", c.Lambda)
	v.SetDefault("rho", c.Rho)
	v.SetDefault("generations", c.Generations)
	v.SetDefault("gain.lb", c.Gain.LB)
	v.SetDefault("gain.lstart", c.Gain.LStart)
	v.SetDefault("gain.rend", c.Gain.REnd)
	v.SetDefault("gain.deadzone", c.Gain.DeadZone)
	v.SetDefault("covariance.qlb", c.Covariance.QLB)
	v.SetDefault("covariance.qlend", c.Covariance.QLEnd)
	v.SetDefault("covariance.qrend", c.Covariance.QREnd)
	v.SetDefault("covariance.deadzone", c.Covariance.DeadZone)
	v.SetDefault("covariance.rlb", c.Covariance.RLB)
	v.SetDefault("covariance.rub", c.Covariance.RUB)
	v.SetDefault("cost_order", c.CostOrder)
	v.SetDefault("reference_freq", c.ReferenceFreq)
	v.SetDefault("spectrum_bins", c.SpectrumBins.String())
	v.SetDefault("workers", c.Workers)
	v.SetDefault("time_budget", c.TimeBudget)
}
