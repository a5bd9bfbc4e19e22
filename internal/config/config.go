package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/banksim/internal/compute"
	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/models"
)

const (
	DefaultBanks        = 10
	DefaultDt           = 0.01
	DefaultAlpha        = 1.0
	DefaultSigma        = 1.0
	DefaultEdgeProb     = 0.5
	DefaultReplications = 100
	DefaultBackend      = "serial"

	EnvPrefix = "BANKSIM"
)

type Config struct {
	Model        string        `yaml:"model" mapstructure:"model"`
	Banks        int           `yaml:"banks" mapstructure:"banks"`
	Dt           float64       `yaml:"dt" mapstructure:"dt"`
	Horizon      float64       `yaml:"horizon" mapstructure:"horizon"`
	Alpha        float64       `yaml:"alpha" mapstructure:"alpha"`
	Alphas       []float64     `yaml:"alphas,omitempty" mapstructure:"alphas"`
	Sigma        float64       `yaml:"sigma" mapstructure:"sigma"`
	Sigmas       []float64     `yaml:"sigmas,omitempty" mapstructure:"sigmas"`
	Eta          float64       `yaml:"eta" mapstructure:"eta"`
	Seed         uint64        `yaml:"seed" mapstructure:"seed"`
	Reproducible bool          `yaml:"reproducible" mapstructure:"reproducible"`
	Backend      string        `yaml:"backend" mapstructure:"backend"`
	Replications int           `yaml:"replications" mapstructure:"replications"`
	Network      NetworkConfig `yaml:"network" mapstructure:"network"`
}

type NetworkConfig struct {
	EdgeProb  float64 `yaml:"edge_prob" mapstructure:"edge_prob"`
	GraphSeed uint64  `yaml:"graph_seed" mapstructure:"graph_seed"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:        models.ModeMeanField,
		Banks:        DefaultBanks,
		Dt:           DefaultDt,
		Horizon:      models.DefaultHorizon,
		Alpha:        DefaultAlpha,
		Sigma:        DefaultSigma,
		Eta:          models.DefaultEta,
		Seed:         1,
		Reproducible: true,
		Backend:      DefaultBackend,
		Replications: DefaultReplications,
		Network: NetworkConfig{
			EdgeProb:  DefaultEdgeProb,
			GraphSeed: 1,
		},
	}
}

// Load reads a YAML file on top of the defaults. Any key can be overridden
// from the environment, e.g. BANKSIM_SIGMA or BANKSIM_NETWORK_EDGE_PROB.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(v)
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("model", d.Model)
	v.SetDefault("banks", d.Banks)
	v.SetDefault("dt", d.Dt)
	v.SetDefault("horizon", d.Horizon)
	v.SetDefault("alpha", d.Alpha)
	v.SetDefault("sigma", d.Sigma)
	v.SetDefault("eta", d.Eta)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("reproducible", d.Reproducible)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("replications", d.Replications)
	v.SetDefault("network.edge_prob", d.Network.EdgeProb)
	v.SetDefault("network.graph_seed", d.Network.GraphSeed)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch c.Model {
	case models.ModeMeanField, models.ModeNetwork:
	default:
		return dynamo.InvalidParam("model", "unknown model %q", c.Model)
	}
	if c.Banks <= 0 {
		return dynamo.InvalidParam("banks", "must be positive, got %d", c.Banks)
	}
	if !(c.Dt > 0) {
		return dynamo.InvalidParam("dt", "must be positive, got %g", c.Dt)
	}
	if !(c.Horizon > 0) {
		return dynamo.InvalidParam("T", "must be positive, got %g", c.Horizon)
	}
	if c.Model == models.ModeNetwork && !(c.Network.EdgeProb >= 0 && c.Network.EdgeProb <= 1) {
		return dynamo.InvalidParam("edge probability", "must be in [0, 1], got %g", c.Network.EdgeProb)
	}
	if c.Replications <= 0 {
		return dynamo.InvalidParam("replications", "must be positive, got %d", c.Replications)
	}
	if _, err := compute.Lookup(c.Backend); err != nil {
		return dynamo.InvalidParam("backend", "%v", err)
	}
	return nil
}

// Coefficients returns alpha and sigma, preferring the per-bank vectors.
func (c *Config) Coefficients() (alpha, sigma dynamo.State) {
	alpha = dynamo.State{c.Alpha}
	if len(c.Alphas) > 0 {
		alpha = dynamo.State(c.Alphas).Clone()
	}
	sigma = dynamo.State{c.Sigma}
	if len(c.Sigmas) > 0 {
		sigma = dynamo.State(c.Sigmas).Clone()
	}
	return alpha, sigma
}

// Build validates the config and constructs the bank system it describes.
func (c *Config) Build() (*models.Banks, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	alpha, sigma := c.Coefficients()
	b, err := models.New(c.Banks, c.Dt, alpha, sigma)
	if err != nil {
		return nil, err
	}
	b.Horizon = c.Horizon
	b.Eta = c.Eta

	if c.Model == models.ModeNetwork {
		if err := b.ErdosRenyi(c.Network.EdgeProb, c.Network.GraphSeed); err != nil {
			return nil, err
		}
		if err := b.Network(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// NewBackend returns a fresh instance of the configured backend.
func (c *Config) NewBackend() compute.Backend {
	b, err := compute.Lookup(c.Backend)
	if err != nil {
		return compute.NewSerial()
	}
	return b
}
