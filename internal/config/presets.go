package config

import "sort"

var Presets = map[string]map[string]*Config{
	"mean_field": {
		"calm": {
			Model: "mean_field", Banks: 10, Dt: 0.01, Horizon: 1, Alpha: 1, Sigma: 0.5,
		},
		"volatile": {
			Model: "mean_field", Banks: 10, Dt: 0.01, Horizon: 1, Alpha: 1, Sigma: 2,
		},
		"herding": {
			Model: "mean_field", Banks: 10, Dt: 0.01, Horizon: 1, Alpha: 10, Sigma: 1,
		},
		"large": {
			Model: "mean_field", Banks: 100, Dt: 0.001, Horizon: 1, Alpha: 1, Sigma: 1,
		},
	},
	"network": {
		"sparse": {
			Model: "network", Banks: 10, Dt: 0.01, Horizon: 1, Alpha: 10, Sigma: 1,
			Network: NetworkConfig{EdgeProb: 0.1, GraphSeed: 1},
		},
		"dense": {
			Model: "network", Banks: 10, Dt: 0.01, Horizon: 1, Alpha: 10, Sigma: 1,
			Network: NetworkConfig{EdgeProb: 0.9, GraphSeed: 1},
		},
	},
}

// GetPreset returns a copy of the named preset layered over the defaults.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	p, ok := modelPresets[preset]
	if !ok {
		return nil
	}

	cfg := DefaultConfig()
	cfg.Model = p.Model
	cfg.Banks = p.Banks
	cfg.Dt = p.Dt
	cfg.Horizon = p.Horizon
	cfg.Alpha = p.Alpha
	cfg.Sigma = p.Sigma
	if p.Model == "network" {
		cfg.Network = p.Network
	}
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
