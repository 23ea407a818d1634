package pacing

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

// Profile bounds how fast one campaign may send within a single cycle.
// Once MaxSendsPerCycle is reached the remaining due sends are pushed out by
// Spacing.
type Profile struct {
	MaxSendsPerCycle int           `yaml:"max_sends_per_cycle"`
	Spacing          time.Duration `yaml:"spacing"`
}

type Profiles map[model.DeliveryMode]Profile

func DefaultProfiles() Profiles {
	return Profiles{
		model.ModeStealth: {MaxSendsPerCycle: 20, Spacing: 15 * time.Minute},
		model.ModeGrowth:  {MaxSendsPerCycle: 100, Spacing: 5 * time.Minute},
		model.ModeTurbo:   {MaxSendsPerCycle: 500, Spacing: time.Minute},
	}
}

// For returns the profile of mode. Empty or unknown modes use growth.
func (p Profiles) For(mode model.DeliveryMode) Profile {
	if prof, ok := p[mode]; ok {
		return prof
	}
	if prof, ok := p[model.ModeGrowth]; ok {
		return prof
	}
	return DefaultProfiles()[model.ModeGrowth]
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads mode overrides from a yaml file on top of the defaults.
// An empty path returns the defaults.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pacing profiles: %w", err)
	}
	return parseProfiles(raw, profiles)
}

func parseProfiles(raw []byte, profiles Profiles) (Profiles, error) {
	var file profileFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse pacing profiles: %w", err)
	}

	for name, prof := range file.Profiles {
		mode := model.DeliveryMode(name)
		switch mode {
		case model.ModeStealth, model.ModeGrowth, model.ModeTurbo:
		default:
			return nil, fmt.Errorf("unknown delivery mode %q", name)
		}
		if prof.MaxSendsPerCycle <= 0 {
			return nil, fmt.Errorf("mode %s: max_sends_per_cycle must be positive", name)
		}
		if prof.Spacing <= 0 {
			prof.Spacing = profiles[mode].Spacing
		}
		profiles[mode] = prof
	}
	return profiles, nil
}
