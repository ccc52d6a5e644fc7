package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Threshold is a contract MIN/MAX retention pair, in percent.
type Threshold struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// CourseThresholds holds the pair per course line.
type CourseThresholds struct {
	GK  Threshold `yaml:"gk"`
	GKP Threshold `yaml:"gkp"`
}

// RetentionRules are the business constants of the retention-rate payout
// formula. They mirror the contract and are expected to be reviewed by the
// payroll team, not derived.
type RetentionRules struct {
	Weight           float64          `yaml:"weight"`
	PersonalCoeff    float64          `yaml:"personal_coefficient"`
	RatePerStudent   float64          `yaml:"rate_per_student"`
	PersonalTypeName string           `yaml:"personal_type"`
	Personal         CourseThresholds `yaml:"personal"`
	Group            CourseThresholds `yaml:"group"`
}

// Rules is the root of the rules file.
type Rules struct {
	Retention RetentionRules `yaml:"retention"`
}

// DefaultRules returns the built-in rules used when no file is configured.
func DefaultRules() Rules {
	return Rules{Retention: RetentionRules{
		Weight:           0.7,
		PersonalCoeff:    0.3,
		RatePerStudent:   30,
		PersonalTypeName: "Личный",
		Personal: CourseThresholds{
			GK:  Threshold{Min: 80, Max: 95},
			GKP: Threshold{Min: 85, Max: 97},
		},
		Group: CourseThresholds{
			GK:  Threshold{Min: 70, Max: 90},
			GKP: Threshold{Min: 75, Max: 95},
		},
	}}
}

// LoadRules reads a YAML rules file on top of DefaultRules. An empty path
// returns the defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return rules, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// Validate rejects rule sets the formula cannot use.
func (r Rules) Validate() error {
	rr := r.Retention
	if rr.Weight <= 0 || rr.PersonalCoeff <= 0 || rr.RatePerStudent <= 0 {
		return errors.New("retention weight, personal_coefficient and rate_per_student must be > 0")
	}
	if strings.TrimSpace(rr.PersonalTypeName) == "" {
		return errors.New("retention personal_type must not be empty")
	}
	for name, t := range map[string]Threshold{
		"personal.gk": rr.Personal.GK, "personal.gkp": rr.Personal.GKP,
		"group.gk": rr.Group.GK, "group.gkp": rr.Group.GKP,
	} {
		if t.Min < 0 || t.Max < t.Min {
			return fmt.Errorf("retention %s: need 0 <= min <= max", name)
		}
	}
	return nil
}

// Thresholds picks the pair for a curator type and course line.
func (r RetentionRules) Thresholds(curatorType string, gkPlus bool) Threshold {
	set := r.Group
	if strings.TrimSpace(curatorType) == r.PersonalTypeName {
		set = r.Personal
	}
	if gkPlus {
		return set.GKP
	}
	return set.GK
}
