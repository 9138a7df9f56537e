package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// NumericRange bounds a numeric submission field, inclusive on both ends.
type NumericRange struct {
	Field string  `mapstructure:"field" json:"field"`
	Min   float64 `mapstructure:"min" json:"min"`
	Max   float64 `mapstructure:"max" json:"max"`
}

// ValidationRules is the configurable part of submission validation. The
// required-field list diverged across iterations of the service, so it is
// configuration rather than a constant.
type ValidationRules struct {
	RequiredFields []string       `mapstructure:"requiredFields" json:"requiredFields"`
	NumericRanges  []NumericRange `mapstructure:"numericRanges" json:"numericRanges"`
	SeverityLevels []string       `mapstructure:"severityLevels" json:"severityLevels"`
}

func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		RequiredFields: []string{"vinNumber", "location", "impactSeverity", "throttlePosition", "brakePosition"},
		NumericRanges: []NumericRange{
			{Field: "throttlePosition", Min: 0, Max: 100},
			{Field: "brakePosition", Min: 0, Max: 100},
		},
		SeverityLevels: []string{"low", "medium", "high", "critical"},
	}
}

// RulesHolder serves the current validation rules and hot-reloads them when
// the config file changes.
type RulesHolder struct {
	current atomic.Value // holds ValidationRules
}

func NewRulesHolder() (*RulesHolder, error) {
	v := viper.New()

	v.SetConfigName("validation")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/crashchain")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CRASHCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultValidationRules()
		v.SetDefault("validation.requiredFields", defaults.RequiredFields)
		v.SetDefault("validation.numericRanges", defaults.NumericRanges)
		v.SetDefault("validation.severityLevels", defaults.SeverityLevels)
	}

	var rules ValidationRules
	if err := v.UnmarshalKey("validation", &rules); err != nil {
		return nil, err
	}
	if err := validateRules(rules); err != nil {
		return nil, err
	}

	holder := &RulesHolder{}
	holder.current.Store(rules)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ValidationRules
		if err := v.UnmarshalKey("validation", &updated); err != nil {
			log.Printf("[validation-config] reload failed: %v", err)
			return
		}
		if err := validateRules(updated); err != nil {
			log.Printf("[validation-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[validation-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticRulesHolder wraps a fixed rule set, bypassing file loading.
func NewStaticRulesHolder(rules ValidationRules) *RulesHolder {
	holder := &RulesHolder{}
	holder.current.Store(rules)
	return holder
}

func (h *RulesHolder) Get() ValidationRules {
	return h.current.Load().(ValidationRules)
}

func validateRules(rules ValidationRules) error {
	if len(rules.RequiredFields) == 0 {
		return errors.New("validation.requiredFields cannot be empty")
	}
	if len(rules.SeverityLevels) == 0 {
		return errors.New("validation.severityLevels cannot be empty")
	}
	for _, r := range rules.NumericRanges {
		if r.Field == "" {
			return errors.New("validation.numericRanges entries need a field name")
		}
		if r.Min > r.Max {
			return errors.New("validation.numericRanges min cannot exceed max")
		}
	}
	return nil
}
