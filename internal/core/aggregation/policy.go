package aggregation

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is an aggregation configuration loaded from a YAML file.
type Policy struct {
	Name        string
	Fingerprint string // SHA-256 of the raw YAML; computed at load time
	Config      *Configuration
}

// rawPolicy is the on-disk YAML shape.
//
//	name: charging_sessions
//	key: [station_id, connector_id]
//	exclude: [voltage]
//	fields:
//	  energy_kwh: sum
//	  duration_s: p95
type rawPolicy struct {
	Name    string            `yaml:"name"`
	Key     []string          `yaml:"key"`
	Exclude []string          `yaml:"exclude"`
	Fields  map[string]string `yaml:"fields"`
}

// LoadPolicy reads and parses a policy file. Method names resolve through
// ParseMethod first, then through reducers as custom reducers.
func LoadPolicy(path string, reducers ReducerRegistry) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	p, err := ParsePolicy(data, reducers)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy parses policy YAML.
func ParsePolicy(data []byte, reducers ReducerRegistry) (*Policy, error) {
	var raw rawPolicy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}

	cfg := NewConfiguration()
	for field, name := range raw.Fields {
		if strings.TrimSpace(field) == "" {
			return nil, &ConfigurationError{Op: "policy " + raw.Name, Err: errEmptyFieldName}
		}
		if method, err := ParseMethod(name); err == nil && method != MethodCustom {
			cfg.SetMethod(field, method)
			continue
		}
		reducer, ok := reducers.Lookup(name)
		if !ok {
			return nil, &ConfigurationError{
				Op:    "policy " + raw.Name,
				Field: field,
				Err:   fmt.Errorf("%w: %q", ErrUnknownMethod, name),
			}
		}
		cfg.SetReducer(field, reducer)
	}

	// Exclusion runs after methods so an excluded field never keeps a policy.
	cfg.Exclude(raw.Exclude...)

	switch len(raw.Key) {
	case 0:
	case 1:
		cfg.SetKey(raw.Key[0])
	default:
		if err := cfg.SetCompositeKey(raw.Key...); err != nil {
			return nil, err
		}
	}

	return &Policy{
		Name:        raw.Name,
		Fingerprint: fmt.Sprintf("%x", sha256.Sum256(data)),
		Config:      cfg,
	}, nil
}
