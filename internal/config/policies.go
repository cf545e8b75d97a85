package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/promoteros/admission/internal/admission"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// policyFile is the on-disk shape of the policy configuration. Durations
// are plain milliseconds so the file stays language-agnostic.
type policyFile struct {
	Policies []policySpec `yaml:"policies" validate:"required,min=1,dive"`
}

type policySpec struct {
	Name        string `yaml:"name" validate:"required"`
	WindowMS    int64  `yaml:"window_ms" validate:"required,gt=0"`
	MaxRequests int    `yaml:"max_requests" validate:"required,gt=0"`
	BlockForMS  int64  `yaml:"block_for_ms" validate:"min=0"`
	Message     string `yaml:"message"`
}

// LoadPolicies reads rate-limit tiers from a YAML file, or returns the
// built-in defaults when path is empty. Any problem with the file is a
// configuration error that must stop startup.
func LoadPolicies(path string) ([]admission.Policy, error) {
	if path == "" {
		return admission.DefaultPolicies(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := validate.Struct(pf); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}

	policies := make([]admission.Policy, 0, len(pf.Policies))
	for _, spec := range pf.Policies {
		policies = append(policies, admission.Policy{
			Name:        spec.Name,
			Window:      time.Duration(spec.WindowMS) * time.Millisecond,
			MaxRequests: spec.MaxRequests,
			BlockFor:    time.Duration(spec.BlockForMS) * time.Millisecond,
			Message:     spec.Message,
		})
	}
	return policies, nil
}
