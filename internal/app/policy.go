package app

import (
	"fmt"
	"os"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

// LoadPolicy returns the role policy from cfg.PolicyFile, or the embedded
// default when no file is configured.
func LoadPolicy(cfg *Config) (*authz.Policy, error) {
	if cfg == nil || cfg.PolicyFile == "" {
		return authz.DefaultPolicy(), nil
	}
	return LoadPolicyFile(cfg.PolicyFile)
}

// LoadPolicyFile parses and validates a policy document on disk.
func LoadPolicyFile(path string) (*authz.Policy, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	policy, err := authz.ParsePolicy(doc)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return policy, nil
}
