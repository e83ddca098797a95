package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/envwatch/errors"
	homedir "github.com/mitchellh/go-homedir"
)

const condaEnvsDir = "anaconda3/envs"

// DefaultRoot is used when nothing else names an environment root.
const DefaultRoot = "~/anaconda3/envs"

// ResolveRoot picks the environment root. Precedence:
// 1. flag (--root)
// 2. ENVWATCH_ROOT
// 3. root from the configuration
// 4. CONDA_PREFIX
// 5. ~/anaconda3/envs
func ResolveRoot(flag string, cfg *Config) (string, error) {
	candidate := flag
	if candidate == "" {
		candidate = os.Getenv("ENVWATCH_ROOT")
	}
	if candidate == "" && cfg != nil {
		candidate = cfg.Root
	}
	if candidate == "" {
		candidate = condaRoot(os.Getenv("CONDA_PREFIX"))
	}
	if candidate == "" {
		candidate = DefaultRoot
	}

	expanded, err := homedir.Expand(candidate)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to expand root").
			WithDetail("root", candidate)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to resolve root").
			WithDetail("root", candidate)
	}
	return abs, nil
}

// condaRoot derives the environments directory from an active CONDA_PREFIX.
// Inside an environment the prefix is ".../anaconda3/envs/<name>"; in the base
// install it is the install directory itself.
func condaRoot(prefix string) string {
	if prefix == "" {
		return ""
	}
	joined := filepath.ToSlash(filepath.Join(prefix, "envs"))
	if idx := strings.Index(joined, condaEnvsDir); idx >= 0 {
		return filepath.FromSlash(joined[:idx+len(condaEnvsDir)])
	}
	return filepath.Join(prefix, "envs")
}
