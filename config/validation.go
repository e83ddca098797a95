package config

import (
	"fmt"
	"time"

	"github.com/grovetools/envwatch/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/moby/patternmatcher"
)

// Validate checks if the configuration is valid. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs *multierror.Error

	durations := []struct {
		field string
		value string
	}{
		{"watch.debounce", c.Watch.Debounce},
		{"watch.rescan_interval", c.Watch.RescanInterval},
		{"watch.restart_backoff", c.Watch.RestartBackoff},
		{"refresh.query_timeout", c.Refresh.QueryTimeout},
		{"refresh.shutdown_grace", c.Refresh.ShutdownGrace},
	}
	for _, d := range durations {
		if err := validateDuration(d.field, d.value); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if c.Refresh.Workers < 1 {
		errs = multierror.Append(errs, fmt.Errorf("refresh.workers must be at least 1, got %d", c.Refresh.Workers))
	}

	if _, err := c.ExcludeMatcher(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid configuration")
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" || value == "0" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", field, value)
	}
	if d < 0 {
		return fmt.Errorf("%s: duration must not be negative", field)
	}
	return nil
}

// ExcludeMatcher compiles the exclusion patterns.
func (c *Config) ExcludeMatcher() (*patternmatcher.PatternMatcher, error) {
	pm, err := patternmatcher.New(c.Exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return pm, nil
}
