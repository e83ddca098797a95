package query

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/grovetools/envwatch/command"
	"github.com/grovetools/envwatch/pkg/envs"
	"github.com/sirupsen/logrus"
)

// DefaultPython is the interpreter location relative to an environment root.
const DefaultPython = "bin/python"

// PipQuerier lists packages by running the environment's own interpreter with
// `-m pip list --format=json`.
type PipQuerier struct {
	runner *command.Runner
	python string
	logger *logrus.Entry
}

// NewPipQuerier creates a PipQuerier. python is relative to the environment
// root; empty selects DefaultPython.
func NewPipQuerier(runner *command.Runner, python string, logger *logrus.Entry) *PipQuerier {
	if python == "" {
		python = DefaultPython
	}
	return &PipQuerier{runner: runner, python: python, logger: logger}
}

type pipPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Packages implements PackageQuerier.
func (q *PipQuerier) Packages(ctx context.Context, envPath string) envs.Result[envs.Packages] {
	python := filepath.Join(envPath, q.python)
	if _, err := os.Stat(python); err != nil {
		return envs.Err[envs.Packages](envs.ErrNotFound, "no python interpreter at %s", python)
	}

	out, err := q.runner.Run(ctx, python, "-m", "pip", "list", "--format=json")
	if err != nil {
		q.logger.WithError(err).WithField("env", envPath).Debug("pip list failed")
		return envs.Err[envs.Packages](kindOf(err), "%s", describe(err))
	}

	var listed []pipPackage
	if err := json.Unmarshal(out.Stdout, &listed); err != nil {
		return envs.Err[envs.Packages](envs.ErrMalformed, "decode pip output: %v", err)
	}

	packages := make(envs.Packages, len(listed))
	for _, p := range listed {
		packages[p.Name] = p.Version
	}
	return envs.Ok(packages)
}
