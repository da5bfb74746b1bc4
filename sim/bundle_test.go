package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExperimentBundle_AppliesOverrides(t *testing.T) {
	// GIVEN a YAML file overriding a subset of fields
	path := writeBundle(t, `
seed: 7
policy: round-robin
servers:
  count: 4
  capacities: [1.0, 2.0, 2.0, 4.0]
workload:
  horizon: 100
  arrival_process: poisson
  arrival_cv: 1.5
colony:
  evaporation_rate: 0.1
  beta: 0
fault:
  time: 50
  server_id: 3
  policy: reset
  recovery_time: 80
trace: decisions
`)

	// WHEN loaded and applied to the defaults
	bundle, err := LoadExperimentBundle(path)
	require.NoError(t, err)
	require.NoError(t, bundle.Validate())
	cfg := bundle.Apply(DefaultSimConfig())

	// THEN overridden fields change and the rest keep their defaults
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, PolicyRoundRobin, cfg.Policy)
	assert.Equal(t, 4, cfg.ServerCount)
	assert.Equal(t, []float64{1, 2, 2, 4}, cfg.Capacities)
	assert.Equal(t, 100.0, cfg.Horizon)
	assert.Equal(t, ArrivalPoisson, cfg.ArrivalProcess)
	assert.Equal(t, 1.5, cfg.ArrivalCV)
	assert.Equal(t, 0.1, cfg.EvaporationRate)
	assert.Equal(t, 0.0, cfg.Beta)
	assert.Equal(t, 1.0, cfg.Alpha)
	assert.Equal(t, 0.5, cfg.InterarrivalTime)
	assert.Equal(t, "decisions", cfg.TraceLevel)
	require.NotNil(t, cfg.Fault)
	assert.Equal(t, 50.0, cfg.Fault.Time)
	assert.Equal(t, 3, cfg.Fault.ServerID)
	assert.Equal(t, FaultPolicyReset, cfg.Fault.Policy)
	require.NotNil(t, cfg.Fault.RecoveryTime)
	assert.Equal(t, 80.0, *cfg.Fault.RecoveryTime)
	assert.NoError(t, cfg.Validate())
}

func TestExperimentBundle_Apply_DoesNotMutateBase(t *testing.T) {
	base := DefaultSimConfig()
	bundle := &ExperimentBundle{Fault: &FaultBundle{ServerID: intPtr(2)}}

	cfg := bundle.Apply(base)

	assert.Equal(t, 2, cfg.Fault.ServerID)
	assert.Equal(t, 0, base.Fault.ServerID)
}

func TestExperimentBundle_FaultDisabled_RemovesFault(t *testing.T) {
	path := writeBundle(t, "fault:\n  disabled: true\n")

	bundle, err := LoadExperimentBundle(path)
	require.NoError(t, err)

	assert.Nil(t, bundle.Apply(DefaultSimConfig()).Fault)
}

func TestLoadExperimentBundle_UnknownField_Errors(t *testing.T) {
	path := writeBundle(t, "colony:\n  evaporation: 0.5\n")

	_, err := LoadExperimentBundle(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing experiment config")
}

func TestLoadExperimentBundle_MissingFile_Errors(t *testing.T) {
	_, err := LoadExperimentBundle(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading experiment config")
}

func TestExperimentBundle_Validate_UnknownNames(t *testing.T) {
	tests := []struct {
		name   string
		bundle ExperimentBundle
	}{
		{"policy", ExperimentBundle{Policy: "random"}},
		{"arrival", ExperimentBundle{Workload: WorkloadConfig{ArrivalProcess: "bursty"}}},
		{"fault policy", ExperimentBundle{Fault: &FaultBundle{Policy: "drain"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.bundle.Validate())
		})
	}
}

func intPtr(v int) *int { return &v }
