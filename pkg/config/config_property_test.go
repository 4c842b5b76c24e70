package config

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_InvalidIntervalsFallBackToDefaults verifies that any zero or
// negative fleet interval is replaced by its default, so a bad config file
// can never stall or hot-loop a reconciliation timer.
func TestProperty_InvalidIntervalsFallBackToDefaults(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	defaults := DefaultFleetConfig()

	properties.Property("negative rotation interval falls back to default", prop.ForAll(
		func(negativeSeconds int) bool {
			cfg := &Config{
				Fleet: FleetConfig{
					RotationInterval: time.Duration(negativeSeconds) * time.Second,
				},
			}
			validateAndApplyDefaults(cfg)
			return cfg.Fleet.RotationInterval == defaults.RotationInterval
		},
		gen.IntRange(-1000, 0),
	))

	properties.Property("negative grace period falls back to default", prop.ForAll(
		func(negativeHours int) bool {
			cfg := &Config{
				Fleet: FleetConfig{
					GracePeriod: time.Duration(negativeHours) * time.Hour,
				},
			}
			validateAndApplyDefaults(cfg)
			return cfg.Fleet.GracePeriod == defaults.GracePeriod
		},
		gen.IntRange(-1000, 0),
	))

	properties.Property("non-positive batch size and ceiling fall back to defaults", prop.ForAll(
		func(batch, ceiling int) bool {
			cfg := &Config{
				Fleet: FleetConfig{
					BatchSize:    batch,
					FleetCeiling: ceiling,
				},
			}
			validateAndApplyDefaults(cfg)
			return cfg.Fleet.BatchSize == defaults.BatchSize &&
				cfg.Fleet.FleetCeiling == defaults.FleetCeiling
		},
		gen.IntRange(-100, 0),
		gen.IntRange(-100, 0),
	))

	properties.Property("valid values are preserved", prop.ForAll(
		func(batch int) bool {
			cfg := &Config{
				Fleet: FleetConfig{
					BatchSize: batch,
				},
			}
			validateAndApplyDefaults(cfg)
			return cfg.Fleet.BatchSize == batch
		},
		gen.IntRange(1, 500),
	))

	properties.TestingRun(t)
}
