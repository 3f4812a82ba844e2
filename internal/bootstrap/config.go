package bootstrap

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/amd-rccl/anp-bootstrap/internal/natrules"
)

// DefaultPort is the fixed TCP port the original protocol mandates.
const DefaultPort = 34567

// HandshakeMagic is retained in-memory for cross-version sanity checks; it
// is never placed on the wire.
const HandshakeMagic uint64 = 0xA1B2C3D4E5F6ABCD

// LoggingSettings controls the ambient logging knob.
type LoggingSettings struct {
	Level zapcore.Level `yaml:"level"`
}

// BootstrapSettings controls the protocol's operator-tunable knobs.
type BootstrapSettings struct {
	Port int `yaml:"port"`
	// Deadline bounds CONNECTING/AWAITING_LEAVES retries when nonzero.
	// Zero means unbounded, which is the default.
	Deadline time.Duration `yaml:"deadline"`
}

// NATSettings selects the rule-installation backend.
type NATSettings struct {
	Backend natrules.BackendKind `yaml:"backend"`
}

// Settings is the optional YAML configuration for the ambient knobs this
// binary exposes beyond the wire protocol itself.
type Settings struct {
	Logging   LoggingSettings   `yaml:"logging"`
	Bootstrap BootstrapSettings `yaml:"bootstrap"`
	NAT       NATSettings       `yaml:"nat"`
}

// DefaultSettings returns the configuration that reproduces every
// documented behavior of the core spec with zero configuration supplied.
func DefaultSettings() *Settings {
	return &Settings{
		Logging:   LoggingSettings{Level: zapcore.InfoLevel},
		Bootstrap: BootstrapSettings{Port: DefaultPort, Deadline: 0},
		NAT:       NATSettings{Backend: natrules.BackendAuto},
	}
}

// LoadSettings reads and unmarshals a YAML config file over
// DefaultSettings, so unspecified fields keep their defaults.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, newErr(Config, fmt.Errorf("read config file: %w", err))
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, newErr(Config, fmt.Errorf("parse config YAML: %w", err))
	}

	return cfg, nil
}
