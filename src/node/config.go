package node

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/common"
)

// Config holds the settings of the node engine.
type Config struct {
	// TickInterval is the period of the maintenance loop. Component timings
	// assume one tick per second.
	TickInterval time.Duration `mapstructure:"tick"`

	// DumpInterval is the period between two snapshot dumps, zero disables
	// periodic dumps.
	DumpInterval time.Duration `mapstructure:"dump-interval"`

	// CleanupTicks is the number of synced ticks between two registry and
	// payments prunes.
	CleanupTicks int `mapstructure:"cleanup-ticks"`

	Logger *logrus.Logger
}

// NewConfig ...
func NewConfig(tick time.Duration,
	dump time.Duration,
	logger *logrus.Logger) *Config {

	return &Config{
		TickInterval: tick,
		DumpInterval: dump,
		CleanupTicks: 60,
		Logger:       logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		TickInterval: time.Second,
		DumpInterval: 15 * time.Minute,
		CleanupTicks: 60,
		Logger:       logger,
	}
}

// TestConfig ...
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.TickInterval = 10 * time.Millisecond
	config.Logger = common.NewTestLogger(t, logrus.DebugLevel)
	return config
}
