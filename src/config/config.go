package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/common"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the operating
	// private key of a swiftnode.
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultSwiftnodeConf is the default name of the file listing the
	// swiftnodes whose collateral is held by this wallet.
	DefaultSwiftnodeConf = "swiftnode.conf"
)

// Default configuration values.
const (
	DefaultLogLevel     = "debug"
	DefaultNetwork      = "main"
	DefaultBindAddr     = "127.0.0.1:8544"
	DefaultServiceAddr  = "127.0.0.1:8000"
	DefaultTickInterval = 1 * time.Second
	DefaultDumpInterval = 900 * time.Second
	DefaultTCPTimeout   = 1000 * time.Millisecond
	DefaultSyncTimeout  = 10000 * time.Millisecond
	DefaultMaxPool      = 2
	DefaultStore        = false
	DefaultSwiftnode    = false
	DefaultConfLock     = true
)

// Config contains all the configuration properties of a swiftnode daemon.
type Config struct {
	// DataDir is the top-level directory containing configuration, snapshot
	// files and the optional database.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log line.
	LogFile string `mapstructure:"log-file"`

	// Network selects the chain parameters: main, test or regtest.
	Network string `mapstructure:"network"`

	// BindAddr is the local address:port where this node gossips with other
	// nodes.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP status service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of gossip RPCs.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// SyncTimeout is the timeout of list and winners requests, whose
	// responses can be large.
	SyncTimeout time.Duration `mapstructure:"sync-timeout"`

	// TickInterval is the period of the background maintenance loop.
	TickInterval time.Duration `mapstructure:"tick"`

	// DumpInterval is the period between two snapshot dumps.
	DumpInterval time.Duration `mapstructure:"dump-interval"`

	// Store mirrors snapshots into a badger database.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Swiftnode runs the activation controller for a local swiftnode.
	Swiftnode bool `mapstructure:"swiftnode"`

	// SwiftnodePrivKey is the operating secret. When empty it is read from
	// the key file in DataDir.
	SwiftnodePrivKey string `mapstructure:"swiftnodeprivkey"`

	// SwiftnodeAddr is the service address announced for the local node.
	// It defaults to AdvertiseAddr, then BindAddr.
	SwiftnodeAddr string `mapstructure:"swiftnodeaddr"`

	// ConfLock keeps the collateral of swiftnode.conf entries locked in the
	// wallet.
	ConfLock bool `mapstructure:"mnconflock"`

	logger *logrus.Logger
}

// NewDefaultConfig returns the a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:      DefaultDataDir(),
		LogLevel:     DefaultLogLevel,
		Network:      DefaultNetwork,
		BindAddr:     DefaultBindAddr,
		ServiceAddr:  DefaultServiceAddr,
		MaxPool:      DefaultMaxPool,
		TCPTimeout:   DefaultTCPTimeout,
		SyncTimeout:  DefaultSyncTimeout,
		TickInterval: DefaultTickInterval,
		DumpInterval: DefaultDumpInterval,
		Store:        DefaultStore,
		DatabaseDir:  DefaultDatabaseDir(),
		Swiftnode:    DefaultSwiftnode,
		ConfLock:     DefaultConfLock,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the operating key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// SwiftnodeConfFile returns the full path of swiftnode.conf.
func (c *Config) SwiftnodeConfFile() string {
	return filepath.Join(c.DataDir, DefaultSwiftnodeConf)
}

// Params returns the chain parameters of the configured network.
func (c *Config) Params() (*chain.Params, error) {
	return chain.ParamsByName(c.Network)
}

// ServiceAddress returns the address announced for the local swiftnode.
func (c *Config) ServiceAddress() string {
	if c.SwiftnodeAddr != "" {
		return c.SwiftnodeAddr
	}
	if c.AdvertiseAddr != "" {
		return c.AdvertiseAddr
	}
	return c.BindAddr
}

// Logger returns a formatted logrus Entry, with prefix set to "swiftnode".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.DebugLevel: c.LogFile,
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
					logrus.FatalLevel: c.LogFile,
					logrus.PanicLevel: c.LogFile,
				},
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "swiftnode")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level swiftnode
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Swiftnode")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Swiftnode")
		} else {
			return filepath.Join(home, ".swiftnode")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
