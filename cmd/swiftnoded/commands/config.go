package commands

import (
	"github.com/swiftcashproject/swiftnode/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Swiftnode config.Config `mapstructure:",squash"`
	// StartAliases announces every swiftnode.conf entry once the node is
	// synced.
	StartAliases bool `mapstructure:"start-aliases"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Swiftnode:    *config.NewDefaultConfig(),
		StartAliases: false,
	}
}
