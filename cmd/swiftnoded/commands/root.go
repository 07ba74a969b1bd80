package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for swiftnoded
var RootCmd = &cobra.Command{
	Use:              "swiftnoded",
	Short:            "SwiftCash swiftnode daemon",
	TraverseChildren: true,
}
