package commands

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/swiftcashproject/swiftnode/src/daemon"
)

//NewRunCmd returns the command that starts a swiftnode daemon
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runSwiftnode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runSwiftnode(cmd *cobra.Command, args []string) error {
	engine := daemon.NewDaemon(&_config.Swiftnode)

	if err := engine.Init(); err != nil {
		_config.Swiftnode.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	if _config.StartAliases {
		go startAliases(engine)
	}

	engine.Run()
	engine.Shutdown()

	return nil
}

// startAliases waits for the registry sync and announces every
// swiftnode.conf entry.
func startAliases(engine *daemon.Daemon) {
	logger := _config.Swiftnode.Logger()

	for !engine.Node.Syncer().IsListSynced() {
		time.Sleep(_config.Swiftnode.TickInterval)
	}

	for _, e := range engine.Conf.Entries {
		entry := logger.WithField("alias", e.Alias)

		index, err := e.Index()
		if err != nil {
			entry.WithError(err).Error("Cannot start alias")
			continue
		}

		a, err := engine.Node.StartAlias(e.Addr, e.PrivKey, e.TxHash, index)
		if err != nil {
			entry.WithError(err).Error("Cannot start alias")
			continue
		}

		entry.WithField("outpoint", a.OutPoint.String()).Info("Started alias")
	}
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Swiftnode.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Swiftnode.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Swiftnode.LogFile, "Also write logs to this file")
	cmd.Flags().String("network", _config.Swiftnode.Network, "main, test or regtest")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Swiftnode.BindAddr, "Listen IP:Port for swiftnode messages")
	cmd.Flags().StringP("advertise", "a", _config.Swiftnode.AdvertiseAddr, "Advertise IP:Port for swiftnode messages")
	cmd.Flags().DurationP("timeout", "t", _config.Swiftnode.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("sync-timeout", _config.Swiftnode.SyncTimeout, "Timeout of list and winners requests")
	cmd.Flags().Int("max-pool", _config.Swiftnode.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().Bool("no-service", _config.Swiftnode.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Swiftnode.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Swiftnode.Store, "Mirror snapshots into badgerDB")
	cmd.Flags().String("db", _config.Swiftnode.DatabaseDir, "Database directory")

	// Node configuration
	cmd.Flags().Duration("tick", _config.Swiftnode.TickInterval, "Time between maintenance ticks")
	cmd.Flags().Duration("dump-interval", _config.Swiftnode.DumpInterval, "Time between snapshot dumps")

	// Local swiftnode
	cmd.Flags().Bool("swiftnode", _config.Swiftnode.Swiftnode, "Run a local swiftnode")
	cmd.Flags().String("swiftnodeprivkey", _config.Swiftnode.SwiftnodePrivKey, "Operating secret of the local swiftnode")
	cmd.Flags().String("swiftnodeaddr", _config.Swiftnode.SwiftnodeAddr, "IP:Port announced for the local swiftnode")
	cmd.Flags().Bool("mnconflock", _config.Swiftnode.ConfLock, "Lock the collateral of swiftnode.conf entries")
	cmd.Flags().Bool("start-aliases", _config.StartAliases, "Announce every swiftnode.conf entry once synced")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Swiftnode.SetDataDir(_config.Swiftnode.DataDir)

	logFields := logrus.Fields{
		"swiftnode.DataDir":       _config.Swiftnode.DataDir,
		"swiftnode.Network":       _config.Swiftnode.Network,
		"swiftnode.BindAddr":      _config.Swiftnode.BindAddr,
		"swiftnode.AdvertiseAddr": _config.Swiftnode.AdvertiseAddr,
		"swiftnode.ServiceAddr":   _config.Swiftnode.ServiceAddr,
		"swiftnode.NoService":     _config.Swiftnode.NoService,
		"swiftnode.MaxPool":       _config.Swiftnode.MaxPool,
		"swiftnode.Store":         _config.Swiftnode.Store,
		"swiftnode.LogLevel":      _config.Swiftnode.LogLevel,
		"swiftnode.TCPTimeout":    _config.Swiftnode.TCPTimeout,
		"swiftnode.SyncTimeout":   _config.Swiftnode.SyncTimeout,
		"swiftnode.TickInterval":  _config.Swiftnode.TickInterval,
		"swiftnode.DumpInterval":  _config.Swiftnode.DumpInterval,
		"swiftnode.Swiftnode":     _config.Swiftnode.Swiftnode,
		"swiftnode.SwiftnodeAddr": _config.Swiftnode.ServiceAddress(),
		"swiftnode.ConfLock":      _config.Swiftnode.ConfLock,
		"StartAliases":            _config.StartAliases,
	}

	if _config.Swiftnode.Store {
		logFields["swiftnode.DatabaseDir"] = _config.Swiftnode.DatabaseDir
	}

	_config.Swiftnode.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/swiftnoded.toml (.json, .yaml also work)
	viper.SetConfigName("swiftnoded")              // name of config file (without extension)
	viper.AddConfigPath(_config.Swiftnode.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Swiftnode.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Swiftnode.Logger().Debugf("No config file found in: %s", _config.Swiftnode.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
