package swapd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/lightninglabs/swapwatch"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/lncfg"
	"github.com/lightningnetwork/lnd/signal"
)

// Run starts the swap watching daemon and blocks until it's shut down again.
func Run() error {
	config := DefaultConfig()

	// Parse command line flags.
	parser := flags.NewParser(&config, flags.Default)

	_, err := parser.Parse()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}

	// Parse ini file.
	configFile := getConfigPath(config)
	if err := flags.IniParse(configFile, &config); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		if _, ok := err.(*flags.IniError); ok {
			return err
		}
	}

	// Parse command line flags again to restore flags overwritten by ini
	// parse.
	if _, err := parser.Parse(); err != nil {
		return err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if config.ShowVersion {
		fmt.Println(appName, "version", swapwatch.Version())
		os.Exit(0)
	}

	logManager := SetupLoggers(os.Stdout)

	// Special show command to list supported subsystems and exit.
	if config.DebugLevel == "show" {
		fmt.Printf("Supported subsystems: %v\n",
			logManager.SupportedSubsystems())
		os.Exit(0)
	}

	if err := Validate(&config); err != nil {
		return err
	}

	err = build.ParseAndSetDebugLevels(config.DebugLevel, logManager)
	if err != nil {
		return err
	}

	log.Infof("Version: %v", swapwatch.AgentString(appName))

	interceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	daemon, err := NewFromConfig(&config)
	if err != nil {
		return err
	}

	if err := daemon.Start(); err != nil {
		return err
	}

	<-interceptor.ShutdownChannel()
	log.Infof("Received shutdown signal")

	daemon.Stop()

	return nil
}

// getConfigPath returns the config file set on the command line, or the
// default file inside the swapd directory.
func getConfigPath(cfg Config) string {
	if cfg.ConfigFile != defaultConfigFile {
		return lncfg.CleanAndExpandPath(cfg.ConfigFile)
	}

	swapdDir := lncfg.CleanAndExpandPath(cfg.SwapdDir)

	return filepath.Join(swapdDir, defaultConfigFilename)
}
