package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ucibridge/infrastructure/PAL/bridge_configuration"
	"ucibridge/infrastructure/PAL/pidfile"
	"ucibridge/infrastructure/logging"
	"ucibridge/presentation/configuring"
	"ucibridge/presentation/runners/host"
)

type cliFlags struct {
	configPath     string
	setup          bool
	stop           bool
	addEngine      string
	engineName     string
	enginePort     int
	pair           bool
	pairOnly       bool
	connectionFile bool
}

func main() {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "ucibridge",
		Short:         "Network bridge exposing local UCI chess engines over TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(flags)
		},
	}

	root.Flags().StringVar(&flags.configPath, "config", "config.json", "configuration file path")
	root.Flags().BoolVar(&flags.setup, "setup", false, "run the interactive setup wizard")
	root.Flags().BoolVar(&flags.stop, "stop", false, "stop a running server via its PID file")
	root.Flags().StringVar(&flags.addEngine, "add-engine", "", "add an engine executable to the configuration")
	root.Flags().StringVar(&flags.engineName, "name", "", "engine name (with --add-engine)")
	root.Flags().IntVar(&flags.enginePort, "port", 0, "engine port (with --add-engine)")
	root.Flags().BoolVar(&flags.pair, "pair", false, "print the pairing QR code and write the connection file")
	root.Flags().BoolVar(&flags.pairOnly, "pair-only", false, "emit the pairing artifacts and exit")
	root.Flags().BoolVar(&flags.connectionFile, "connection-file", false, "write the connection file and exit")

	if runErr := root.Execute(); runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func dispatch(flags *cliFlags) error {
	manager := bridge_configuration.NewManager(bridge_configuration.NewStaticResolver(flags.configPath))

	switch {
	case flags.setup:
		return configuring.NewWizard(manager).Run()
	case flags.stop:
		return stopServer(manager)
	case flags.addEngine != "":
		return addEngine(manager, flags.addEngine, flags.engineName, flags.enginePort)
	}

	cfg, raw, cfgErr := manager.Configuration()
	if cfgErr != nil {
		if errors.Is(cfgErr, bridge_configuration.ErrInvalidConfiguration) {
			fmt.Fprintln(os.Stderr, "Configuration is invalid:")
			for _, violation := range manager.Violations() {
				fmt.Fprintf(os.Stderr, "  - %s\n", violation)
			}
			return fmt.Errorf("fix %s and retry", flags.configPath)
		}
		return fmt.Errorf("%w (run --setup to create a configuration)", cfgErr)
	}

	logger, logErr := logging.Setup(cfg.BaseLogDir, cfg.EnableServerLog)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", logErr)
	}
	runner := host.NewRunner(manager, logger)

	if flags.connectionFile {
		return runner.Pair(cfg, raw, os.Stdout, false)
	}
	if flags.pairOnly {
		return runner.Pair(cfg, raw, os.Stdout, true)
	}
	if flags.pair {
		if pairErr := runner.Pair(cfg, raw, os.Stdout, true); pairErr != nil {
			logger.Warnf("pairing artifacts unavailable: %v", pairErr)
		}
	}

	pid := pidfile.New(cfg.PIDFile)
	if acquireErr := pid.Acquire(); acquireErr != nil {
		return acquireErr
	}
	defer pid.Remove()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return runner.Run(ctx, cfg, raw)
}

// stopServer resolves the PID file path from the configuration when one is
// readable and falls back to the default path otherwise, matching the server
// that wrote it.
func stopServer(manager bridge_configuration.BridgeConfigurationManager) error {
	path := bridge_configuration.NewDefaultConfiguration().PIDFile
	if cfg, _, cfgErr := manager.Configuration(); cfg != nil && (cfgErr == nil ||
		errors.Is(cfgErr, bridge_configuration.ErrInvalidConfiguration)) {
		if cfg.PIDFile != "" {
			path = cfg.PIDFile
		}
	}

	if stopErr := pidfile.New(path).Stop(); stopErr != nil {
		return stopErr
	}
	fmt.Println("Server stopped")
	return nil
}

// addEngine appends an engine entry to the configuration document. A missing
// name derives from the file name; a missing port continues the sequence
// after the highest configured port, starting at base_port.
func addEngine(manager bridge_configuration.BridgeConfigurationManager, path, name string, port int) error {
	absPath, absErr := filepath.Abs(path)
	if absErr != nil {
		return absErr
	}
	info, statErr := os.Stat(absPath)
	if statErr != nil || info.IsDir() {
		return fmt.Errorf("engine path does not exist: %s", absPath)
	}
	if name == "" {
		base := filepath.Base(absPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cfg, _, cfgErr := manager.Configuration()
	if cfg == nil {
		if cfgErr != nil && !errors.Is(cfgErr, bridge_configuration.ErrInvalidConfiguration) {
			return fmt.Errorf("%w (run --setup first)", cfgErr)
		}
		return fmt.Errorf("no configuration found, run --setup first")
	}
	if cfg.Engines == nil {
		cfg.Engines = make(map[string]bridge_configuration.EngineDetails)
	}
	if _, exists := cfg.Engines[name]; exists {
		return fmt.Errorf("engine %q already exists in the configuration", name)
	}

	if port == 0 {
		highest := cfg.BasePort - 1
		for _, details := range cfg.Engines {
			if details.Port > highest {
				highest = details.Port
			}
		}
		port = highest + 1
	}
	for existing, details := range cfg.Engines {
		if details.Port == port {
			return fmt.Errorf("port %d already used by engine %q", port, existing)
		}
	}

	cfg.Engines[name] = bridge_configuration.EngineDetails{Path: absPath, Port: port}
	if writeErr := manager.Write(*cfg); writeErr != nil {
		return writeErr
	}
	fmt.Printf("Added engine %q on port %d\n", name, port)
	return nil
}
