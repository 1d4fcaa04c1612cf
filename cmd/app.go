package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/config"
	"github.com/sadsciencee/modalkit/internal/logging"
)

// app carries what every command loads first.
type app struct {
	cfgPath string
	cfg     *config.Config
	logger  *zap.Logger
	undo    func()
}

// setup loads configuration and installs the global logger. console controls
// whether logs go to stderr; the TUI owns the terminal so it logs to file only.
func (a *app) setup(cmd *cobra.Command, console bool) error {
	if err := a.flags(cmd); err != nil {
		return err
	}

	var err error
	if a.cfgPath != "" {
		a.cfg, err = config.LoadFromFile(a.cfgPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg := a.cfg.Logging()
	if !console {
		logCfg.OutputPaths = nil
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	debugMode, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return fmt.Errorf("getting debug flag: %w", err)
	}
	if debugMode {
		logPath := config.DebugLogPath()
		if l, debugErr := logging.EnableFile(logger, logPath); debugErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to enable debug logging: %v\n", debugErr)
		} else {
			logger = l
			fmt.Fprintf(os.Stderr, "Debug: %s\n", logPath)
		}
	}

	a.logger = logger
	a.undo = zap.ReplaceGlobals(logger)
	return nil
}

// flags reads the persistent flags without loading anything.
func (a *app) flags(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("getting config flag: %w", err)
	}
	a.cfgPath = path
	return nil
}

// configPath is the file config commands read and write.
func (a *app) configPath() string {
	if a.cfgPath != "" {
		return a.cfgPath
	}
	return config.Path()
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.undo != nil {
		a.undo()
	}
}
