package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saiakki/jiradash/internal/config"
	"github.com/saiakki/jiradash/internal/logger"
)

var (
	cfg *config.Config

	configPath string
	logLevel   string
	logFile    string
	logConsole bool

	quickStart    bool
	dashboardOnly bool
	noAuth        bool
	port          int
)

var rootCmd = &cobra.Command{
	Use:   "jiradash",
	Short: "Jira monitoring dashboard with live auto-refresh",
	Long: `jiradash syncs issue and project data from the Jira REST API into local
JSON snapshots and serves them through an authenticated web dashboard that
refreshes on a fixed interval.

Run 'jiradash' without arguments to fetch once and start serving.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		// CLI flags override file/env settings
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		if noAuth {
			cfg.AuthDisabled = true
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logConfig := logger.DefaultConfig()
		logConfig.Level = logger.ParseLevel(cfg.LogLevel)
		logConfig.FilePath = cfg.LogFile
		logConfig.Console = cfg.LogConsole
		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("jiradash started", logger.F("command", cmd.Name()))
		return nil
	},
	RunE: runServe,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("jiradash exiting", logger.F("command", cmd.Name()))
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", true, "Enable console logging")

	rootCmd.Flags().BoolVar(&quickStart, "quick-start", false, "Serve existing data, skip the eager fetch")
	rootCmd.Flags().BoolVar(&dashboardOnly, "dashboard-only", false, "Serve without ever contacting Jira")
	rootCmd.Flags().BoolVar(&noAuth, "no-auth", false, "Disable the login gate (legacy mode)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Dashboard port (default 8080)")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(usersCmd)
}
