package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/triage/internal/output"
	"github.com/joescharf/triage/internal/reviewstore"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui          *output.UI
	reviewStore reviewstore.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Triage - turn call recordings into reviewed tracker issues",
	Long: `triage listens for call-recording webhooks, extracts action items
with an LLM, posts them to chat for human approval, and files the
approved ones in the issue tracker.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/triage/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "triage")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRIAGE")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "triage")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "triage.db"))
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("chat.token", "")
	viper.SetDefault("chat.channel", "")
	viper.SetDefault("tracker.base_url", "")
	viper.SetDefault("tracker.token", "")
	viper.SetDefault("tracker.team_id", "")
	viper.SetDefault("tracker.project_id", "")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("review.ttl_minutes", 30)
	viper.SetDefault("archive.dir", "")
	viper.SetDefault("archive.push", false)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store is initialized lazily so config/version commands can run
	// without a db.
}

// getStore returns the shared review store, initializing it on first call.
func getStore() (reviewstore.Store, error) {
	if reviewStore != nil {
		return reviewStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := reviewstore.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	reviewStore = s
	return reviewStore, nil
}
