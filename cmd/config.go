package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "triage"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage triage configuration.

Running bare 'triage config' is the same as 'triage config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# triage configuration
# See: triage config show (for effective values and sources)

# SQLite database path (default: ~/.config/triage/triage.db)
# db_path: {{ .DBPath }}

server:
  # Port the webhook server listens on (default: 8080)
  port: {{ .ServerPort }}

webhook:
  # Shared HMAC secret used to verify inbound webhooks
  secret: "{{ .WebhookSecret }}"

chat:
  # Bot token for posting review messages
  token: "{{ .ChatToken }}"

  # Channel that receives review messages
  channel: "{{ .ChatChannel }}"

tracker:
  # Issue tracker API base URL
  base_url: "{{ .TrackerBaseURL }}"

  # Tracker API token
  token: "{{ .TrackerToken }}"

  # Team receiving created issues
  team_id: "{{ .TrackerTeamID }}"

  # Optional project for created issues
  project_id: "{{ .TrackerProjectID }}"

anthropic:
  # API key for action-item extraction (or ANTHROPIC_API_KEY env var)
  api_key: "{{ .AnthropicAPIKey }}"

  # Model used for extraction
  model: "{{ .AnthropicModel }}"

review:
  # Minutes a review stays actionable (default: 30)
  ttl_minutes: {{ .ReviewTTLMinutes }}

archive:
  # Git-backed directory for transcript archival (empty disables it)
  dir: "{{ .ArchiveDir }}"

  # Push after each archive commit (default: false)
  push: {{ .ArchivePush }}
`

type configTemplateData struct {
	DBPath           string
	ServerPort       int
	WebhookSecret    string
	ChatToken        string
	ChatChannel      string
	TrackerBaseURL   string
	TrackerToken     string
	TrackerTeamID    string
	TrackerProjectID string
	AnthropicAPIKey  string
	AnthropicModel   string
	ReviewTTLMinutes int
	ArchiveDir       string
	ArchivePush      bool
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DBPath:           viper.GetString("db_path"),
		ServerPort:       viper.GetInt("server.port"),
		WebhookSecret:    viper.GetString("webhook.secret"),
		ChatToken:        viper.GetString("chat.token"),
		ChatChannel:      viper.GetString("chat.channel"),
		TrackerBaseURL:   viper.GetString("tracker.base_url"),
		TrackerToken:     viper.GetString("tracker.token"),
		TrackerTeamID:    viper.GetString("tracker.team_id"),
		TrackerProjectID: viper.GetString("tracker.project_id"),
		AnthropicAPIKey:  viper.GetString("anthropic.api_key"),
		AnthropicModel:   viper.GetString("anthropic.model"),
		ReviewTTLMinutes: viper.GetInt("review.ttl_minutes"),
		ArchiveDir:       viper.GetString("archive.dir"),
		ArchivePush:      viper.GetBool("archive.push"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "db_path", EnvVar: "TRIAGE_DB_PATH"},
	{Key: "server.port", EnvVar: "TRIAGE_SERVER_PORT"},
	{Key: "webhook.secret", EnvVar: "TRIAGE_WEBHOOK_SECRET"},
	{Key: "chat.token", EnvVar: "TRIAGE_CHAT_TOKEN"},
	{Key: "chat.channel", EnvVar: "TRIAGE_CHAT_CHANNEL"},
	{Key: "tracker.base_url", EnvVar: "TRIAGE_TRACKER_BASE_URL"},
	{Key: "tracker.team_id", EnvVar: "TRIAGE_TRACKER_TEAM_ID"},
	{Key: "tracker.project_id", EnvVar: "TRIAGE_TRACKER_PROJECT_ID"},
	{Key: "anthropic.model", EnvVar: "TRIAGE_ANTHROPIC_MODEL"},
	{Key: "review.ttl_minutes", EnvVar: "TRIAGE_REVIEW_TTL_MINUTES"},
	{Key: "archive.dir", EnvVar: "TRIAGE_ARCHIVE_DIR"},
	{Key: "archive.push", EnvVar: "TRIAGE_ARCHIVE_PUSH"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set, set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'triage config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
