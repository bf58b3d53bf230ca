// Package cli implements the noisegate command-line tool.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/noisegate/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	version   = "0.1.0"
	envPrefix = "NOISEGATE"
)

// engine setting key -> flag name
var engineFlags = map[string]string{
	"alert_suppression_window": "alert-window",
	"log_suppression_window":   "log-window",
	"activity_window":          "activity-window",
	"actionable_min_count":     "min-count",
	"sample_cap":               "sample-cap",
	"signature_length":         "signature-length",
	"max_groups":               "max-groups",
	"last_seen_policy":         "last-seen-policy",
	"noise_rules_file":         "noise-rules",
}

// NewRootCommand builds the noisegate command tree. Each call gets its own
// viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:   "noisegate",
		Short: "Collapse noisy alert and log streams into actionable groups",
		Long: `noisegate groups near-duplicate alerts and log lines by fingerprint,
suppresses repeats inside a time window and filters known noise, leaving
only the event classes that are new or still live.

Engine settings come from flags, NOISEGATE_* environment variables or a
.noisegate.yaml file in the working directory, in that order of precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, configFile)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: ./.noisegate.yaml)")
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf("noisegate version %s\n", version))

	root.AddCommand(newReplayCommand(v))
	return root
}

func initConfig(v *viper.Viper, configFile string) error {
	def := config.DefaultEngineConfig()
	v.SetDefault("alert_suppression_window", def.AlertSuppressionWindow)
	v.SetDefault("log_suppression_window", def.LogSuppressionWindow)
	v.SetDefault("activity_window", def.ActivityWindow)
	v.SetDefault("actionable_min_count", def.ActionableMinCount)
	v.SetDefault("sample_cap", def.SampleCap)
	v.SetDefault("signature_length", def.SignatureLength)
	v.SetDefault("max_groups", def.MaxGroups)
	v.SetDefault("last_seen_policy", def.LastSeenPolicy)
	v.SetDefault("noise_rules_file", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".noisegate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// bindEngineFlags registers the engine setting flags on fs and binds them to v.
func bindEngineFlags(fs *pflag.FlagSet, v *viper.Viper) {
	def := config.DefaultEngineConfig()
	fs.Duration("alert-window", def.AlertSuppressionWindow, "Suppression window for alerts")
	fs.Duration("log-window", def.LogSuppressionWindow, "Suppression window for log lines")
	fs.Duration("activity-window", def.ActivityWindow, "Groups seen within this window are active")
	fs.Int("min-count", def.ActionableMinCount, "Minimum group size to count as actionable")
	fs.Int("sample-cap", def.SampleCap, "Sample events kept per group")
	fs.Int("signature-length", def.SignatureLength, "Hex characters kept from the SHA-256 signature (1-64)")
	fs.Int("max-groups", def.MaxGroups, "Evict the least recently seen group beyond this many (0 = unbounded)")
	fs.String("last-seen-policy", def.LastSeenPolicy, "How last_seen advances: processed or latest")
	fs.String("noise-rules", "", "YAML file with extra noise patterns")

	for key, name := range engineFlags {
		// Lookup cannot fail for flags registered above.
		_ = v.BindPFlag(key, fs.Lookup(name))
	}
}

func loadEngineConfig(v *viper.Viper) (config.EngineConfig, error) {
	var ec config.EngineConfig
	if err := v.Unmarshal(&ec); err != nil {
		return ec, fmt.Errorf("decode engine settings: %w", err)
	}
	if err := ec.Validate(); err != nil {
		return ec, err
	}
	return ec, nil
}
