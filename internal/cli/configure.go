package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ezralim/compere/internal/config"
)

var (
	configureProvider string
	configureModel    string
	configureAPIKey   string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a starter configuration file",
	Long: `Write a starter configuration file with sensible defaults.
Flags override the defaults; everything else can be edited in place
afterwards or overridden with COMPERE_* environment variables.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureProvider, "provider", "", "model provider (openai, anthropic)")
	configureCmd.Flags().StringVar(&configureModel, "model", "", "model name")
	configureCmd.Flags().StringVar(&configureAPIKey, "api-key", "", "model provider API key")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configureProvider != "" {
		cfg.Model.Provider = configureProvider
	}
	if configureModel != "" {
		cfg.Model.Name = configureModel
	}
	if configureAPIKey != "" {
		cfg.Model.APIKey = configureAPIKey
	}

	// Without an API key the config is a template, so only validate a
	// complete one.
	if cfg.Model.APIKey != "" {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	if cfg.Model.APIKey == "" {
		fmt.Fprintln(out, "Set model.api_key (or OPENAI_API_KEY / ANTHROPIC_API_KEY) before serving.")
	}
	fmt.Fprintln(out, "\nYou can now start Compere with: compere serve")

	return nil
}
