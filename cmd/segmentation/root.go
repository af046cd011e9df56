package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/segmentation/config"
	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/segmentation"
	"github.com/kbukum/segmentation/version"
)

var rootFlags struct {
	configFile string
	envFile    string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "segmentation",
	Short: "BigQuery k-means segmentation pipelines",
	Long: "segmentation trains BigQuery ML k-means models and scores tables with the best\n" +
		"recent model, then announces the flattened predictions on Pub/Sub or Kafka.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootFlags.configFile, "config", "c", "", "config file (default: discovered config.yml)")
	f.StringVar(&rootFlags.envFile, "env-file", "", ".env file loaded before the environment is read")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version.GetShortVersion()
}

// loadConfig reads config files and SEGMENTATION_* variables, applies
// defaults and initializes the global logger.
func loadConfig() (*segmentation.Config, error) {
	opts := []config.LoaderOption{
		config.WithDefaults(segmentation.Defaults()),
		config.WithEnvPrefix("SEGMENTATION"),
	}
	if rootFlags.configFile != "" {
		opts = append(opts, config.WithConfigFile(rootFlags.configFile))
	}
	if rootFlags.envFile != "" {
		opts = append(opts, config.WithEnvFile(rootFlags.envFile))
	}

	var cfg segmentation.Config
	if err := config.LoadConfig(segmentation.ServiceName, &cfg, opts...); err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Logging.Level = rootFlags.logLevel
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging, cfg.Name)
	return &cfg, nil
}
