package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/ugp/internal/logging"
	"github.com/ppiankov/ugp/internal/model"
)

// Version is set at build time via -ldflags
var Version = "v0.1.0"

var (
	cfgFile     string
	verbose     bool
	logLevel    string
	logFormat   string
	metricsFile string

	// configErr holds a config file read failure until a command loads the config
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ugp",
	Short: "UGP - Unified Geothermobarometry Platform",
	Long: `UGP runs pressure/temperature estimation engines on petrological
datasets through one interface.

Engines are selected by name. Results can carry bootstrap uncertainty:
the engine is re-run on resampled copies of the dataset and the pooled
estimates are summarised as mean, standard deviation and a percentile
interval.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of UGP.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ugp %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.ugp/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format (text, json)")
	pf.StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this file on exit")

	bindFlags()

	rootCmd.AddCommand(versionCmd)
}

// bindFlags binds the global flags to their viper keys
func bindFlags() {
	pf := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("metrics.file", pf.Lookup("metrics-file"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	configErr = nil
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".ugp"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	setDefaults(model.DefaultConfig())

	// Read in environment variables that match UGP_*, e.g. UGP_UNCERTAINTY_ITERATIONS
	viper.SetEnvPrefix("UGP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	switch {
	case err == nil:
		if verbose {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	case errors.As(err, new(viper.ConfigFileNotFoundError)):
		// no config file; defaults and env apply
	default:
		configErr = model.WithKind(model.ErrConfiguration, fmt.Errorf("read config: %w", err))
	}
}

// setDefaults registers every config key so env variables can override keys absent from the file
func setDefaults(cfg *model.Config) {
	defaults := map[string]any{
		"data_dir":                cfg.DataDir,
		"cache_dir":               cfg.CacheDir,
		"default_engine":          cfg.DefaultEngine,
		"log.level":               cfg.Log.Level,
		"log.format":              cfg.Log.Format,
		"uncertainty.enabled":     cfg.Uncertainty.Enabled,
		"uncertainty.iterations":  cfg.Uncertainty.Iterations,
		"uncertainty.confidence":  cfg.Uncertainty.Confidence,
		"uncertainty.seed":        nil,
		"uncertainty.workers":     cfg.Uncertainty.Workers,
		"cache.enabled":           cfg.Cache.Enabled,
		"cache.memory_ttl":        cfg.Cache.MemoryTTL,
		"cache.disk_ttl":          cfg.Cache.DiskTTL,
		"concurrency.workers":     cfg.Concurrency.Workers,
		"engines.rate_per_second": cfg.Engines.RatePerSecond,
		"engines.burst":           cfg.Engines.Burst,
		"http.timeout":            cfg.HTTP.Timeout,
		"http.user_agent":         cfg.HTTP.UserAgent,
		"http.max_body_bytes":     cfg.HTTP.MaxBodyBytes,
		"http.http_proxy":         cfg.HTTP.HTTPProxy,
		"http.https_proxy":        cfg.HTTP.HTTPSProxy,
		"metrics.file":            cfg.Metrics.File,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// loadConfig merges defaults, config file, environment and bound flags
func loadConfig() (*model.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, model.WithKind(model.ErrConfiguration, fmt.Errorf("decode config: %w", err))
	}
	return cfg, nil
}

func initLogging() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return model.WithKind(model.ErrConfiguration, err)
	}
	if verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	logging.Init(level, cfg.Log.Format)
	return nil
}
