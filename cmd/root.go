package cmd

import (
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/jobmatch/internal/config"
	"github.com/spigell/jobmatch/internal/logger"
	"go.uber.org/zap"
)

const (
	app = "jobmatch"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobmatch recommends jobs from a local catalog for a set of skills",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := config.SetDefaults(viper.GetViper()); err != nil {
		log.Fatalf("setting config defaults: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging and results")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without an explicit --config a missing file means defaults only.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// setup builds the logger and decodes the config. Failures are fatal.
func setup() (*zap.Logger, *config.Config) {
	logger, err := logger.New(logger.Options{
		JSON:    viper.GetBool("json"),
		Debug:   viper.GetBool("debug"),
		Version: version,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	cfg, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("config loaded",
		zap.String("config_file", viper.ConfigFileUsed()),
		zap.String("dataset", cfg.Dataset),
		zap.String("index_path", cfg.Index.Path),
		zap.String("embedding_mode", cfg.Embedding.Mode),
		zap.String("ranking_provider", cfg.Ranking.Provider),
	)

	return logger, cfg
}
