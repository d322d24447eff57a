package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/cmdx"
	"github.com/goto/salt/config"
	"github.com/goto/sift/internal/store/postgres"
	"github.com/goto/sift/internal/store/redis"
	"github.com/goto/sift/internal/workermanager"
	"github.com/goto/sift/pkg/statsd"
	"github.com/goto/sift/pkg/telemetry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

type Config struct {
	// Log
	LogLevel string `yaml:"log_level" mapstructure:"log_level" default:"info"`

	// Database
	DB postgres.Config `yaml:"db" mapstructure:"db"`

	// Search
	Search SearchConfig `yaml:"search" mapstructure:"search"`

	// Suggest cache
	Cache redis.Config `yaml:"cache" mapstructure:"cache"`

	// Worker
	Worker workermanager.Config `yaml:"worker" mapstructure:"worker"`

	// Telemetry
	Telemetry telemetry.Config `yaml:"telemetry" mapstructure:"telemetry"`

	// StatsD
	StatsD statsd.Config `yaml:"statsd" mapstructure:"statsd"`
}

type SearchConfig struct {
	// BatchSize is the number of resources read per batch by the indexers.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" default:"100"`
}

func configCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <command>",
		Short: "Manage sift configuration",
		Example: heredoc.Doc(`
			$ sift config init
			$ sift config list`),
	}

	cmd.AddCommand(configInitCommand())
	cmd.AddCommand(configListCommand(cfg))

	return cmd
}

func configInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file with the defaults",
		Example: heredoc.Doc(`
			$ sift config init
		`),
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cmdx.SetConfig("sift")

			if err := cfg.Init(&Config{}); err != nil {
				return err
			}

			fmt.Printf("config created: %v\n", cfg.File())
			return nil
		},
	}
}

func configListCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded configuration",
		Example: heredoc.Doc(`
			$ sift config list
		`),
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return yaml.NewEncoder(os.Stdout).Encode(*cfg)
		},
	}
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := cmdx.SetConfig("sift").Load(&cfg)
	if err != nil {
		if errors.As(err, &config.ConfigFileNotFoundError{}) {
			return LoadFromCurrentDir()
		}
		return &cfg, err
	}
	return &cfg, nil
}

func LoadFromCurrentDir() (*Config, error) {
	var cfg Config
	var opts []config.LoaderOption

	opts = append(opts,
		config.WithPath("./"),
		config.WithName("sift.yaml"),
		config.WithEnvKeyReplacer(".", "_"),
		config.WithEnvPrefix("SIFT"),
	)

	if err := config.NewLoader(opts...).Load(&cfg); err != nil {
		if errors.As(err, &config.ConfigFileNotFoundError{}) {
			return &cfg, ErrConfigNotFound
		}
		return &cfg, err
	}
	return &cfg, nil
}

func LoadConfigFromFlag(cfgFile string, cfg *Config) error {
	var opts []config.LoaderOption
	opts = append(opts,
		config.WithFile(cfgFile),
		config.WithEnvKeyReplacer(".", "_"),
		config.WithEnvPrefix("SIFT"),
	)

	return config.NewLoader(opts...).Load(cfg)
}
