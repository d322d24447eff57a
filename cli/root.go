package cli

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/cmdx"
	"github.com/spf13/cobra"
)

const configFlag = "config"

var envHelp = map[string]string{
	"short": "List of supported environment variables",
	"long": heredoc.Doc(`
		Every config key can be overridden by an environment variable. The
		variable is the key in upper case, prefixed with SIFT_ and with dots
		replaced by underscores.

		SIFT_LOG_LEVEL: log level of the logger (debug, info, warn, error)

		SIFT_DB_HOST, SIFT_DB_PORT, SIFT_DB_NAME, SIFT_DB_USER, SIFT_DB_PASSWORD:
		connection of the resource database.

		SIFT_WORKER_ENABLED: run index jobs through the postgres queue.

		SIFT_CACHE_ENABLED, SIFT_CACHE_ADDR: redis cache of the suggest answers.
	`),
}

func New(cfg *Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sift <command> <subcommand> [flags]",
		Short:         "Faceted search and autosuggest",
		Long:          "Faceted search and autosuggest over a relational store of resources.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: heredoc.Doc(`
			$ sift search --engine 1 --text paris
			$ sift suggest --suggester 1 par
			$ sift index suggestions 1
			$ sift worker start
		`),
		Annotations: map[string]string{
			"group": "core",
			"help:learn": heredoc.Doc(`
				Use 'sift <command> --help' for info about a command.
			`),
			"help:feedback": heredoc.Doc(`
				Open an issue here https://github.com/goto/sift/issues
			`),
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString(configFlag)
			if err != nil || path == "" {
				return nil
			}
			return LoadConfigFromFlag(path, cfg)
		},
	}

	rootCmd.PersistentFlags().StringP(configFlag, "c", "", "Override config file")

	rootCmd.AddCommand(
		configCommand(cfg),
		migrateCmd(cfg),
		searchCmd(cfg),
		suggestCmd(cfg),
		indexCmd(cfg),
		jobCmd(cfg),
		workerCmd(cfg),
		versionCmd(),
	)

	// Help topics
	rootCmd.AddCommand(cmdx.SetCompletionCmd("sift"))
	rootCmd.AddCommand(cmdx.SetRefCmd(rootCmd))
	rootCmd.AddCommand(cmdx.SetHelpTopicCmd("environment", envHelp))
	cmdx.SetHelp(rootCmd)

	return rootCmd
}
