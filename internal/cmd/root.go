package cmd

import (
	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/logger/console"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	local bool
	debug bool
}

// NewRootCommand builds the ingest command. Each call returns a fresh command
// so tests can execute it with their own arguments and output.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [document.json...]",
		Short: "Submit documents to the knowledge graph",
		Long: `Reads one or more JSON documents and queues them for integration.

With --local the documents are integrated in-process and the resulting
graphs, cross-document relationships and statistics are printed as JSON.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.LoadEnv()
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
				Debug:  opts.debug,
				Output: cmd.ErrOrStderr(),
			}))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args)
			if err != nil {
				return err
			}
			if opts.local {
				return integrateLocal(cmd.Context(), cmd.OutOrStdout(), docs)
			}
			return publish(docs)
		},
	}

	cmd.Flags().BoolVar(&opts.local, "local", false, "integrate the documents in-process and print the resulting graphs")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	return cmd
}

// Execute runs the root command until it finishes or ctx is cancelled.
func Execute() error {
	ctx, stop := signalContext()
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
