// Package cli is the nlquery command line: the MCP server plus operator
// commands that run the same pipeline from a terminal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nlquery/nlquery/internal/config"
	"github.com/nlquery/nlquery/internal/mcpserver"
)

const serviceName = "nlquery"

type Options struct {
	Version string
	Lookup  config.LookupFunc
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	// Build overrides how the pipeline is assembled from configuration.
	Build BuildFunc
}

// Run executes args and returns the process exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	opts = opts.withDefaults()
	root := NewRootCommand(opts)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errReplyFailed) {
			return 1
		}
		_, _ = fmt.Fprintf(opts.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func NewRootCommand(opts Options) *cobra.Command {
	opts = opts.withDefaults()
	var configFile string
	lookup := func(key string) (string, bool) {
		if key == config.EnvConfigFile && strings.TrimSpace(configFile) != "" {
			return configFile, true
		}
		return opts.Lookup(key)
	}
	load := func() (config.Config, error) {
		return config.Load(serviceName, lookup)
	}

	root := &cobra.Command{
		Use:   "nlquery",
		Short: "Natural-language SQL queries over MCP",
		Long: `nlquery exposes the nl_query tool over the Model Context Protocol.
A hosted model turns a natural-language request into one SELECT statement,
which runs against the configured database and returns at most 100 rows.

Running without a subcommand starts the stdio server.`,
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, load)
		},
	}
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides "+config.EnvConfigFile+")")

	root.AddCommand(
		newServeCommand(opts, load),
		newQueryCommand(opts, load),
		newSchemaCommand(opts, load),
	)
	return root
}

func newServeCommand(opts Options, load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the " + mcpserver.ToolName + " tool on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, load)
		},
	}
}

func newQueryCommand(opts Options, load loadFunc) *cobra.Command {
	var outputFormat string
	cmd := &cobra.Command{
		Use:   "query <prompt...>",
		Short: "Run one natural-language query and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(cmd.Context(), opts, load)
			if err != nil {
				return err
			}
			reply := app.service.Handle(cmd.Context(), strings.Join(args, " "), outputFormat)
			_, _ = fmt.Fprintln(opts.Stdout, reply)
			if isErrorReply(reply) {
				return errReplyFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFormat, "format", "f", mcpserver.DefaultFormat, "formatted, query_only, csv or json")
	return cmd
}

func newSchemaCommand(opts Options, load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema document sent to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(cmd.Context(), opts, load)
			if err != nil {
				return err
			}
			doc, err := app.service.LoadSchema(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(opts.Stdout, doc)
			return nil
		},
	}
}

func (o Options) withDefaults() Options {
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.Lookup == nil {
		o.Lookup = os.LookupEnv
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = io.Discard
	}
	if o.Stderr == nil {
		o.Stderr = io.Discard
	}
	if o.Build == nil {
		o.Build = DefaultBuild
	}
	return o
}
