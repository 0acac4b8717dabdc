// Package sqlassist implements the sqlassist command line: an interactive
// question loop plus one-shot subcommands.
package sqlassist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlassist/sqlassist/internal/assist"
)

type Flags struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
	NoColor bool
	Verbose bool
}

type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Connect builds the backend after flags are parsed. Nil selects
	// DefaultConnect.
	Connect func(ctx context.Context, flags Flags) (Backend, error)
	// Interactive shows a prompt in the REPL.
	Interactive bool
}

// errReported marks an error the command already rendered.
var errReported = errors.New("reported")

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Stdin == nil {
		opts.Stdin = strings.NewReader("")
	}

	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(opts.Stdin)
	cmd.SetOut(opts.Stdout)
	cmd.SetErr(opts.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			_, _ = fmt.Fprintf(opts.Stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func NewRootCommand(opts Options) *cobra.Command {
	flags := &Flags{}
	connect := opts.Connect
	if connect == nil {
		connect = func(ctx context.Context, f Flags) (Backend, error) {
			return DefaultConnect(ctx, f, opts.Stderr)
		}
	}
	renderers := func() (*Renderer, *Renderer) {
		return NewRenderer(opts.Stdout, !flags.NoColor), NewRenderer(opts.Stderr, !flags.NoColor)
	}

	cmd := &cobra.Command{
		Use:           "sqlassist",
		Short:         "Ask questions about the customers/orders data in plain English",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := connect(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			out, errOut := renderers()
			repl := &REPL{Backend: backend, In: opts.Stdin, Out: out, Err: errOut}
			if opts.Interactive {
				repl.Prompt = prompt
			}
			return repl.Run(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&flags.APIURL, "api-url", "", "use a running sqlassist API instead of the local store")
	cmd.PersistentFlags().StringVar(&flags.APIKey, "api-key", "", "API key sent with --api-url requests")
	cmd.PersistentFlags().DurationVar(&flags.Timeout, "timeout", 30*time.Second, "HTTP timeout for --api-url requests")
	cmd.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "log pipeline stages")

	cmd.AddCommand(newAskCommand(flags, connect, renderers))
	cmd.AddCommand(newSchemaCommand(flags, connect, renderers))
	cmd.AddCommand(newExamplesCommand(renderers))
	cmd.AddCommand(newRemoteCommand("health", "/api/health", "Show API health", flags, opts))
	cmd.AddCommand(newRemoteCommand("history", "/api/history", "Show recently asked questions", flags, opts))
	return cmd
}

type connectFunc func(ctx context.Context, flags Flags) (Backend, error)

func newAskCommand(flags *Flags, connect connectFunc, renderers func() (*Renderer, *Renderer)) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := connect(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			out, errOut := renderers()
			envelope, err := backend.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				errOut.Error(err)
				return errReported
			}
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(envelope)
			}
			out.Envelope(envelope)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}

func newSchemaCommand(flags *Flags, connect connectFunc, renderers func() (*Renderer, *Renderer)) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the tables the assistant can query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := connect(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			out, errOut := renderers()
			descriptor, err := backend.Schema(cmd.Context())
			if err != nil {
				errOut.Error(err)
				return errReported
			}
			out.Schema(descriptor)
			return nil
		},
	}
}

func newExamplesCommand(renderers func() (*Renderer, *Renderer)) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "List example questions",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			out, _ := renderers()
			out.Examples(assist.Examples)
			return nil
		},
	}
}

func newRemoteCommand(name, path, short string, flags *Flags, opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short + " (requires --api-url)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.APIURL == "" {
				return fmt.Errorf("%s requires --api-url", name)
			}
			client := NewClient(flags.APIURL, flags.APIKey, flags.Timeout, nil)
			body, err := client.GetJSON(cmd.Context(), path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(opts.Stdout, body)
			return nil
		},
	}
}
