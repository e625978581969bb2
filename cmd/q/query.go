package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rfushimi/q/internal/commands"
	"github.com/rfushimi/q/internal/config"
	contextbuilder "github.com/rfushimi/q/internal/context"
	"github.com/rfushimi/q/internal/engine"
	"github.com/rfushimi/q/internal/factory"
	"github.com/rfushimi/q/internal/render"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// errMissingPrompt is returned when q is run without a prompt
var errMissingPrompt = errors.New("a prompt is required")

type queryOptions struct {
	history bool
	here    bool
	file    string
	cmd     string
	noCache bool
	retries int
	detail  string
	stream  bool
}

func newRootCmd() *cobra.Command {
	var (
		global globalOptions
		opts   queryOptions
	)

	cmd := &cobra.Command{
		Use:   "q [flags] <prompt...>",
		Short: "Ask an LLM from the command line",
		Long: `q sends a prompt to OpenAI, Gemini, Anthropic or a local Ollama model and prints the answer.

Shell history, a directory listing or a file can be attached as context.
Answers are cached so repeating a question is instant.`,
		Example: `  q how do I undo the last git commit
  q -H what did I just break
  q -F main.go explain this
  q --cmd "benchmark a command"`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, &global, &opts, args)
		},
	}

	global.register(cmd)

	flags := cmd.Flags()
	flags.BoolVarP(&opts.history, "hist", "H", false, "include recent shell history as context")
	flags.BoolVarP(&opts.here, "here", "D", false, "include a listing of the current directory as context")
	flags.StringVarP(&opts.file, "file", "F", "", "include the contents of a file as context")
	flags.StringVarP(&opts.cmd, "cmd", "C", "", "suggest command-line tools for a task instead of querying")
	flags.BoolVar(&opts.noCache, "no-cache", false, "bypass the response cache")
	flags.IntVar(&opts.retries, "retries", 3, "maximum attempts for transient failures")
	flags.StringVarP(&opts.detail, "detail", "d", "", "answer detail: concise, normal, detailed (default from config)")
	flags.BoolVar(&opts.stream, "stream", true, "stream the answer as it is generated (default from config)")

	cmd.AddCommand(
		newSetKeyCmd(&global),
		newSetProviderCmd(&global),
		newSetModelCmd(&global),
		newValidateKeyCmd(&global),
		newCacheCmd(&global),
		newServeCmd(&global),
		newMCPCmd(&global),
	)

	return cmd
}

func runQuery(cmd *cobra.Command, global *globalOptions, opts *queryOptions, args []string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if opts.cmd != "" {
		return suggestCommands(cmd, opts.cmd)
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		_ = cmd.Usage()
		return errMissingPrompt
	}

	logger := global.logger(cmd, zerolog.WarnLevel)
	ctx := cmd.Context()

	adjust := func(ec *engine.Config) {
		if cmd.Flags().Changed("retries") {
			ec.MaxRetries = opts.retries
		}
		if cmd.Flags().Changed("stream") {
			ec.Stream = opts.stream
		}
		ec.ShowProgress = !global.debug
	}

	a, err := newApp(global, opts.detail, adjust, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	providers := contextProviders(a.cfg, opts)
	sections, err := contextbuilder.Gather(ctx, logger, providers...)
	if err != nil {
		return err
	}
	finalPrompt := contextbuilder.Assemble(sections, prompt)

	term := render.NewTerminal(out, errOut)
	a.engine.SetRenderer(term)

	render.PrintModelLine(errOut, a.backend.Provider, a.engine.ModelName())

	result, err := a.engine.Run(ctx, finalPrompt, engine.QueryOptions{NoCache: opts.noCache})
	if err != nil {
		return err
	}

	logger.Info().
		Str("id", result.ID).
		Bool("cached", result.Cached).
		Dur("duration", result.Duration).
		Msg("Query completed")

	if !term.Streamed() {
		fmt.Fprint(out, render.FormatMarkdown(result.Answer, render.NewTheme(out)))
	}

	return nil
}

func contextProviders(cfg *config.Config, opts *queryOptions) []contextbuilder.Provider {
	cc := factory.ContextConfig(cfg.Context)

	var providers []contextbuilder.Provider
	if opts.history {
		providers = append(providers, contextbuilder.NewHistoryProvider(cc))
	}
	if opts.here {
		providers = append(providers, contextbuilder.NewDirectoryProvider("", cc))
	}
	if opts.file != "" {
		providers = append(providers, contextbuilder.NewFileProvider(opts.file, cc))
	}
	return providers
}

func suggestCommands(cmd *cobra.Command, query string) error {
	out := cmd.OutOrStdout()
	matcher := commands.NewMatcher(commands.NewDatabase())

	cmds, err := matcher.Suggest(query)
	if err != nil {
		return err
	}

	fmt.Fprint(out, commands.FormatSuggestions(cmds, render.NewTheme(out)))
	return nil
}
