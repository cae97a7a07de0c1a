// Command deepresearch runs bounded research loops against an
// OpenAI-compatible model and keeps a history of finished runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nevindra/deepresearch"
	"github.com/nevindra/deepresearch/internal/config"
)

// Options holds the command's injectable dependencies.
type Options struct {
	Stores  StoreFactory
	Runners RunnerFactory
	Stdout  io.Writer
	Stderr  io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(Options{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the flag values shared by every subcommand.
type cli struct {
	opts       Options
	configPath string
	verbose    bool
}

func newRootCmd(opts Options) *cobra.Command {
	if opts.Stores == nil {
		opts.Stores = DefaultStoreFactory
	}
	if opts.Runners == nil {
		opts.Runners = DefaultRunnerFactory
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:           "deepresearch",
		Short:         "deepresearch - bounded web research agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("DEEPRESEARCH_CONFIG"), "path to deepresearch.toml")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(c.runCmd(), c.historyCmd(), c.showCmd(), c.deleteCmd())
	return root
}

func (c *cli) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.opts.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *cli) load() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c *cli) runCmd() *cobra.Command {
	var asJSON, noSave bool
	cmd := &cobra.Command{
		Use:   "run <question>",
		Short: "Research a question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question is empty")
			}
			cfg, err := c.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := c.logger()

			var store runStore
			if !noSave {
				store, err = c.opts.Stores(ctx, cfg, logger)
				if err != nil {
					return fmt.Errorf("open store: %w", err)
				}
				defer store.Close()
			}

			var saver deepresearch.RunStore
			if store != nil {
				saver = store
			}
			runner, shutdown, err := c.opts.Runners(ctx, cfg, saver, logger)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					logger.Warn("observer shutdown failed", "error", err)
				}
			}()

			res, err := runner.Run(ctx, question)
			if err != nil {
				return fmt.Errorf("research failed: %w", err)
			}
			if asJSON {
				return writeJSON(c.opts.Stdout, res)
			}
			printResult(c.opts.Stdout, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the run in history")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, s runStore) error {
				runs, err := s.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				printHistory(c.opts.Stdout, runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, s runStore) error {
				rec, err := s.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(c.opts.Stdout, rec)
				}
				printRecord(c.opts.Stdout, rec)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored run as JSON")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(ctx context.Context, s runStore) error {
				return s.DeleteRun(ctx, args[0])
			})
		},
	}
}

func (c *cli) withStore(ctx context.Context, fn func(context.Context, runStore) error) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	s, err := c.opts.Stores(ctx, cfg, c.logger())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	return fn(ctx, s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printResult(w io.Writer, res deepresearch.Result) {
	if res.Termination == deepresearch.TerminationAnswer {
		fmt.Fprintln(w, res.Content)
	} else {
		fmt.Fprintf(w, "No answer (%s).\n", res.Termination)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "run %s: %d llm calls, %d rounds, %s\n",
		res.RunID, res.LLMCallsUsed, res.Rounds, res.Duration.Round(time.Second))
	printEvidence(w, res.EvidenceChains)
}

func printEvidence(w io.Writer, evidence []deepresearch.EvidenceRecord) {
	if len(evidence) == 0 {
		return
	}
	fmt.Fprintf(w, "\nEvidence (%d):\n", len(evidence))
	for i, e := range evidence {
		line := oneLine(e.Summary, 160)
		if e.URL != "" {
			line += " <" + e.URL + ">"
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, line)
	}
}

func printHistory(w io.Writer, runs []deepresearch.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tRESULT\tCALLS\tQUESTION")
	for _, r := range runs {
		created := time.Unix(r.CreatedAt, 0).Local().Format("2006-01-02 15:04")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, created, r.Termination, r.LLMCallsUsed, oneLine(r.Question, 60))
	}
	tw.Flush()
}

func printRecord(w io.Writer, r deepresearch.RunRecord) {
	fmt.Fprintf(w, "Run:         %s\n", r.ID)
	fmt.Fprintf(w, "Created:     %s\n", time.Unix(r.CreatedAt, 0).Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Question:    %s\n", r.Question)
	fmt.Fprintf(w, "Termination: %s\n", r.Termination)
	fmt.Fprintf(w, "LLM calls:   %d (rounds %d)\n", r.LLMCallsUsed, r.Rounds)
	fmt.Fprintf(w, "Tokens:      %d in, %d out\n", r.InputTokens, r.OutputTokens)
	fmt.Fprintf(w, "Duration:    %s\n", (time.Duration(r.DurationMs) * time.Millisecond).Round(time.Second))
	if r.Content != "" {
		fmt.Fprintf(w, "\n%s\n", r.Content)
	}
	printEvidence(w, r.EvidenceChains)
}

// oneLine collapses whitespace and cuts s to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
