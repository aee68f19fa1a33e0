package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ContractFinder/internal/app"
	"ContractFinder/internal/config"
	"ContractFinder/internal/domain"
	"ContractFinder/internal/logging"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

type options struct {
	configPath string
	format     string
}

// NewRootCmd creates the root command with serve, ingest, leads and status subcommands.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "contractfinder",
		Short: "Find dump truck leads in state DOT contract awards",
		Long: `Scrapes awarded highway contracts from state transportation agencies,
scores them for dump truck relevance and keeps them as sales leads.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config (or env: CONTRACT_FINDER_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text or json")

	cmd.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newLeadsCmd(opts),
		newStatusCmd(opts),
	)

	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}

func (o *options) loadConfig() config.Config {
	if o.configPath != "" {
		return config.LoadPath(o.configPath)
	}
	return config.Load()
}

func (o *options) outputFormat() (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(o.format))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", o.format)
	}
	return format, nil
}

func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, application *app.Application) error) error {
	cfg := o.loadConfig()
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer application.Close()

	return fn(ctx, application)
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the leads HTTP API (and the ingestion scheduler when enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				return application.Serve(ctx)
			})
		},
	}
}

func newIngestCmd(opts *options) *cobra.Command {
	var lettingDates []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scrape every configured source once and upsert the scored awards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.outputFormat()
			if err != nil {
				return err
			}

			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				result, err := application.Ingest(ctx, lettingDates)
				if err != nil {
					return fmt.Errorf("ingestion failed: %w", err)
				}
				return WriteIngest(cmd.OutOrStdout(), result, format)
			})
		},
	}

	cmd.Flags().StringSliceVar(&lettingDates, "letting-date", nil, "Letting date MM/DD/YYYY, repeatable; overrides the configured schedule")
	return cmd
}

func newLeadsCmd(opts *options) *cobra.Command {
	var (
		state    string
		status   string
		minScore int
	)

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List stored leads, highest score first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.outputFormat()
			if err != nil {
				return err
			}

			filter := domain.LeadFilter{State: strings.ToUpper(strings.TrimSpace(state))}
			if status != "" {
				parsed, err := domain.ParseContractStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}
			if cmd.Flags().Changed("min-score") {
				filter.MinScore = &minScore
			}

			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				leads, err := application.Leads().List(ctx, filter)
				if err != nil {
					return err
				}
				return WriteLeads(cmd.OutOrStdout(), leads, format)
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Two-letter state code (e.g., KY)")
	cmd.Flags().StringVar(&status, "status", "", "Lead status: new, contacted, ignored or converted")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Minimum relevance score")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set the sales status of a lead",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.outputFormat()
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lead id %q", args[0])
			}

			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				lead, err := application.Leads().UpdateStatus(ctx, id, args[1])
				if err != nil {
					return err
				}
				return WriteLeads(cmd.OutOrStdout(), []domain.ContractAward{lead}, format)
			})
		},
	}
}
