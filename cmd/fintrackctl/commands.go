package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd.Context(), func(*backend.BackendResult) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", a.cfg.DBDriver)
				return nil
			})
		},
	}
}

func newSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default income and expense categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBackend(cmd.Context(), func(b *backend.BackendResult) error {
				seeded, err := b.Ledger.Seed(cmd.Context(), services.DefaultTaxonomy)
				if err != nil {
					return err
				}
				if !seeded {
					fmt.Fprintln(cmd.OutOrStdout(), "Categories already present, nothing to do")
					return nil
				}
				subs := 0
				for _, t := range services.DefaultTaxonomy {
					subs += len(t.Subcategories)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d categories and %d subcategories\n", len(services.DefaultTaxonomy), subs)
				return nil
			})
		},
	}
}

func newEntitiesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the entity names accepted by list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := storage.EntityNames()
			if a.jsonOutput {
				return printJSON(cmd.OutOrStdout(), names)
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	var (
		filters  []string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "Page through the records of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilters(filters)
			if err != nil {
				return err
			}
			if pageSize == 0 {
				pageSize = a.cfg.DefaultPageSize
			}

			return a.withBackend(cmd.Context(), func(b *backend.BackendResult) error {
				res, err := b.Ledger.List(cmd.Context(), args[0], f, core.Page{Number: page, Size: pageSize})
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), pageJSON(res))
				}
				if err := printRecords(cmd.OutOrStdout(), res.Records); err != nil {
					return err
				}
				printFooter(cmd.OutOrStdout(), res.TotalRecords, res.TotalPages, res.Page)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "equality filter as key=value (repeatable)")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "records per page (default DEFAULT_PAGE_SIZE)")
	return cmd
}

func newReportCommand(a *app) *cobra.Command {
	var (
		user     int64
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:       "report <period>",
		Short:     "Show the transactions of a period with totals",
		Long:      "Show the transactions of a period with totals.\nPeriods: " + strings.Join(core.PeriodTokens(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: core.PeriodTokens(),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f core.Filters
			if user != 0 {
				f = core.Filters{"user_telegram_id": user}
			}
			if pageSize == 0 {
				pageSize = a.cfg.ReportPageSize
			}

			return a.withBackend(cmd.Context(), func(b *backend.BackendResult) error {
				res, err := b.Ledger.Report(cmd.Context(), args[0], f, core.Page{Number: page, Size: pageSize})
				if err != nil {
					return err
				}
				summary, _, err := b.Ledger.Summary(cmd.Context(), args[0], f)
				if err != nil {
					return err
				}

				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), reportJSON(res, summary))
				}
				if err := printTransactions(cmd.OutOrStdout(), res.Records); err != nil {
					return err
				}
				printFooter(cmd.OutOrStdout(), res.TotalRecords, res.TotalPages, res.Page)
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&user, "user", 0, "only transactions of this telegram id")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page (default REPORT_PAGE_SIZE)")
	return cmd
}

func newEventsCommand(a *app) *cobra.Command {
	events := &cobra.Command{
		Use:   "events",
		Short: "Inspect the transaction event stream",
	}

	events.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print transaction.created events as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not configured")
			}

			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
			if err != nil {
				return fmt.Errorf("connect to broker: %w", err)
			}
			defer client.Close()

			ctx, cancel := cli.GracefulShutdown(a.logger)
			defer cancel()

			a.logger.Info("Tailing transaction events",
				log.FieldOperation, log.OpConsume,
				"queue", a.cfg.AMQPQueue)

			out := cmd.OutOrStdout()
			err = client.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionCreatedMessage) error {
				if a.jsonOutput {
					return printJSON(out, msg)
				}
				printEvent(out, msg)
				return nil
			})
			if err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		},
	})
	return events
}

// parseFilters turns key=value pairs into equality filters.
func parseFilters(pairs []string) (core.Filters, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	f := core.Filters{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q: want key=value", p)
		}
		f[k] = strings.TrimSpace(v)
	}
	return f, nil
}
