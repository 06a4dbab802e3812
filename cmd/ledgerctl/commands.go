package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/models"
	"github.com/mmdatafocus/supplies_backend/workflow"
	"github.com/spf13/cobra"
)

// connectDatabase is swapped out by tests.
var connectDatabase = func() error {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		return errors.New("database not initialized")
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Maintenance jobs for the supplies ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newReconcileCmd(), newOutboxCmd(), newNextNumberCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connectDatabase(); err != nil {
				return err
			}
			if err := models.MigrateSchema(config.GetDB()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newReconcileCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stock projections with the movement log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connectDatabase(); err != nil {
				return err
			}
			report, err := workflow.ProcessReconciliationWorkflow(cmd.Context(), config.GetLogger(), fix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "checked %d warehouse rows, %d customer rows\n", report.WarehouseRows, report.CustomerRows)
			for _, d := range report.Drifts {
				key := d.WarehouseName
				if d.Ledger == models.MovementLedgerCustomer {
					key = d.CustomerId
				}
				fmt.Fprintf(out, "  %s %s@%s stored=%s logged=%s\n", d.Ledger, d.ProductId, key, d.Stored, d.FromMovements)
			}
			if !report.Clean() && !fix {
				return fmt.Errorf("%d projections drifted; rerun with --fix to rebuild", len(report.Drifts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Rebuild drifted projections from the movement log")
	return cmd
}

func newOutboxCmd() *cobra.Command {
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "Ledger event outbox jobs",
	}

	var once bool
	dispatch := &cobra.Command{
		Use:   "dispatch",
		Short: "Publish pending ledger events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connectDatabase(); err != nil {
				return err
			}
			d := workflow.NewOutboxDispatcher(config.GetDB(), config.GetLogger())
			if once {
				res, err := d.DispatchOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "claimed=%d sent=%d failed=%d dead=%d\n", res.Claimed, res.Sent, res.Failed, res.Dead)
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			d.Run(ctx)
			return nil
		},
	}
	dispatch.Flags().BoolVar(&once, "once", false, "Dispatch a single batch and exit")

	initTopic := &cobra.Command{
		Use:   "init-topic",
		Short: "Create the ledger event topic when it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := config.GetPubSubClient(cmd.Context())
			if err != nil {
				return err
			}
			topic, err := config.CreateTopicIfNotExists(cmd.Context(), client, config.LedgerTopicName())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "topic %s ready\n", topic.ID())
			return nil
		},
	}

	outbox.AddCommand(dispatch, initTopic)
	return outbox
}

func newNextNumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next-number <kind>",
		Short: "Reserve the next document number of a kind (purchase_order, inward, grn_inward, grn_direct, invoice, order, quotation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := models.DocumentNumberKind(args[0])
			if !kind.IsValid() {
				return fmt.Errorf("unknown document kind %q", args[0])
			}
			if err := connectDatabase(); err != nil {
				return err
			}
			number, err := models.ReserveDocumentNumber(cmd.Context(), kind, "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), number)
			return nil
		},
	}
}
