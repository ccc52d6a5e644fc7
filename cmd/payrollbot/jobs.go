package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/payroll-approval-bot/internal/http/handlers"
	"github.com/tbourn/payroll-approval-bot/internal/http/middleware"
	"github.com/tbourn/payroll-approval-bot/internal/services"
)

// withApp opens the base wiring for one-shot commands and closes it after fn.
func withApp(cmd *cobra.Command, opts *rootOptions, command string, wire bool, fn func(context.Context, *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts, command)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			a.log.Error().Err(err).Msg("close")
		}
	}()
	if wire {
		if err := a.wire(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one warning and archival pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "sweep", true, func(ctx context.Context, a *app) error {
				rep, err := a.scheduler.RunOnce(ctx)
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), rep)
			})
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var batch string
	cmd := &cobra.Command{
		Use:   "import <group.csv>",
		Short: "Import a published group CSV as a batch",
		Long: `Import a published group CSV: one per-recipient CSV is written next to it
under users/ and one pending record is created per valid row. The announcement
poller of a running server picks the records up.

Examples:
  payrollbot import hosting/open/Физика/ГК/Выплата_март.csv
  payrollbot import group.csv --batch Выплата_март.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, "import", false, func(ctx context.Context, a *app) error {
				res, err := services.NewImporter(a.store).ImportCSV(ctx, args[0], batch)
				if err != nil {
					return fmt.Errorf("import %s: %w", args[0], err)
				}
				a.log.Info().Str("batch_file", res.BatchFile).Int("created", res.Created).Int("rejected", len(res.Rejected)).Msg("batch imported")
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "batch file name (default: the CSV's base name)")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "migrate", false, func(_ context.Context, a *app) error {
				a.log.Info().Str("db", a.cfg.DBPath).Msg("schema up to date")
				return nil
			})
		},
	}
}

// The record cache lives in the serving process, so reconcile asks it over
// the admin API instead of opening the store.
func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Ask a running server to drop cached records of archived batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "reconcile", false, func(ctx context.Context, a *app) error {
				if a.cfg.AdminToken == "" {
					return fmt.Errorf("reconcile: ADMIN_TOKEN is not set")
				}
				base := addr
				if base == "" {
					base = "http://localhost:" + a.cfg.Port
				}
				res, err := postReconcile(ctx, strings.TrimRight(base, "/")+a.cfg.APIBasePath+"/reconcile", a.cfg.AdminToken)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server base URL (default http://localhost:$PORT)")
	return cmd
}

func postReconcile(ctx context.Context, url, token string) (handlers.ReconcileResponse, error) {
	var out handlers.ReconcileResponse
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return out, err
	}
	req.Header.Set(middleware.HeaderAdminToken, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("reconcile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e handlers.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return out, fmt.Errorf("reconcile: %s: %s %s", resp.Status, e.Code, e.Message)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("reconcile: decode: %w", err)
	}
	return out, nil
}
