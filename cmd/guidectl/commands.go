package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/app"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/pdf"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
)

func renderCmd(g *globals) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render <file.md>",
		Short: "Render a markdown guide to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(args[0], ".md") + ".pdf"
			}
			data, err := pdf.NewRenderer(pdf.DefaultOptions(), g.logger(cmd)).Render(string(src))
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output PDF path (default: input with .pdf)")
	return cmd
}

func cacheCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the content cache",
	}

	var destination string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop cached day content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				scope := services.ScopeAll
				if destination != "" {
					scope = services.ScopeDestination
				}
				n, err := a.Content.ClearCache(ctx, scope, strings.ToLower(destination))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries (%s)\n", n, scope)
				return nil
			})
		},
	}
	clearCmd.Flags().StringVar(&destination, "destination", "", "only entries for this destination slug")
	cmd.AddCommand(clearCmd)
	return cmd
}

func resumeCmd(g *globals) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Run one scan for purchases stuck mid-fulfillment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				a.StartWorkers(ctx)
				n, err := a.Fulfillment.Resume(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "resumed %d purchases\n", n)
				if n == 0 || wait <= 0 {
					return nil
				}
				wctx, cancel := context.WithTimeout(ctx, wait)
				defer cancel()
				if err := a.Queue.WaitIdle(wctx); err != nil {
					return fmt.Errorf("jobs still running after %s: %w", wait, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Minute, "wait for resumed jobs to finish (0 returns immediately)")
	return cmd
}

func purchasesCmd(g *globals) *cobra.Command {
	var (
		status   string
		limit    int
		jsonMode bool
	)
	cmd := &cobra.Command{
		Use:   "purchases",
		Short: "List purchases, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.PurchaseStatus(strings.ToLower(status))
			if st != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			if limit < 1 {
				return errors.New("--limit must be >= 1")
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				items, total, err := a.Purchases.ListPage(ctx, st, 1, limit)
				if err != nil {
					return err
				}
				if jsonMode {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(items)
				}
				return printPurchases(cmd, items, total)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending|processing|generating|completed|failed")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print JSON")
	return cmd
}

func printPurchases(cmd *cobra.Command, items []domain.Purchase, total int64) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRODUCT\tEMAIL\tUPDATED")
	for _, p := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Status, p.ProductType, p.CustomerEmail, p.UpdatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(items), total)
	return nil
}

// withApp builds the app for one command and closes it afterwards.
func withApp(cmd *cobra.Command, g *globals, fn func(context.Context, *app.App) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, g.logger(cmd))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
