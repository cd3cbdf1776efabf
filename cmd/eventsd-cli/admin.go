package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin commands (requires admin privileges)",
		Long:  "Administrative commands for inspecting the eventsd server. Log in as client 'admin'.",
	}

	cmd.AddCommand(newStatsCommand())
	cmd.AddCommand(newAdminBindingsCommand())
	cmd.AddCommand(newAdminEventsCommand())

	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show server statistics",
		Long:  "Display session, binding and delivery counters (admin only)",
		RunE:  runAdminStats,
	}
}

func newAdminBindingsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bindings",
		Short: "List every binding on the server",
		Long:  "List the routing key bindings of all connected sessions (admin only)",
		RunE:  runAdminBindings,
	}
}

func newAdminEventsCommand() *cobra.Command {
	var (
		pattern string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recently published events",
		Long:  "Show events the server retained, oldest first, optionally filtered by a routing key pattern (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminEvents(cmd, pattern, limit)
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Only events whose routing key matches this pattern")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events")

	return cmd
}

func runAdminStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	stats, err := client.AdminGetStats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📊 eventsd statistics:\n\n")
	fmt.Fprintf(out, "Sessions: %d (websocket %d, grpc %d)\n", stats.Sessions, stats.WebSocketSessions, stats.GRPCSessions)
	fmt.Fprintf(out, "Bindings: %d over %d pattern(s)\n", stats.Bindings, stats.Patterns)
	fmt.Fprintf(out, "Published: %d\n", stats.Published)
	fmt.Fprintf(out, "Delivered: %d\n", stats.Delivered)
	fmt.Fprintf(out, "Dropped: %d\n", stats.Dropped)
	fmt.Fprintf(out, "Retained events: %d\n", stats.RetainedEvents)

	return nil
}

func runAdminBindings(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	resp, err := client.AdminListBindings(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Bindings) == 0 {
		fmt.Fprintln(out, "No bindings")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tGROUP\tTRANSPORT\tSUBJECT\tSESSION")
	for _, b := range resp.Bindings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.Pattern, dash(b.Group), b.Transport, dash(b.Subject), b.SessionID)
	}
	return tw.Flush()
}

func runAdminEvents(cmd *cobra.Command, pattern string, limit int) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	resp, err := client.AdminRecentEvents(ctx, pattern, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Events) == 0 {
		fmt.Fprintln(out, "No events")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tTIME\tROUTING KEY\tID")
	for _, e := range resp.Events {
		ts := time.UnixMilli(e.Time).Format(time.DateTime)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Offset, ts, e.RoutingKey, e.ID)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
