package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var (
		routingKey string
		msg        string
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an event with a routing key",
		Long: `Publish an event through the HTTP API. The message is sent as JSON when it
parses as JSON and as a plain string otherwise; --raw always sends a string.`,
		Example: `  eventsd-cli publish --key orders.created --msg '{"id":42}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, routingKey, msg, raw)
		},
	}

	cmd.Flags().StringVar(&routingKey, "key", "", "Routing key to publish with (required)")
	cmd.Flags().StringVar(&msg, "msg", "", "Message body")
	cmd.Flags().BoolVar(&raw, "raw", false, "Send --msg as a string even if it is valid JSON")
	if err := cmd.MarkFlagRequired("key"); err != nil {
		panic(fmt.Sprintf("Failed to mark key as required: %v", err))
	}

	return cmd
}

// parseMsg turns the --msg flag into the published body.
func parseMsg(msg string, raw bool) any {
	if msg == "" {
		return nil
	}
	if raw {
		return msg
	}
	var v any
	if err := json.Unmarshal([]byte(msg), &v); err != nil {
		return msg
	}
	return v
}

func runPublish(cmd *cobra.Command, routingKey, msg string, raw bool) error {
	ctx, cancel := withTimeout(cmd)
	defer cancel()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	response, err := client.PublishEvent(ctx, routingKey, parseMsg(msg, raw))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ Event published\n")
	fmt.Fprintf(out, "ID: %s\n", response.ID)
	fmt.Fprintf(out, "Routing key: %s\n", response.RoutingKey)
	fmt.Fprintf(out, "Delivered to: %d subscriber(s)\n", response.Deliveries)

	return nil
}
