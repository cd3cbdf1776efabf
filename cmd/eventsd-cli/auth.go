package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the eventsd server",
		Long: `Authenticate with the eventsd server using your client ID.
This will generate a JWT token that can be used for subsequent requests,
both for the HTTP API and for subscribing.`,
		RunE: runAuth,
	}

	return cmd
}

func runAuth(cmd *cobra.Command, args []string) error {
	if clientID == "" {
		return fmt.Errorf("--client-id is required")
	}

	ctx, cancel := withTimeout(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Authenticating with server %s as client %s...\n", apiURL(), clientID)

	resp, err := client.Authenticate(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Authentication successful!\n")
	fmt.Fprintf(out, "Token: %s\n", resp.Token)
	fmt.Fprintf(out, "Expires: %s\n", resp.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(out, "\nSave the token for future use:\n")
	fmt.Fprintf(out, "  export EVENTSD_TOKEN=\"%s\"\n", resp.Token)
	fmt.Fprintf(out, "  eventsd-cli listen --key 'test.#'\n")

	return nil
}
