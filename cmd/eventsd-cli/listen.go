package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/eventsd-go/internal/logging"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/eventsclient"
)

func newListenCommand() *cobra.Command {
	var (
		keys   []string
		count  int
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to routing keys and print events",
		Long: `Subscribe to one or more routing key patterns and print every event as a
JSON line. A key may carry a shared-group id as pattern@id; subscribers with
the same pattern and id split the events between them.
The client reconnects and resubscribes on its own. Press Ctrl+C to stop.`,
		Example: `  eventsd-cli listen --key 'orders.#' --key 'jobs.*@workers'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd, keys, count, pretty)
		},
	}

	cmd.Flags().StringArrayVar(&keys, "key", nil, "Routing key pattern, optionally pattern@id (repeatable)")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many events (0 = run until interrupted)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty print events")

	return cmd
}

// newSubscriber builds a subscription client from the global flags, the
// --config file and extra keys.
func newSubscriber(cmd *cobra.Command, keys []string) (*eventsclient.Client, error) {
	cfg, err := subscriberConfig(cmd)
	if err != nil {
		return nil, err
	}
	for _, arg := range keys {
		in, err := parseKeyArg(arg)
		if err != nil {
			return nil, err
		}
		cfg.Keys = append(cfg.Keys, in)
	}

	if cfg.Logger, err = logging.New(cmd.ErrOrStderr(), logging.Options{Level: logLevel, Prefix: "eventsd-cli"}); err != nil {
		return nil, err
	}
	return eventsclient.NewClient(cfg)
}

// watchConnection reports connection changes on w.
func watchConnection(sub *eventsclient.Client, w io.Writer) {
	sub.OnConnected(func() {
		fmt.Fprintf(w, "connected to %s\n", sub.URL())
	})
	sub.OnReconnecting(func(attempt int) {
		fmt.Fprintf(w, "reconnecting (attempt %d)...\n", attempt)
	})
	sub.OnDisconnect(func(err error) {
		if err != nil {
			fmt.Fprintf(w, "disconnected: %v\n", err)
			return
		}
		fmt.Fprintln(w, "disconnected")
	})
}

func runListen(cmd *cobra.Command, keys []string, count int, pretty bool) error {
	sub, err := newSubscriber(cmd, keys)
	if err != nil {
		return err
	}
	if len(sub.Keys()) == 0 {
		return fmt.Errorf("at least one --key (or keys in --config) is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan eventsclient.Event, 64)
	sub.OnEvent(func(e eventsclient.Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	})
	watchConnection(sub, cmd.ErrOrStderr())

	out := cmd.OutOrStdout()
	fmt.Fprintf(cmd.ErrOrStderr(), "listening on %s for %v\n", sub.URL(), sub.Keys())
	sub.Start()
	defer stopSubscriber(sub)

	received := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if err := printEvent(out, e, pretty); err != nil {
				return err
			}
			received++
			if count > 0 && received >= count {
				return nil
			}
		}
	}
}

// stopSubscriber unbinds and closes, waiting at most the request timeout.
func stopSubscriber(sub *eventsclient.Client) {
	done := make(chan struct{})
	sub.Stop(func() { close(done) })
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// eventLine is how events are printed.
type eventLine struct {
	RoutingKey string  `json:"routingKey"`
	ID         string  `json:"id"`
	Time       int64   `json:"time"`
	Microtime  float64 `json:"microtime"`
	Msg        any     `json:"msg"`
}

func printEvent(w io.Writer, e eventsclient.Event, pretty bool) error {
	line := eventLine{
		RoutingKey: e.RoutingKey,
		ID:         e.ID,
		Time:       e.Time,
		Microtime:  e.Microtime,
		Msg:        e.Msg,
	}
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(line, "", "  ")
	} else {
		b, err = json.Marshal(line)
	}
	if err != nil {
		return fmt.Errorf("failed to format event %s: %w", e.ID, err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// withTimeout returns a context bounded by the request timeout.
func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
