package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/eventsclient"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/httpclient"
)

var (
	// Global flags
	serverURL  string
	host       string
	port       int
	useSSL     bool
	insecure   bool
	protocol   string
	codec      string
	clientID   string
	token      string
	configPath string
	timeout    time.Duration
	noAuth     bool
	logLevel   string

	// Global client instance
	client *httpclient.Client
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eventsd-cli",
		Short: "eventsd command line interface",
		Long: `eventsd-cli talks to an eventsd server. It subscribes to routing keys
over the websocket or gRPC bus (listen, interactive) and uses the HTTP API
for authentication, publishing and administration.`,
		PersistentPreRunE: initializeClient,
		SilenceUsage:      true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&host, "host", eventsclient.DefaultHost, "eventsd host")
	flags.IntVar(&port, "port", eventsclient.DefaultPort, "eventsd port (websocket and HTTP API, or gRPC with --protocol grpc)")
	flags.BoolVar(&useSSL, "ssl", false, "Use TLS (wss/https)")
	flags.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	flags.StringVar(&protocol, "protocol", eventsclient.ProtocolWebSocket, "Subscription protocol: websocket or grpc")
	flags.StringVar(&codec, "codec", "json", "Websocket frame codec: json or cbor")
	flags.StringVar(&serverURL, "server", "", "HTTP API base URL (default derived from --host, --port and --ssl)")
	flags.StringVar(&clientID, "client-id", "", "Client ID to log in with when no --token is given")
	flags.StringVar(&token, "token", os.Getenv("EVENTSD_TOKEN"), "JWT token (default $EVENTSD_TOKEN)")
	flags.StringVar(&configPath, "config", "", "YAML client configuration file")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	flags.BoolVar(&noAuth, "no-auth", false, "Skip authentication (for development with --no-auth servers)")
	flags.StringVar(&logLevel, "log-level", "warn", "Client log level: debug, info, warn, error")

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newPublishCommand())
	rootCmd.AddCommand(newListenCommand())
	rootCmd.AddCommand(newInteractiveCommand())
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newAdminCommand())

	return rootCmd
}

// apiURL returns the HTTP API base URL.
func apiURL() string {
	if serverURL != "" {
		return serverURL
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// initializeClient sets up the HTTP client with global configuration
func initializeClient(cmd *cobra.Command, args []string) error {
	// Skip client initialization for help commands
	if cmd.Name() == "help" || cmd.Parent() == nil {
		return nil
	}

	var err error
	client, err = httpclient.NewClient(httpclient.Config{
		ServerURL:          apiURL(),
		ClientID:           clientID,
		Timeout:            timeout,
		InsecureSkipVerify: insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	// Set token if provided, or set dummy token in no-auth mode
	if token != "" {
		client.SetToken(token)
	} else if noAuth {
		client.SetToken("no-auth-mode")
	}

	return nil
}

// requireAuthentication makes sure the HTTP client holds a token, logging in
// with --client-id when none was given.
func requireAuthentication(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("client not initialized")
	}
	if noAuth || client.IsAuthenticated() {
		return nil
	}
	if clientID == "" {
		return fmt.Errorf("not authenticated - run 'eventsd-cli auth' first or provide --token or --client-id")
	}
	if _, err := client.Authenticate(ctx); err != nil {
		return err
	}
	return nil
}

// subscriberConfig builds the subscription client configuration: the
// --config file if any, with explicitly set flags taking precedence.
func subscriberConfig(cmd *cobra.Command) (eventsclient.Config, error) {
	var cfg eventsclient.Config
	if configPath != "" {
		var err error
		if cfg, err = eventsclient.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	use := func(name string, unset bool) bool {
		return flags.Changed(name) || unset
	}
	if use("host", cfg.Host == "") {
		cfg.Host = host
	}
	if use("port", cfg.Port == 0) {
		cfg.Port = port
	}
	if use("ssl", !cfg.SSL.Enable) {
		cfg.SSL.Enable = useSSL
	}
	if use("insecure", !cfg.SSL.InsecureSkipVerify) {
		cfg.SSL.InsecureSkipVerify = insecure
	}
	if use("protocol", cfg.Protocol == "") {
		cfg.Protocol = protocol
	}
	if use("codec", cfg.Codec == "") {
		cfg.Codec = codec
	}

	switch {
	case token != "":
		cfg.Token = token
	case cfg.Token == "" && !noAuth && clientID != "":
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := requireAuthentication(ctx); err != nil {
			return cfg, err
		}
		cfg.Token = client.GetToken()
	}
	return cfg, nil
}

// parseKeyArg parses "pattern" or "pattern@id".
func parseKeyArg(arg string) (eventsclient.Interest, error) {
	pattern, id := arg, ""
	if i := strings.LastIndex(arg, "@"); i >= 0 {
		pattern, id = arg[:i], arg[i+1:]
	}
	if pattern == "" {
		return eventsclient.Interest{}, fmt.Errorf("invalid key %q: empty routing key", arg)
	}
	return eventsclient.Interest{RoutingKey: pattern, ID: id}, nil
}
