package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/rmacdonaldsmith/eventsd-go/internal/httpapi"
	"github.com/rmacdonaldsmith/eventsd-go/internal/hub"
	"github.com/rmacdonaldsmith/eventsd-go/internal/logging"
)

const (
	// Application info
	appName    = "eventsd"
	appVersion = "0.1.0"

	shutdownTimeout = 30 * time.Second
)

// options are the command-line settings of the server.
type options struct {
	listen      string
	grpcListen  string
	secret      string
	tokenTTL    time.Duration
	noAuth      bool
	publishRate float64
	retain      int
	queueSize   int
	logLevel    string
	logJSON     bool
	showVersion bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.listen, "listen", ":8151", "Listen address for the websocket endpoint and HTTP API")
	fs.StringVar(&o.grpcListen, "grpc-listen", ":8152", "Listen address for the gRPC bus (empty to disable)")
	fs.StringVar(&o.secret, "secret", os.Getenv("EVENTSD_SECRET"), "JWT signing secret (default $EVENTSD_SECRET)")
	fs.DurationVar(&o.tokenTTL, "token-ttl", httpapi.DefaultTokenTTL, "How long login tokens stay valid")
	fs.BoolVar(&o.noAuth, "no-auth", false, "Accept unauthenticated subscribers and publishers (development only)")
	fs.Float64Var(&o.publishRate, "publish-rate", 0, "Maximum HTTP publishes per second (0 = unlimited)")
	fs.IntVar(&o.retain, "retain", 1000, "Number of published events kept for the admin events endpoint")
	fs.IntVar(&o.queueSize, "queue-size", 256, "Per-session outbound queue length")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&o.logJSON, "log-json", false, "Log JSON lines instead of text")
	fs.BoolVar(&o.showVersion, "version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.retain < 0 || o.queueSize < 0 || o.publishRate < 0 {
		return o, errors.New("--retain, --queue-size and --publish-rate must not be negative")
	}
	if o.tokenTTL <= 0 {
		return o, errors.New("--token-ttl must be positive")
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		return
	}

	logger, err := logging.New(os.Stderr, logging.Options{Level: opts.logLevel, JSON: opts.logJSON, Prefix: appName})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, opts options, logger *slog.Logger) error {
	srv, err := newServer(opts, logger)
	if err != nil {
		return err
	}
	if err := srv.listen(); err != nil {
		srv.hub.Close()
		return err
	}

	errc := srv.serve()
	logger.Info("started", "version", appVersion, "http", srv.httpAddr(), "grpc", srv.grpcAddr(), "no_auth", opts.noAuth)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		logger.Error("listener failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.shutdown(shutdownCtx); shutdownErr != nil {
		return errors.Join(err, shutdownErr)
	}
	return err
}

// server owns the hub and both listeners.
type server struct {
	opts   options
	logger *slog.Logger

	hub  *hub.Hub
	api  *httpapi.Server
	grpc *grpc.Server

	httpLn net.Listener
	grpcLn net.Listener
}

func newServer(opts options, logger *slog.Logger) (*server, error) {
	if opts.secret == "" {
		if !opts.noAuth {
			logger.Warn("no --secret given, signing tokens with the development key")
		}
		opts.secret = httpapi.DefaultSecretKey
	}

	jwtAuth := httpapi.NewJWTAuth(opts.secret, opts.tokenTTL)
	hubCfg := hub.Config{
		SendQueueSize: opts.queueSize,
		RetainEvents:  opts.retain,
		Logger:        logger.WithGroup("hub"),
	}
	if !opts.noAuth {
		hubCfg.Authenticator = jwtAuth
	}
	h := hub.New(hubCfg)

	s := &server{
		opts:   opts,
		logger: logger,
		hub:    h,
		api: httpapi.NewServer(h, httpapi.Config{
			Addr:        opts.listen,
			Auth:        jwtAuth,
			NoAuth:      opts.noAuth,
			PublishRate: opts.publishRate,
			Logger:      logger.WithGroup("http"),
		}),
	}
	if opts.grpcListen != "" {
		s.grpc = grpc.NewServer(grpc.MaxRecvMsgSize(hub.DefaultMaxFrameBytes))
		h.Register(s.grpc)
	}
	return s, nil
}

func (s *server) listen() error {
	var err error
	if s.httpLn, err = net.Listen("tcp", s.opts.listen); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.listen, err)
	}
	if s.grpc != nil {
		if s.grpcLn, err = net.Listen("tcp", s.opts.grpcListen); err != nil {
			s.httpLn.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.opts.grpcListen, err)
		}
	}
	return nil
}

// serve starts both servers. The channel receives the first serve error.
func (s *server) serve() <-chan error {
	errc := make(chan error, 2)
	go func() {
		if err := s.api.Serve(s.httpLn); err != nil {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	if s.grpc != nil {
		go func() {
			if err := s.grpc.Serve(s.grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errc <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}
	return errc
}

func (s *server) httpAddr() string {
	if s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

func (s *server) grpcAddr() string {
	if s.grpcLn == nil {
		return ""
	}
	return s.grpcLn.Addr().String()
}

// shutdown stops accepting requests, then disconnects every session.
func (s *server) shutdown(ctx context.Context) error {
	var errs []error
	if err := s.api.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.hub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("hub close: %w", err))
	}
	if s.grpc != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpc.Stop()
		}
	}
	return errors.Join(errs...)
}
