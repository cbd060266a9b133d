package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/eventhive/internal/config"
	"github.com/Togather-Foundation/eventhive/internal/gateway"
	"github.com/Togather-Foundation/eventhive/internal/metrics"
	"github.com/Togather-Foundation/eventhive/internal/problem"
	"github.com/Togather-Foundation/eventhive/internal/session"
	"github.com/Togather-Foundation/eventhive/internal/telemetry"
)

// skipAppAnnotation marks commands that run without config, sessions or network.
const skipAppAnnotation = "eventhive/skip-app"

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	baseURL     string
	format      string
	metricsFile string
}

// app is the wiring shared by every page. It is built lazily in
// PersistentPreRunE so that help and version need no configuration.
type app struct {
	opts *globalOptions

	cfg      config.Config
	logger   zerolog.Logger
	store    *session.Store
	gw       *gateway.Client
	shutdown func(context.Context) error
}

// Execute runs the CLI with os.Args and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{opts: &globalOptions{}, logger: zerolog.Nop()}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(context.WithoutCancel(ctx)); closeErr != nil {
		a.logger.Warn().Err(closeErr).Msg("shutdown incomplete")
	}
	if err != nil {
		renderError(stderr, err)
	}
	return err
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "eventhive",
		Short: "Event Hive client - browse, publish and manage events",
		Long: `eventhive is the command-line client for the Event Hive platform.

Admins sign in to publish events (with optional AI-written descriptions) and
review the events they created. Users sign in to browse the catalog and filter
it by price, location and date. Admin and user sessions are kept separately,
so both can be signed in at once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, skip := cmd.Annotations[skipAppAnnotation]; skip {
				return nil
			}
			return a.init(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "config file path (optional, uses env vars by default)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: warn)")
	flags.StringVar(&a.opts.logFormat, "log-format", "", "log format (json, console) (default: console)")
	flags.StringVar(&a.opts.baseURL, "base-url", "", "API base URL (overrides EVENTHIVE_API_BASE_URL)")
	flags.StringVarP(&a.opts.format, "format", "o", formatTable, "output format (table, json, yaml)")
	flags.StringVar(&a.opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newLoginCommand(a),
		newSignupCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newEventsCommand(a),
		newDashboardCommand(a),
		newDescribeCommand(a),
		newCreateEventCommand(a),
		newVersionCommand(),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	switch a.opts.format {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q (must be table, json or yaml)", a.opts.format)
	}

	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.opts.logLevel != "" {
		cfg.Logging.Level = a.opts.logLevel
	}
	if a.opts.logFormat != "" {
		cfg.Logging.Format = a.opts.logFormat
	}
	if a.opts.baseURL != "" {
		u, err := url.Parse(a.opts.baseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("--base-url must be an absolute http(s) URL, got %q", a.opts.baseURL)
		}
		cfg.API.BaseURL = a.opts.baseURL
	}
	a.cfg = cfg
	a.logger = config.NewLogger(cfg.Logging)

	metrics.Init(Version, GitCommit, BuildDate)

	shutdown, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	a.shutdown = shutdown

	backend, err := session.OpenBackend(cfg.Session)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	a.store = session.NewStore(backend, a.logger)

	a.gw = gateway.NewClient(cfg.API.BaseURL, a.store,
		gateway.WithTimeout(cfg.API.Timeout),
		gateway.WithRateLimit(cfg.API.RateLimit),
		gateway.WithUserAgent(fmt.Sprintf("%s (%s)", gateway.DefaultUserAgent, Version)),
		gateway.WithLogger(a.logger),
	)

	a.logger.Debug().
		Str("base_url", cfg.API.BaseURL).
		Str("session_backend", cfg.Session.Backend).
		Str("environment", cfg.Environment).
		Msg("client ready")
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		for _, d := range session.Domains {
			_, ok := a.store.Get(ctx, d)
			active := 0.0
			if ok {
				active = 1
			}
			metrics.SessionsActive.WithLabelValues(d.String()).Set(active)
		}
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	if a.opts.metricsFile != "" && a.store != nil {
		if err := metrics.WriteTextfile(a.opts.metricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// pageError is a problem raised by a page that requires domain.
type pageError struct {
	domain  session.Domain
	problem *problem.Problem
}

func (e *pageError) Error() string { return e.problem.Error() }
func (e *pageError) Unwrap() error { return e.problem }

// fail normalizes err into the failure a page reports.
func fail(domain session.Domain, err error) error {
	return &pageError{domain: domain, problem: problem.Normalize(err)}
}

func renderError(w io.Writer, err error) {
	var pe *pageError
	if errors.As(err, &pe) {
		renderProblem(w, pe.domain, pe.problem)
		return
	}
	var p *problem.Problem
	if errors.As(err, &p) {
		renderProblem(w, session.None, p)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
