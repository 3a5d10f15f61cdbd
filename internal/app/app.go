package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"

	replica "replicamgr"
	"replicamgr/internal/observability"
	"replicamgr/internal/telemetry"
	"replicamgr/internal/wsnet"
	"replicamgr/logging"
	"replicamgr/logging/sinks"
)

// Options carries host-level wiring decisions that don't belong in the
// persisted Config: where to write JSON/audit output, whether tracing
// is wanted for this process. Grounded on the teacher's internal/app.Options
// split between persisted config and per-invocation flags.
type Options struct {
	JSONLogPath    string
	JSONLogZstd    bool
	AuditDBPath    string
	ServiceName    string
	EnableTracing  bool
	WebsocketCodec wsnet.Codec
}

// App bundles the running pieces of the demo host: the structured-logging
// router, the counters satisfying replica.Metrics, the replica Manager
// itself, and the WebSocket transport bound to it. Grounded on the
// teacher's internal/app.App wiring of Hub/Router/telemetry together.
type App struct {
	Config   Config
	Router   *logging.Router
	Counters *telemetry.Counters
	Manager  *replica.Manager
	Listener *wsnet.Listener
	Tracer   trace.Tracer
	shutdown []func(context.Context) error
}

// New builds and wires a complete App from cfg and opts. The caller is
// responsible for calling Close when finished, which closes the router's
// sinks in registration order and then runs the remaining closers (JSON
// log file, tracer shutdown) in reverse registration order.
func New(ctx context.Context, cfg Config, opts Options) (*App, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "replicamgr"
	}

	namedSinks, closers, err := buildSinks(cfg.Logging, opts)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	router := logging.NewRouter(logging.ClockFunc(time.Now), cfg.Logging, namedSinks)

	tracer, tracerShutdown, err := observability.Setup(ctx, observability.Config{EnableTracing: opts.EnableTracing}, opts.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	closers = append(closers, tracerShutdown)

	counters := telemetry.NewCounters()
	hostLogger := telemetry.WrapLogger(log.Default())

	manager := replica.NewManager(cfg.Manager, nil,
		replica.WithLogger(hostLogger),
		replica.WithMetrics(counters),
		replica.WithPublisher(router),
	)

	listener := wsnet.NewListener(manager, hostLogger, opts.WebsocketCodec, tracer)
	manager.SetTransport(listener)

	app := &App{
		Config:   cfg,
		Router:   router,
		Counters: counters,
		Manager:  manager,
		Listener: listener,
		Tracer:   tracer,
		shutdown: closers,
	}
	return app, nil
}

// buildSinks constructs the NamedSink set requested by cfg.Logging plus
// any host-specific sinks named in opts (JSON file, SQLite audit trail),
// returning their Close funcs in registration order for App.Close to
// run in reverse.
func buildSinks(cfg logging.Config, opts Options) ([]logging.NamedSink, []func(context.Context) error, error) {
	var named []logging.NamedSink
	var closers []func(context.Context) error

	if cfg.HasSink("console") {
		named = append(named, logging.NamedSink{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout)})
	}
	if cfg.HasSink("memory") {
		named = append(named, logging.NamedSink{Name: "memory", Sink: sinks.NewMemorySink()})
	}
	if opts.JSONLogPath != "" {
		f, err := os.OpenFile(opts.JSONLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open json log: %w", err)
		}
		jsonSink, err := sinks.NewJSON(f, 0, opts.JSONLogZstd)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("create json sink: %w", err)
		}
		named = append(named, logging.NamedSink{Name: "json", Sink: jsonSink})
		closers = append(closers, func(context.Context) error { return f.Close() })
	}
	if opts.AuditDBPath != "" {
		audit, err := OpenAuditSink(opts.AuditDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit sink: %w", err)
		}
		named = append(named, logging.NamedSink{Name: "audit", Sink: audit})
	}

	return named, closers, nil
}

// Close shuts the router down (which closes every registered sink) and
// then runs any additional host-level closers in reverse order.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if err := a.Router.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
