// Command replicasrv is a manual-exercise harness for the replica
// manager: it wires config, logging, metrics, and a transport the way
// a real host would, then exposes construct/destruct/scope/serialize/
// tick as a line-oriented command loop against the running manager.
package main

import (
	"bufio"
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"replicamgr/internal/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "replicasrv:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, auditDBPath, listenAddr string
	var enableTracing bool

	root := &cobra.Command{
		Use:           "replicasrv",
		Short:         "Manually exercise a replica manager over stdin commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&auditDBPath, "audit-db", "", "optional SQLite path for dispatched wire record audit")
	root.PersistentFlags().StringVar(&listenAddr, "listen", "", "optional host:port to also accept real WebSocket connections on")
	root.PersistentFlags().BoolVar(&enableTracing, "trace", false, "enable OpenTelemetry span emission")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), configPath, auditDBPath, listenAddr, enableTracing)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	root.SetContext(ctx)
	return root.Execute()
}

func serve(ctx context.Context, configPath, auditDBPath, listenAddr string, enableTracing bool) error {
	var loadOpts []app.LoadOption
	if configPath != "" {
		loadOpts = append(loadOpts, app.WithYAMLFile(configPath))
	}
	cfg, err := app.Load(loadOpts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	host, err := app.New(ctx, cfg, app.Options{
		AuditDBPath:   auditDBPath,
		EnableTracing: enableTracing,
		ServiceName:   "replicasrv",
	})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer host.Close(context.Background())

	// Without a real network listener, fall back to an in-process mock
	// transport so construct/destruct/scope/serialize still produce
	// observable wire traffic for manual exercising. With --listen, the
	// WebSocket listener installed by app.New stays the manager's transport.
	var mock *mockTransport
	if listenAddr == "" {
		mock = newMockTransport(host.Router, host.Tracer)
		host.Manager.SetTransport(mock)
	}

	if listenAddr != "" {
		srv := newWebSocketServer(listenAddr, host.Manager, host.Listener)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
				fmt.Fprintln(os.Stderr, "replicasrv: websocket listener:", err)
			}
		}()
		defer srv.Close()
	}

	fmt.Fprintln(os.Stdout, "replicasrv ready. commands: reference|participant|construct|destruct|scope|serialize|tick|participants|quit")
	return repl(ctx, host, mock)
}

// repl reads whitespace-separated command lines from stdin, dispatching
// each through the construct/destruct/scope/serialize/tick command set
// against the shared manager, mirroring the teacher's practice of
// re-parsing one cobra command tree per invocation in tests
// (roach88-nysm/brutalist/internal/cli's cmd.SetArgs/cmd.Execute pattern)
// rather than inventing a bespoke line parser.
func repl(ctx context.Context, host *app.App, mock *mockTransport) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}

		command := newReplCommand(host, mock)
		command.SetArgs(fields)
		if err := command.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, "replicasrv:", err)
		}
	}
}
