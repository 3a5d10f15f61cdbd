package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	replica "replicamgr"
	"replicamgr/internal/app"
	"replicamgr/internal/observability"
)

// newReplCommand builds a fresh cobra command tree wired to host and mock,
// re-created per input line rather than reused, since cobra commands
// aren't meant to have SetArgs called on them more than once.
func newReplCommand(host *app.App, mock *mockTransport) *cobra.Command {
	root := &cobra.Command{Use: "repl", SilenceUsage: true, SilenceErrors: true}

	root.AddCommand(
		referenceCommand(host),
		participantCommand(host),
		constructCommand(host),
		destructCommand(host),
		scopeCommand(host),
		serializeCommand(host),
		tickCommand(host),
		participantsCommand(host),
	)
	return root
}

func parseHandle(arg string) (replica.Handle, error) {
	v, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q: %w", arg, err)
	}
	return replica.Handle(v), nil
}

func referenceCommand(host *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "reference <handle> <netID>",
		Short: "register a demo replica under handle with the given network ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := parseHandle(args[0])
			if err != nil {
				return err
			}
			netID, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid network ID %q: %w", args[1], err)
			}
			host.Manager.Reference(handle, &demoReplica{netID: replica.NetworkID(netID)})
			fmt.Printf("referenced handle=%d netID=%d\n", handle, netID)
			return nil
		},
	}
}

func participantCommand(host *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participant [id]",
		Short: "add a participant, generating a UUIDv7 ID if none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				host.Manager.AddParticipant(replica.ParticipantID(args[0]))
				fmt.Println("added participant", args[0])
				return nil
			}
			id := host.Manager.Participants().AddGenerated()
			fmt.Println("added generated participant", id)
			return nil
		},
	}
	return cmd
}

func constructCommand(host *app.App) *cobra.Command {
	var broadcast, implicit bool
	cmd := &cobra.Command{
		Use:   "construct <handle> <participant>",
		Short: "queue a construct command for handle targeting participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := parseHandle(args[0])
			if err != nil {
				return err
			}
			if implicit {
				host.Manager.ConstructImplicit(handle, replica.ParticipantID(args[1]), broadcast)
				return nil
			}
			host.Manager.Construct(handle, replica.ParticipantID(args[1]), broadcast)
			return nil
		},
	}
	cmd.Flags().BoolVar(&implicit, "implicit", false, "assume the remote already has the object instead of invoking send-construction")
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "target every participant instead of just the one named")
	return cmd
}

func destructCommand(host *app.App) *cobra.Command {
	var broadcast bool
	cmd := &cobra.Command{
		Use:   "destruct <handle> <participant>",
		Short: "queue a destruct command for handle targeting participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := parseHandle(args[0])
			if err != nil {
				return err
			}
			host.Manager.Destruct(handle, replica.ParticipantID(args[1]), broadcast)
			return nil
		},
	}
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "target every participant instead of just the one named")
	return cmd
}

func scopeCommand(host *app.App) *cobra.Command {
	var broadcast bool
	cmd := &cobra.Command{
		Use:   "scope <handle> <participant> <in|out>",
		Short: "queue a scope-change command for handle targeting participant",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := parseHandle(args[0])
			if err != nil {
				return err
			}
			var inScope bool
			switch args[2] {
			case "in":
				inScope = true
			case "out":
				inScope = false
			default:
				return fmt.Errorf("expected \"in\" or \"out\", got %q", args[2])
			}
			host.Manager.SetScope(handle, inScope, replica.ParticipantID(args[1]), broadcast)
			return nil
		},
	}
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "target every participant instead of just the one named")
	return cmd
}

func serializeCommand(host *app.App) *cobra.Command {
	var broadcast bool
	cmd := &cobra.Command{
		Use:   "serialize <handle> <participant>",
		Short: "queue a serialize command for handle targeting participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := parseHandle(args[0])
			if err != nil {
				return err
			}
			host.Manager.SignalSerialize(handle, replica.ParticipantID(args[1]), broadcast)
			return nil
		},
	}
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "target every participant instead of just the one named")
	return cmd
}

// dispatchedTotal sums the per-tag dispatch counters so tickCommand can
// report how many records one Tick call actually dispatched, the way
// Manager.emit itself never gets to (it is called once per record, with
// no view of the tick as a whole).
func dispatchedTotal(host *app.App) uint64 {
	c := host.Counters
	return c.Get("replica_construct_dispatched_total") +
		c.Get("replica_destruct_dispatched_total") +
		c.Get("replica_scope_dispatched_total") +
		c.Get("replica_serialize_dispatched_total")
}

func tickCommand(host *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "run one update tick, dispatching every queued command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			before := dispatchedTotal(host)
			_, span := observability.StartTick(context.Background(), host.Tracer,
				len(host.Manager.Participants().IDs()), 0)
			host.Manager.Tick()
			dispatched := dispatchedTotal(host) - before
			span.SetAttributes(attribute.Int("replica.dispatched", int(dispatched)))
			span.End()
			fmt.Println("tick complete")
			return nil
		},
	}
}

func participantsCommand(host *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "participants",
		Short: "list every participant currently in the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range host.Manager.Participants().IDs() {
				fmt.Println(id)
			}
			return nil
		},
	}
}
