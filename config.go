package replica

// Config is the manager's tunable configuration surface (spec.md §6.4),
// plus the ambient retry/tick knobs this expansion adds (SPEC_FULL.md §7,
// §10.3). Like the teacher's LoopConfig, it is a plain struct populated with
// defaults and then overridden by the host (environment variables, a YAML
// file, or direct field assignment — see internal/app for the loader).
type Config struct {
	// AutoParticipateNewConnections, when true, enqueues an Add for every
	// transport new-connection event. Existing connections at the moment
	// this is enabled are not added retroactively (spec.md §4.2).
	AutoParticipateNewConnections bool `yaml:"auto_participate_new_connections" env:"AUTO_PARTICIPATE_NEW_CONNECTIONS"`

	// AutoConstructToNewParticipants, when true, enqueues an
	// ExplicitConstruct for every registered replica whenever a participant
	// is added (spec.md §6.4).
	AutoConstructToNewParticipants bool `yaml:"auto_construct_to_new_participants" env:"AUTO_CONSTRUCT_TO_NEW_PARTICIPANTS"`

	// DefaultScope is the in-scope value construct() uses when the caller
	// does not request an explicit scope (spec.md §4.4 table).
	DefaultScope bool `yaml:"default_scope" env:"DEFAULT_SCOPE"`

	// SendChannel is the transport channel byte used for reliable-ordered
	// sends (spec.md §6.4).
	SendChannel byte `yaml:"send_channel" env:"SEND_CHANNEL"`

	// UnresolvedRetryTicks bounds how many consecutive ticks an inbound
	// record may be retried while its network ID cannot be resolved before
	// it is dropped with a diagnostic (SPEC_FULL.md §7).
	UnresolvedRetryTicks int `yaml:"unresolved_retry_ticks" env:"UNRESOLVED_RETRY_TICKS"`

	// TickRate is the target number of update-engine ticks per second when
	// driven by Manager.Run (SPEC_FULL.md §10.5).
	TickRate int `yaml:"tick_rate" env:"TICK_RATE"`
}

// DefaultConfig returns the configuration defaults named in spec.md §6.4.
func DefaultConfig() Config {
	return Config{
		AutoParticipateNewConnections:  false,
		AutoConstructToNewParticipants: false,
		DefaultScope:                   false,
		SendChannel:                    0,
		UnresolvedRetryTicks:           30,
		TickRate:                       20,
	}
}
