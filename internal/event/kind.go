package event

// Kind identifies a category of event. The set of kinds is defined by the
// host; scripts cannot add new kinds but may publish Custom events.
type Kind string

// Event kinds.
const (
	// KindNewSession is published when the host creates a session.
	KindNewSession Kind = "new_session"

	// KindResumeSession is published for each live session after modules
	// have been reloaded, so setup hooks can rebuild per-session state.
	KindResumeSession Kind = "resume_session"

	// KindSessionClosed is published when a session ends.
	KindSessionClosed Kind = "session_closed"

	// KindConnectionStatus is published when a session's connection status changes.
	KindConnectionStatus Kind = "connection_status"

	// KindLineReceived is published for each line received from the MUD.
	KindLineReceived Kind = "line_received"

	// KindPromptChanged is published when the MUD prompt changes.
	KindPromptChanged Kind = "prompt_changed"

	// KindInputLineSent is published for each line submitted to a session.
	KindInputLineSent Kind = "input_line_sent"

	// KindKeyPressed is published for key presses in a session's input area.
	KindKeyPressed Kind = "key_pressed"

	// KindShortcutInvoked is published when a bound shortcut fires.
	KindShortcutInvoked Kind = "shortcut_invoked"

	// KindOptionNegotiated is published when a telnet option is enabled or disabled.
	KindOptionNegotiated Kind = "option_negotiated"

	// KindGMCPMessage is published for each GMCP message received.
	KindGMCPMessage Kind = "gmcp_message"

	// KindConfigReloaded is published after the configuration was reloaded.
	KindConfigReloaded Kind = "config_reloaded"

	// KindModulesReloaded is published after one or more modules were reloaded.
	KindModulesReloaded Kind = "modules_reloaded"

	// KindCustom carries script-defined events.
	KindCustom Kind = "custom"
)

var knownKinds = map[Kind]bool{
	KindNewSession:       true,
	KindResumeSession:    true,
	KindSessionClosed:    true,
	KindConnectionStatus: true,
	KindLineReceived:     true,
	KindPromptChanged:    true,
	KindInputLineSent:    true,
	KindKeyPressed:       true,
	KindShortcutInvoked:  true,
	KindOptionNegotiated: true,
	KindGMCPMessage:      true,
	KindConfigReloaded:   true,
	KindModulesReloaded:  true,
	KindCustom:           true,
}

// Valid reports whether k is a kind known to the host.
func (k Kind) Valid() bool {
	return knownKinds[k]
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindNewSession,
		KindResumeSession,
		KindSessionClosed,
		KindConnectionStatus,
		KindLineReceived,
		KindPromptChanged,
		KindInputLineSent,
		KindKeyPressed,
		KindShortcutInvoked,
		KindOptionNegotiated,
		KindGMCPMessage,
		KindConfigReloaded,
		KindModulesReloaded,
		KindCustom,
	}
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, bool) {
	k := Kind(name)
	return k, k.Valid()
}
