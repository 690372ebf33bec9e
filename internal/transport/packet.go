package transport

import (
	"fmt"

	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/simerr"
)

// PacketState is the state of a packet during propagation.
type PacketState int

const (
	StateAtBoundary PacketState = iota
	StateInShell
	StateInteracting
	StateEscaped
	StateAbsorbed
)

func (s PacketState) String() string {
	switch s {
	case StateAtBoundary:
		return "at_boundary"
	case StateInShell:
		return "in_shell"
	case StateInteracting:
		return "interacting"
	case StateEscaped:
		return "escaped"
	case StateAbsorbed:
		return "absorbed"
	default:
		return fmt.Sprintf("PacketState(%d)", int(s))
	}
}

// Done reports whether the state is terminal.
func (s PacketState) Done() bool { return s == StateEscaped || s == StateAbsorbed }

// Interaction is the event that ends one propagation step.
type Interaction int

const (
	InteractionNone Interaction = iota
	InteractionBoundary
	InteractionLine
	InteractionElectron
)

func (i Interaction) String() string {
	switch i {
	case InteractionBoundary:
		return "boundary"
	case InteractionLine:
		return "line"
	case InteractionElectron:
		return "electron"
	default:
		return "none"
	}
}

// LineInteraction selects how a line re-emits an absorbed packet.
type LineInteraction int

const (
	// LineScatter re-emits resonantly in the absorbing line.
	LineScatter LineInteraction = iota
	// LineDownbranch re-emits in one of the downward transitions of the
	// upper level, weighted by A_ul * nu * beta_Sobolev.
	LineDownbranch
)

// ParseLineInteraction maps the configuration name to a LineInteraction.
func ParseLineInteraction(name string) (LineInteraction, error) {
	switch name {
	case config.LineScatter:
		return LineScatter, nil
	case config.LineDownbranch:
		return LineDownbranch, nil
	default:
		return 0, simerr.New(simerr.KindConfiguration, "transport.ParseLineInteraction", "unknown line interaction %q", name)
	}
}

// rPacket is a real packet in flight. nextLine indexes the descending line
// list of the run.
type rPacket struct {
	index    int
	r        float64
	mu       float64
	nu       float64
	energy   float64
	shell    int
	nextLine int
	state    PacketState

	reabsorbed      bool
	lastInteraction Interaction
	lastLineIn      int
	lastLineOut     int
	steps           int
}
