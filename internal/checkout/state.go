package checkout

type State string

const (
	StateIdle              State = "idle"
	StateDraftPending      State = "draft_pending"
	StateDraftCreated      State = "draft_created"
	StatePaymentCollecting State = "payment_collecting"
	StateCompleting        State = "completing"
	StateCompleted         State = "completed"
	StateCancelled         State = "cancelled"
)

// A failed draft request is not an edge here: the orchestrator restores
// the state the checkout started from.
var transitions = map[State][]State{
	StateIdle:              {StateDraftPending, StateCancelled},
	StateDraftPending:      {StateDraftCreated},
	StateDraftCreated:      {StatePaymentCollecting, StateCompleting, StateCancelled},
	StatePaymentCollecting: {StateCompleting, StateCancelled},
	StateCompleting:        {StateCompleted, StatePaymentCollecting},
	StateCompleted:         {StateIdle, StateDraftPending},
	StateCancelled:         {StateIdle, StateDraftPending},
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the sale this state belongs to is over.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// InFlight reports whether a backend call is outstanding.
func (s State) InFlight() bool {
	return s == StateDraftPending || s == StateCompleting
}

// Active reports whether a checkout holds the cart, from draft request
// until completion or cancellation.
func (s State) Active() bool {
	switch s {
	case StateDraftPending, StateDraftCreated, StatePaymentCollecting, StateCompleting:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}
