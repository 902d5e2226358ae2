package api

// State is a step of the per-call dispatch state machine.
//
//	Attempt --401 with token--> Refresh --refreshed--> Retry --> Done | Failed
//	   |                           |
//	   +--> Done | Failed          +--no token / refresh failed--> ClearAndFail
//	                               +--caller gave up--> Failed
//
// Refresh is entered at most once per logical call.
type State int

const (
	StateAttempt State = iota
	StateRefresh
	StateRetry
	StateClearAndFail
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAttempt:
		return "attempt"
	case StateRefresh:
		return "refresh"
	case StateRetry:
		return "retry"
	case StateClearAndFail:
		return "clear_and_fail"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition happens from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateClearAndFail
}

// Outcome is what happened while in a State.
type Outcome int

const (
	// OutcomeOK: the server answered 2xx.
	OutcomeOK Outcome = iota
	// OutcomeUnauthorized: 401 on an exchange that carried a bearer token.
	OutcomeUnauthorized
	// OutcomeRejected: any other non-2xx (including 401 without a token).
	OutcomeRejected
	// OutcomeTransportFailed: no response was received, or the caller's
	// context ended while waiting on a refresh.
	OutcomeTransportFailed
	// OutcomeRefreshed: a new pair is held and the call may retry.
	OutcomeRefreshed
	// OutcomeNoRefreshToken: the store holds no refresh token.
	OutcomeNoRefreshToken
	// OutcomeRefreshFailed: the refresh exchange failed (status or transport).
	OutcomeRefreshFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportFailed:
		return "transport_failed"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeNoRefreshToken:
		return "no_refresh_token"
	case OutcomeRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// Transition returns the state following s after outcome o. It is pure.
// Pairs that cannot occur map to StateFailed.
func Transition(s State, o Outcome) State {
	switch s {
	case StateAttempt:
		switch o {
		case OutcomeOK:
			return StateDone
		case OutcomeUnauthorized:
			return StateRefresh
		}
	case StateRefresh:
		switch o {
		case OutcomeRefreshed:
			return StateRetry
		case OutcomeNoRefreshToken, OutcomeRefreshFailed:
			return StateClearAndFail
		}
	case StateRetry:
		if o == OutcomeOK {
			return StateDone
		}
	}
	return StateFailed
}
