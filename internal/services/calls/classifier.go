package calls

import (
	"strings"
	"time"

	"github.com/dialworks/outbound-call-service/internal/config"
	"github.com/dialworks/outbound-call-service/internal/domain"
)

// listenerPrefix marks dashboard monitor participants, which never count as
// customers.
const listenerPrefix = "listener-"

// ClassifierSession turns a sequence of presence snapshots into a call
// status. One session covers one monitoring run; once it emits a terminal
// status it stays there.
//
// Rules, in precedence order per observation:
//   - room gone: hung_up, regardless of last-known participants
//   - customer was present and left: hung_up within the short-call cutoff
//     while the agent is still there, completed past it; if the agent is
//     gone too, hung_up after the disconnect grace
//   - agent and customer both present: in_progress
//   - otherwise waiting_agent; agent_failed / no_answer only ever come from
//     the overall timeout, never from a single observation
type ClassifierSession struct {
	agentIdentity string
	startTime     time.Time
	timing        config.TimingConfig

	agentSeen        bool
	customerSeen     bool
	lastCustomerSeen time.Time

	current domain.CallStatus
	done    bool
}

// NewClassifierSession starts a classification session for one call.
func NewClassifierSession(agentIdentity string, startTime time.Time, timing config.TimingConfig) *ClassifierSession {
	return &ClassifierSession{
		agentIdentity: agentIdentity,
		startTime:     startTime,
		timing:        timing,
		current:       domain.CallStatusWaitingAgent,
	}
}

// Status returns the most recent classification.
func (s *ClassifierSession) Status() domain.CallStatus {
	return s.current
}

// Done reports whether the session has reached a terminal classification.
func (s *ClassifierSession) Done() bool {
	return s.done
}

// Observe feeds one presence snapshot taken at now and returns the resulting
// classification.
func (s *ClassifierSession) Observe(snap Snapshot, now time.Time) domain.CallStatus {
	if s.done {
		return s.current
	}

	// A vanished room always resolves to hung_up, before any participant rule.
	if !snap.RoomExists {
		return s.terminal(domain.CallStatusHungUp)
	}

	agentPresent := false
	customerPresent := false
	for _, identity := range snap.Identities {
		switch {
		case identity == s.agentIdentity:
			agentPresent = true
		case strings.HasPrefix(identity, listenerPrefix):
			// monitors don't count
		default:
			customerPresent = true
		}
	}

	if agentPresent {
		s.agentSeen = true
	}
	if customerPresent {
		s.customerSeen = true
		s.lastCustomerSeen = now
	}

	if s.customerSeen && !customerPresent {
		if agentPresent {
			if now.Sub(s.startTime) < s.timing.ShortCallCutoff {
				return s.terminal(domain.CallStatusHungUp)
			}
			return s.terminal(domain.CallStatusCompleted)
		}
		if now.Sub(s.lastCustomerSeen) >= s.timing.DisconnectGrace {
			return s.terminal(domain.CallStatusHungUp)
		}
		return s.current
	}

	if agentPresent && customerPresent {
		s.current = domain.CallStatusInProgress
	}
	return s.current
}

// ObserveFailure records a presence query failure, which is treated as the
// room being gone.
func (s *ClassifierSession) ObserveFailure() domain.CallStatus {
	if s.done {
		return s.current
	}
	return s.terminal(domain.CallStatusHungUp)
}

// TimeoutStatus synthesizes the terminal status when the overall call timeout
// elapses without a terminal observation: the agent never joined means the
// agent failed, no customer ever answered means no answer. A conversation
// still live at the hard timeout counts as completed.
func (s *ClassifierSession) TimeoutStatus() domain.CallStatus {
	if s.done {
		return s.current
	}
	switch {
	case !s.agentSeen:
		return s.terminal(domain.CallStatusAgentFailed)
	case !s.customerSeen:
		return s.terminal(domain.CallStatusNoAnswer)
	default:
		return s.terminal(domain.CallStatusCompleted)
	}
}

func (s *ClassifierSession) terminal(status domain.CallStatus) domain.CallStatus {
	s.current = status
	s.done = true
	return status
}
