package calls

import (
	"testing"
	"time"

	"github.com/dialworks/outbound-call-service/internal/config"
	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func classifierTiming() config.TimingConfig {
	return config.TimingConfig{
		PollInterval:    500 * time.Millisecond,
		CallTimeout:     45 * time.Second,
		DisconnectGrace: 5 * time.Second,
		ShortCallCutoff: 10 * time.Second,
	}
}

func present(identities ...string) Snapshot {
	return Snapshot{Identities: identities, RoomExists: true}
}

func roomGone() Snapshot {
	return Snapshot{RoomExists: false}
}

func TestClassifierStaysWaitingWhileNobodyAnswers(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	// Ringing for 40 seconds with just the agent in the room must never
	// classify on its own; no_answer can only come from the timeout.
	for i := 0; i < 80; i++ {
		got := s.Observe(present("agent-1"), start.Add(time.Duration(i)*500*time.Millisecond))
		assert.Equal(t, domain.CallStatusWaitingAgent, got)
		assert.False(t, s.Done())
	}

	assert.Equal(t, domain.CallStatusNoAnswer, s.TimeoutStatus())
	assert.True(t, s.Done())
}

func TestClassifierAgentNeverJoins(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	for i := 0; i < 10; i++ {
		got := s.Observe(present(), start.Add(time.Duration(i)*500*time.Millisecond))
		assert.Equal(t, domain.CallStatusWaitingAgent, got)
	}

	assert.Equal(t, domain.CallStatusAgentFailed, s.TimeoutStatus())
	assert.Equal(t, domain.CallStatusFailed, s.TimeoutStatus().StorageStatus())
}

func TestClassifierConversationInProgress(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	s.Observe(present("agent-1"), start)
	got := s.Observe(present("agent-1", "+15551234567"), start.Add(2*time.Second))
	assert.Equal(t, domain.CallStatusInProgress, got)
	assert.False(t, s.Done())
}

func TestClassifierShortCallIsHangup(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	s.Observe(present("agent-1", "+15551234567"), start.Add(1*time.Second))
	// Customer gone 4 seconds in, agent still there: under the short-call
	// cutoff this is a hang-up, not a completion.
	got := s.Observe(present("agent-1"), start.Add(4*time.Second))
	assert.Equal(t, domain.CallStatusHungUp, got)
	assert.True(t, s.Done())
}

func TestClassifierLongCallCompletes(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	s.Observe(present("agent-1", "+15551234567"), start.Add(1*time.Second))
	got := s.Observe(present("agent-1"), start.Add(30*time.Second))
	assert.Equal(t, domain.CallStatusCompleted, got)
	assert.True(t, s.Done())
}

func TestClassifierBothGoneHangsUpAfterGrace(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	s.Observe(present("agent-1", "+15551234567"), start.Add(1*time.Second))

	// Agent and customer both gone but room still up: inside the grace
	// window the call stays as-is.
	s.Observe(present(), start.Add(3*time.Second))
	assert.False(t, s.Done())

	got := s.Observe(present(), start.Add(7*time.Second))
	assert.Equal(t, domain.CallStatusHungUp, got)
	assert.True(t, s.Done())
}

func TestClassifierRoomVanishWinsOverCompletion(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	s.Observe(present("agent-1", "+15551234567"), start.Add(1*time.Second))

	// Same poll shows the room gone after a long conversation. Room
	// disappearance is evaluated before the completion rule.
	got := s.Observe(roomGone(), start.Add(30*time.Second))
	assert.Equal(t, domain.CallStatusHungUp, got)
}

func TestClassifierIgnoresListeners(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	got := s.Observe(present("agent-1", "listener-1700000000000"), start.Add(1*time.Second))
	assert.Equal(t, domain.CallStatusWaitingAgent, got)

	// A listener leaving must not read as a customer hang-up.
	got = s.Observe(present("agent-1"), start.Add(2*time.Second))
	assert.Equal(t, domain.CallStatusWaitingAgent, got)
	assert.False(t, s.Done())
}

func TestClassifierPresenceFailureIsHangup(t *testing.T) {
	s := NewClassifierSession("agent-1", time.Now(), classifierTiming())
	assert.Equal(t, domain.CallStatusHungUp, s.ObserveFailure())
	assert.True(t, s.Done())
}

func TestClassifierTimeoutWithLiveConversationCompletes(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	s.Observe(present("agent-1", "+15551234567"), start.Add(1*time.Second))
	assert.Equal(t, domain.CallStatusCompleted, s.TimeoutStatus())
}

func TestClassifierTerminalIsSticky(t *testing.T) {
	start := time.Now()
	s := NewClassifierSession("agent-1", start, classifierTiming())

	s.Observe(present("agent-1", "+15551234567"), start.Add(1*time.Second))
	assert.Equal(t, domain.CallStatusHungUp, s.Observe(roomGone(), start.Add(2*time.Second)))

	// Later observations and the timeout cannot move a terminal session.
	assert.Equal(t, domain.CallStatusHungUp, s.Observe(present("agent-1", "+15551234567"), start.Add(3*time.Second)))
	assert.Equal(t, domain.CallStatusHungUp, s.TimeoutStatus())
}
