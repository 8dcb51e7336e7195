package calls

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dialworks/outbound-call-service/internal/config"
	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastTiming() config.TimingConfig {
	return config.TimingConfig{
		PollInterval:     2 * time.Millisecond,
		CallTimeout:      time.Second,
		DisconnectGrace:  10 * time.Millisecond,
		ShortCallCutoff:  0,
		StaleThreshold:   5 * time.Minute,
		DashboardStale:   10 * time.Minute,
		RoomEmptyTimeout: 300,
	}
}

func testLead() *domain.Lead {
	return &domain.Lead{
		ID:          "l1",
		CampaignID:  "c1",
		PhoneNumber: "+15551234567",
		Status:      domain.LeadStatusPending,
	}
}

func testCampaign() *domain.Campaign {
	return &domain.Campaign{
		ID:     "c1",
		Name:   "Q3 renewals",
		Script: "Hi, this is a quick call about your renewal.",
		Status: domain.CampaignStatusActive,
	}
}

func newTestOrchestrator(callRepo *memCallRepo, leadRepo *memLeadRepo, rooms *scriptedRoomService, dialer Dialer, timing config.TimingConfig, events EventPublisher) *Orchestrator {
	rooms.agentFor = func() string {
		if c := callRepo.only(); c != nil {
			return c.AgentIdentity
		}
		return "agent-unknown"
	}
	return NewOrchestrator(callRepo, leadRepo, rooms, dialer, timing, events)
}

func TestPlaceCallCompletesWhenCustomerLeavesAfterConversation(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(testLead())
	rooms := &scriptedRoomService{frames: [][]string{
		{"@agent"},
		{"@agent", "+15551234567"},
		{"@agent", "+15551234567"},
		{"@agent"},
	}}
	dialer := &stubDialer{handle: "sip-call-1"}
	events := &recordingPublisher{}

	o := newTestOrchestrator(callRepo, leadRepo, rooms, dialer, fastTiming(), events)

	status, err := o.PlaceCall(context.Background(), testLead(), testCampaign())
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, status)

	call := callRepo.only()
	require.NotNil(t, call)
	assert.Equal(t, domain.CallStatusCompleted, call.Status)
	assert.Equal(t, "campaign-c1-l1", call.RoomName)
	require.NotNil(t, call.CallEndTime)
	assert.Equal(t, "completed", call.Results.Outcome)
	assert.Equal(t, "sip-call-1", call.Results.DialHandle)
	assert.Equal(t, 1, callRepo.finalizeCount[call.ID])

	assert.Equal(t, domain.LeadStatusCompleted, leadRepo.status("l1"))
	assert.Equal(t, []string{"+15551234567"}, dialer.dials)

	statuses := events.statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, domain.CallStatusWaitingAgent, statuses[0])
	assert.Contains(t, statuses, domain.CallStatusInProgress)
	assert.Equal(t, domain.CallStatusCompleted, statuses[len(statuses)-1])
}

func TestPlaceCallAgentNeverJoins(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(testLead())
	rooms := &scriptedRoomService{frames: [][]string{{}}}
	dialer := &stubDialer{}

	timing := fastTiming()
	timing.CallTimeout = 30 * time.Millisecond

	o := newTestOrchestrator(callRepo, leadRepo, rooms, dialer, timing, nil)

	status, err := o.PlaceCall(context.Background(), testLead(), testCampaign())
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusAgentFailed, status)

	call := callRepo.only()
	require.NotNil(t, call)
	assert.Equal(t, domain.CallStatusFailed, call.Status)
	assert.Equal(t, "agent_failed", call.Results.Outcome)
	require.NotNil(t, call.CallEndTime)

	assert.Equal(t, domain.LeadStatusFailed, leadRepo.status("l1"))
}

func TestPlaceCallDialFailure(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(testLead())
	rooms := &scriptedRoomService{frames: [][]string{{"@agent"}}}
	dialer := &stubDialer{err: errors.New("carrier rejected number")}

	o := newTestOrchestrator(callRepo, leadRepo, rooms, dialer, fastTiming(), nil)

	status, err := o.PlaceCall(context.Background(), testLead(), testCampaign())
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusFailed, status)

	call := callRepo.only()
	require.NotNil(t, call)
	assert.Equal(t, domain.CallStatusFailed, call.Status)
	assert.Equal(t, "carrier rejected number", call.Results.Summary)
	require.NotNil(t, call.CallEndTime)

	// The dial failure is the terminal outcome; presence is never polled.
	assert.Equal(t, 0, rooms.listCalls)
	assert.Equal(t, domain.LeadStatusFailed, leadRepo.status("l1"))
}

func TestPlaceCallRoomCreateFailure(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(testLead())
	rooms := &scriptedRoomService{createErr: errors.New("media server unavailable")}
	dialer := &stubDialer{}

	o := newTestOrchestrator(callRepo, leadRepo, rooms, dialer, fastTiming(), nil)

	status, err := o.PlaceCall(context.Background(), testLead(), testCampaign())
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusFailed, status)
	assert.Empty(t, dialer.dials)
}

func TestPlaceCallShortHangup(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(testLead())
	rooms := &scriptedRoomService{frames: [][]string{
		{"@agent", "+15551234567"},
		{"@agent"},
	}}
	dialer := &stubDialer{}

	timing := fastTiming()
	timing.ShortCallCutoff = time.Hour

	o := newTestOrchestrator(callRepo, leadRepo, rooms, dialer, timing, nil)

	status, err := o.PlaceCall(context.Background(), testLead(), testCampaign())
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusHungUp, status)
	assert.Equal(t, domain.LeadStatusHungUp, leadRepo.status("l1"))
}

func TestPlaceTestCallUsesTestDialerAndRoom(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(testLead())
	rooms := &scriptedRoomService{frames: [][]string{
		{"@agent", "+15551234567"},
		{"@agent"},
	}}
	sipDialer := &stubDialer{}
	twilioDialer := &stubDialer{handle: "CA123"}

	o := newTestOrchestrator(callRepo, leadRepo, rooms, sipDialer, fastTiming(), nil)
	o.SetTestDialer(twilioDialer)

	_, err := o.PlaceTestCall(context.Background(), testLead(), testCampaign())
	require.NoError(t, err)

	call := callRepo.only()
	require.NotNil(t, call)
	assert.True(t, strings.HasPrefix(call.RoomName, "test-"), "room %q", call.RoomName)
	assert.Empty(t, sipDialer.dials)
	assert.Equal(t, []string{"+15551234567"}, twilioDialer.dials)
}

// racingCallRepo finalizes the call out-of-band right before the monitoring
// loop's first status transition, the way a concurrent sweep would.
type racingCallRepo struct {
	*memCallRepo
	raced bool
}

func (r *racingCallRepo) UpdateStatusIfActive(ctx context.Context, id string, status domain.CallStatus) (bool, error) {
	if !r.raced {
		r.raced = true
		_, _ = r.memCallRepo.FinalizeIfActive(ctx, id, domain.CallStatusCompleted, time.Now(), 0, domain.CallResults{
			Outcome:       "auto_completed",
			AutoCompleted: true,
		})
	}
	return r.memCallRepo.UpdateStatusIfActive(ctx, id, status)
}

func TestPlaceCallKeepsOutcomeWrittenByConcurrentSweep(t *testing.T) {
	callRepo := &racingCallRepo{memCallRepo: newMemCallRepo()}
	leadRepo := newMemLeadRepo(testLead())
	rooms := &scriptedRoomService{frames: [][]string{
		{"@agent", "+15551234567"},
	}}
	rooms.agentFor = func() string {
		if c := callRepo.only(); c != nil {
			return c.AgentIdentity
		}
		return "agent-unknown"
	}
	dialer := &stubDialer{}

	o := NewOrchestrator(callRepo, leadRepo, rooms, dialer, fastTiming(), nil)

	status, err := o.PlaceCall(context.Background(), testLead(), testCampaign())
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, status)

	// Exactly one terminal write, and it was the sweep's.
	call := callRepo.only()
	require.NotNil(t, call)
	assert.Equal(t, 1, callRepo.finalizeCount[call.ID])
	assert.True(t, call.Results.AutoCompleted)
}
