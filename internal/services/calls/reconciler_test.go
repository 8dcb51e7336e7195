package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staleCall(id string, age time.Duration, status domain.CallStatus) *domain.Call {
	return &domain.Call{
		ID:            id,
		LeadID:        "l-" + id,
		CampaignID:    "c1",
		Status:        status,
		RoomName:      "campaign-c1-l-" + id,
		AgentIdentity: "agent-" + id,
		CallStartTime: time.Now().Add(-age),
	}
}

func TestSweepCompletesStaleCalls(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(&domain.Lead{ID: "l-stuck", CampaignID: "c1", Status: domain.LeadStatusWaitingAgent})
	rooms := &scriptedRoomService{frames: [][]string{{}}}

	require.NoError(t, callRepo.Create(context.Background(), staleCall("stuck", 6*time.Minute, domain.CallStatusInProgress)))

	r := NewReconciler(callRepo, leadRepo, rooms, fastTiming())

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	call, err := callRepo.GetByID(context.Background(), "stuck")
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, domain.CallStatusCompleted, call.Status)
	require.NotNil(t, call.CallEndTime)
	assert.True(t, call.Results.AutoCompleted)
	assert.Equal(t, "auto_completed", call.Results.Outcome)
	assert.Equal(t, "stale_call_cleanup", call.Results.CompletionReason)

	assert.Equal(t, []string{"campaign-c1-l-stuck"}, rooms.deleted)
	assert.Equal(t, domain.LeadStatusCompleted, leadRepo.status("l-stuck"))
}

func TestSweepIsIdempotent(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(&domain.Lead{ID: "l-stuck", CampaignID: "c1", Status: domain.LeadStatusWaitingAgent})
	rooms := &scriptedRoomService{frames: [][]string{{}}}

	require.NoError(t, callRepo.Create(context.Background(), staleCall("stuck", 6*time.Minute, domain.CallStatusWaitingAgent)))

	r := NewReconciler(callRepo, leadRepo, rooms, fastTiming())

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, callRepo.finalizeCount["stuck"])
}

func TestSweepLeavesFreshAndTerminalCallsAlone(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo()
	rooms := &scriptedRoomService{frames: [][]string{{}}}

	fresh := staleCall("fresh", time.Minute, domain.CallStatusInProgress)
	done := staleCall("done", time.Hour, domain.CallStatusHungUp)
	require.NoError(t, callRepo.Create(context.Background(), fresh))
	require.NoError(t, callRepo.Create(context.Background(), done))

	r := NewReconciler(callRepo, leadRepo, rooms, fastTiming())

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, _ := callRepo.GetByID(context.Background(), "fresh")
	assert.Equal(t, domain.CallStatusInProgress, got.Status)
	got, _ = callRepo.GetByID(context.Background(), "done")
	assert.Equal(t, domain.CallStatusHungUp, got.Status)
}

func TestSweepSurvivesRoomDeleteFailure(t *testing.T) {
	callRepo := newMemCallRepo()
	leadRepo := newMemLeadRepo(&domain.Lead{ID: "l-stuck", CampaignID: "c1", Status: domain.LeadStatusWaitingAgent})
	rooms := &scriptedRoomService{
		frames:    [][]string{{}},
		deleteErr: errors.New("room already gone"),
	}

	require.NoError(t, callRepo.Create(context.Background(), staleCall("stuck", 6*time.Minute, domain.CallStatusInProgress)))

	r := NewReconciler(callRepo, leadRepo, rooms, fastTiming())

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	call, _ := callRepo.GetByID(context.Background(), "stuck")
	assert.Equal(t, domain.CallStatusCompleted, call.Status)
}
