package calls

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dialworks/outbound-call-service/internal/domain"
)

// memCallRepo is an in-memory CallRepository with the same conditional
// update semantics as the database implementation.
type memCallRepo struct {
	mu    sync.Mutex
	calls map[string]*domain.Call

	createErr     error
	finalizeCount map[string]int
}

func newMemCallRepo() *memCallRepo {
	return &memCallRepo{
		calls:         make(map[string]*domain.Call),
		finalizeCount: make(map[string]int),
	}
}

func (r *memCallRepo) Create(ctx context.Context, call *domain.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *call
	r.calls[call.ID] = &cp
	return nil
}

func (r *memCallRepo) GetByID(ctx context.Context, id string) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCallRepo) UpdateStatusIfActive(ctx context.Context, id string, status domain.CallStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || c.Status.IsTerminal() {
		return false, nil
	}
	c.Status = status
	return true, nil
}

func (r *memCallRepo) FinalizeIfActive(ctx context.Context, id string, status domain.CallStatus, endTime time.Time, duration int, results domain.CallResults) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !status.IsTerminal() {
		return false, errors.New("finalize requires a terminal status")
	}
	c, ok := r.calls[id]
	if !ok || c.Status.IsTerminal() {
		return false, nil
	}
	c.Status = status
	et := endTime
	c.CallEndTime = &et
	c.Duration = duration
	c.Results = results
	r.finalizeCount[id]++
	return true, nil
}

func (r *memCallRepo) FindStale(ctx context.Context, cutoff time.Time) ([]*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Call
	for _, c := range r.calls {
		if !c.Status.IsTerminal() && c.CallStartTime.Before(cutoff) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCallRepo) FindRecent(ctx context.Context, limit int) ([]*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Call
	for _, c := range r.calls {
		if len(out) >= limit {
			break
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memCallRepo) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.calls {
		if c.CallStartTime.After(since) {
			n++
		}
	}
	return n, nil
}

// only returns the single stored call; helper for tests that place one call.
func (r *memCallRepo) only() *domain.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		cp := *c
		return &cp
	}
	return nil
}

type memLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*domain.Lead
}

func newMemLeadRepo(leads ...*domain.Lead) *memLeadRepo {
	r := &memLeadRepo{leads: make(map[string]*domain.Lead)}
	for _, l := range leads {
		cp := *l
		r.leads[l.ID] = &cp
	}
	return r
}

func (r *memLeadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *lead
	r.leads[lead.ID] = &cp
	return nil
}

func (r *memLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *memLeadRepo) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus, errorReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return errors.New("lead not found")
	}
	l.Status = status
	l.ErrorReason = errorReason
	return nil
}

func (r *memLeadRepo) FindPendingByCampaign(ctx context.Context, campaignID string) ([]*domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Lead
	for _, l := range r.leads {
		if l.CampaignID == campaignID && l.Status == domain.LeadStatusPending {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memLeadRepo) status(id string) domain.LeadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok {
		return l.Status
	}
	return ""
}

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
}

func newMemCampaignRepo(campaigns ...*domain.Campaign) *memCampaignRepo {
	r := &memCampaignRepo{campaigns: make(map[string]*domain.Campaign)}
	for _, c := range campaigns {
		cp := *c
		r.campaigns[c.ID] = &cp
	}
	return r
}

func (r *memCampaignRepo) Create(ctx context.Context, campaign *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *campaign
	r.campaigns[campaign.ID] = &cp
	return nil
}

func (r *memCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return errors.New("campaign not found")
	}
	c.Status = status
	return nil
}

// scriptedRoomService plays back a fixed sequence of presence frames, one
// per ListParticipants call, repeating the last frame once exhausted. A nil
// frame means the room no longer exists.
type scriptedRoomService struct {
	mu     sync.Mutex
	frames [][]string
	next   int

	createErr   error
	created     []string
	deleted     []string
	deleteErr   error
	listErr     error
	listCalls   int
	roomDeleted bool

	// agentFor resolves the "@agent" frame token to the real agent
	// identity, which embeds the generated call ID.
	agentFor func() string
}

func (s *scriptedRoomService) CreateRoom(ctx context.Context, name, metadata string, emptyTimeoutSecs uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, name)
	return nil
}

func (s *scriptedRoomService) ListParticipants(ctx context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	if s.roomDeleted || len(s.frames) == 0 {
		return nil, errors.New("room not found")
	}
	frame := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	if frame == nil {
		s.roomDeleted = true
		return nil, errors.New("room not found")
	}
	out := make([]string, len(frame))
	for i, identity := range frame {
		if identity == "@agent" && s.agentFor != nil {
			identity = s.agentFor()
		}
		out[i] = identity
	}
	return out, nil
}

func (s *scriptedRoomService) RoomExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomDeleted || len(s.frames) == 0 {
		return false, nil
	}
	return true, nil
}

func (s *scriptedRoomService) DeleteRoom(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.roomDeleted = true
	return nil
}

// stubDialer records dials and optionally fails them.
type stubDialer struct {
	mu     sync.Mutex
	err    error
	handle string
	dials  []string
}

func (d *stubDialer) Dial(ctx context.Context, toNumber, fromNumber, roomName string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, toNumber)
	if d.err != nil {
		return "", d.err
	}
	if d.handle != "" {
		return d.handle, nil
	}
	return "CA-test-handle", nil
}

// recordingPublisher captures published status events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := message.(StatusEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

func (p *recordingPublisher) statuses() []domain.CallStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.CallStatus, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Status)
	}
	return out
}
