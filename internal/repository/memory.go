package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/smsleopard-sequencer/internal/errors"
	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

// MemoryStore implements every repository interface in process, with the same
// claim, dedup and conditional-update rules as the SQL repositories. Reads
// return copies.
type MemoryStore struct {
	mu sync.Mutex

	leads       map[int]*model.Lead
	signals     map[int]model.ScoringSignals
	audiences   map[int]*model.Audience
	campaigns   map[int]*model.Campaign
	sequences   map[int]*model.Sequence
	steps       map[int]*model.Step
	enrollments map[int]*model.Enrollment
	broadcasts  map[int]*model.Broadcast
	nextID      int

	// QueryErr, when set, fails lead queries (simulates a store outage).
	QueryErr error
	// ScoreErr fails UpdateScore for specific lead ids.
	ScoreErr map[int]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:       map[int]*model.Lead{},
		signals:     map[int]model.ScoringSignals{},
		audiences:   map[int]*model.Audience{},
		campaigns:   map[int]*model.Campaign{},
		sequences:   map[int]*model.Sequence{},
		steps:       map[int]*model.Step{},
		enrollments: map[int]*model.Enrollment{},
		broadcasts:  map[int]*model.Broadcast{},
		ScoreErr:    map[int]error{},
	}
}

func (m *MemoryStore) id() int {
	m.nextID++
	return m.nextID
}

// ====================== Leads ======================

// AddLead seeds a lead and returns its id.
func (m *MemoryStore) AddLead(l model.Lead) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == 0 {
		l.ID = m.id()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	m.leads[l.ID] = &l
	return l.ID
}

func (m *MemoryStore) SetSignals(leadID int, s model.ScoringSignals) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[leadID] = s
}

func (m *MemoryStore) QueryLeads(ctx context.Context, orgID int, f model.Filter) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	ids := []int{}
	for _, l := range m.leads {
		if l.OrganizationID == orgID && !l.OptedOut && f.Matches(l) {
			ids = append(ids, l.ID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (m *MemoryStore) CountLeads(ctx context.Context, orgID int, f model.Filter) (int, error) {
	ids, err := m.QueryLeads(ctx, orgID, f)
	return len(ids), err
}

func (m *MemoryStore) GetByID(ctx context.Context, orgID, id int) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return nil, appErrors.NewLeadNotFound(id)
	}
	cp := *l
	cp.Tags = slices.Clone(l.Tags)
	return &cp, nil
}

func (m *MemoryStore) ListIDs(ctx context.Context, orgID int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int{}
	for _, l := range m.leads {
		if l.OrganizationID == orgID {
			ids = append(ids, l.ID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (m *MemoryStore) ScoringSignals(ctx context.Context, leadID int) (model.ScoringSignals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals[leadID], nil
}

func (m *MemoryStore) UpdateScore(ctx context.Context, orgID, id, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ScoreErr[id]; err != nil {
		return err
	}
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return appErrors.NewLeadNotFound(id)
	}
	l.Score = &score
	return nil
}

func (m *MemoryStore) SetOptedOut(ctx context.Context, orgID, id int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return false, appErrors.NewLeadNotFound(id)
	}
	if l.OptedOut {
		return false, nil
	}
	l.OptedOut = true
	l.OptedOutAt = &at
	return true, nil
}

// ====================== Audiences ======================

type memoryAudiences struct{ *MemoryStore }

// Audiences exposes the audience repository view.
func (m *MemoryStore) Audiences() AudienceRepositoryInterface { return memoryAudiences{m} }

func (m memoryAudiences) Create(ctx context.Context, a *model.Audience) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Type == "" {
		a.Type = model.AudienceDynamic
	}
	a.ID = m.id()
	a.CreatedAt = time.Now()
	cp := *a
	m.audiences[a.ID] = &cp
	return nil
}

func (m memoryAudiences) GetByID(ctx context.Context, orgID, id int) (*model.Audience, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.audiences[id]
	if !ok || a.OrganizationID != orgID {
		return nil, appErrors.NewAudienceNotFound(id)
	}
	cp := *a
	return &cp, nil
}

func (m memoryAudiences) UpdateCachedCount(ctx context.Context, id, count int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.audiences[id]; ok {
		a.CachedCount = count
		a.LastCountAt = &at
	}
	return nil
}

// ====================== Campaigns ======================

type memoryCampaigns struct{ *MemoryStore }

func (m *MemoryStore) Campaigns() CampaignRepositoryInterface { return memoryCampaigns{m} }

func (m memoryCampaigns) Create(ctx context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.ID = m.id()
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m memoryCampaigns) GetByID(ctx context.Context, orgID, id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m memoryCampaigns) ListCampaigns(ctx context.Context, orgID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Campaign
	for _, c := range m.campaigns {
		if c.OrganizationID != orgID || (status != "" && string(c.Status) != status) {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	return all[offset:min(offset+limit, total)], total, nil
}

func (m memoryCampaigns) UpdateStatus(ctx context.Context, campaignID int, status model.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (m memoryCampaigns) SetAudience(ctx context.Context, campaignID, audienceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.AudienceID = &audienceID
	}
	return nil
}

func (m memoryCampaigns) RecordEnrollment(ctx context.Context, campaignID, totalEnrolled int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.TotalEnrolled = totalEnrolled
		if c.Status == model.CampaignDraft {
			c.Status = model.CampaignActive
		}
	}
	return nil
}

func (m memoryCampaigns) IncrementCompleted(ctx context.Context, campaignID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.TotalCompleted++
	}
	return nil
}

// ====================== Sequences ======================

type memorySequences struct{ *MemoryStore }

func (m *MemoryStore) Sequences() SequenceRepositoryInterface { return memorySequences{m} }

func (m memorySequences) CreateSequence(ctx context.Context, s *model.Sequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	s.CreatedAt = time.Now()
	cp := *s
	m.sequences[s.ID] = &cp
	return nil
}

func (m memorySequences) GetSequence(ctx context.Context, id int) (*model.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sequences[id]
	if !ok {
		return nil, appErrors.NewSequenceNotFound(id)
	}
	cp := *s
	return &cp, nil
}

func (m memorySequences) AddStep(ctx context.Context, st *model.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.steps {
		if other.SequenceID == st.SequenceID && other.OrderIndex == st.OrderIndex {
			return appErrors.ErrInvalidArgument
		}
	}
	st.ID = m.id()
	cp := *st
	m.steps[st.ID] = &cp
	return nil
}

func (m memorySequences) ActiveSequence(ctx context.Context, campaignID int) (*model.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.Sequence
	for _, s := range m.sequences {
		if s.CampaignID == campaignID && s.IsActive && (found == nil || s.ID < found.ID) {
			found = s
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (m memorySequences) Activate(ctx context.Context, campaignID, sequenceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.sequences[sequenceID]
	if !ok || target.CampaignID != campaignID {
		return appErrors.NewSequenceNotFound(sequenceID)
	}
	for _, s := range m.sequences {
		if s.CampaignID == campaignID {
			s.IsActive = s.ID == sequenceID
		}
	}
	return nil
}

func (m memorySequences) Steps(ctx context.Context, sequenceID int) ([]model.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := []model.Step{}
	for _, st := range m.steps {
		if st.SequenceID == sequenceID {
			steps = append(steps, *st)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].OrderIndex < steps[j].OrderIndex })
	return steps, nil
}

// ====================== Enrollments ======================

type memoryEnrollments struct{ *MemoryStore }

func (m *MemoryStore) Enrollments() EnrollmentRepositoryInterface { return memoryEnrollments{m} }

// Enrollment returns a copy of one enrollment for assertions.
func (m *MemoryStore) Enrollment(id int) (model.Enrollment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return model.Enrollment{}, false
	}
	return copyEnrollment(e), true
}

// EnrollmentsFor lists a campaign's enrollments ordered by id.
func (m *MemoryStore) EnrollmentsFor(campaignID int) []model.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Enrollment{}
	for _, e := range m.enrollments {
		if e.CampaignID == campaignID {
			out = append(out, copyEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyEnrollment(e *model.Enrollment) model.Enrollment {
	cp := *e
	cp.ExecutionLogs = slices.Clone(e.ExecutionLogs)
	if e.CurrentStepID != nil {
		id := *e.CurrentStepID
		cp.CurrentStepID = &id
	}
	return cp
}

func (m memoryEnrollments) ContactIDs(ctx context.Context, campaignID int, statuses []model.EnrollmentStatus) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int]bool{}
	ids := []int{}
	for _, e := range m.enrollments {
		if e.CampaignID == campaignID && slices.Contains(statuses, e.Status) && !seen[e.ContactID] {
			seen[e.ContactID] = true
			ids = append(ids, e.ContactID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (m memoryEnrollments) BulkInsert(ctx context.Context, rows []model.Enrollment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, row := range rows {
		if m.liveExists(row.CampaignID, row.ContactID) {
			continue
		}
		row.ID = m.id()
		row.CreatedAt = time.Now()
		row.UpdatedAt = row.CreatedAt
		if row.ExecutionLogs == nil {
			row.ExecutionLogs = model.ExecutionLog{}
		}
		cp := row
		m.enrollments[row.ID] = &cp
		inserted++
	}
	return inserted, nil
}

// liveExists mirrors the partial unique index on (campaign_id, contact_id).
func (m memoryEnrollments) liveExists(campaignID, contactID int) bool {
	for _, e := range m.enrollments {
		if e.CampaignID == campaignID && e.ContactID == contactID &&
			(e.Status == model.EnrollmentActive || e.Status == model.EnrollmentCompleted) {
			return true
		}
	}
	return false
}

func (m memoryEnrollments) ClaimDue(ctx context.Context, orgID int, now, leaseUntil time.Time, limit int, token string) ([]model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*model.Enrollment
	for _, e := range m.enrollments {
		if e.Status != model.EnrollmentActive || e.NextRunAt.After(now) {
			continue
		}
		if orgID != 0 && e.OrganizationID != orgID {
			continue
		}
		if c, ok := m.campaigns[e.CampaignID]; !ok || c.Status != model.CampaignActive {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRunAt.Equal(due[j].NextRunAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextRunAt.Before(due[j].NextRunAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]model.Enrollment, 0, len(due))
	for _, e := range due {
		e.NextRunAt = leaseUntil
		e.ClaimToken = token
		e.UpdatedAt = now
		out = append(out, copyEnrollment(e))
	}
	return out, nil
}

func (m memoryEnrollments) Finish(ctx context.Context, u model.EnrollmentUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[u.ID]
	if !ok || e.Status != model.EnrollmentActive || e.ClaimToken != u.ClaimToken {
		return false, nil
	}
	e.Status = u.Status
	e.CurrentStepID = u.CurrentStepID
	e.NextRunAt = u.NextRunAt
	last := u.LastRunAt
	e.LastRunAt = &last
	e.ClaimToken = ""
	e.ExecutionLogs = append(e.ExecutionLogs, u.Append...)
	e.UpdatedAt = u.LastRunAt
	return true, nil
}

func (m memoryEnrollments) CancelActiveForLead(ctx context.Context, orgID, leadID int, entry model.LogEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.enrollments {
		if e.OrganizationID == orgID && e.ContactID == leadID && e.Status == model.EnrollmentActive {
			e.Status = model.EnrollmentCancelled
			e.ClaimToken = ""
			e.ExecutionLogs = append(e.ExecutionLogs, entry)
			e.UpdatedAt = entry.At
			n++
		}
	}
	return n, nil
}

func (m memoryEnrollments) StatusCounts(ctx context.Context, campaignID int) (map[model.EnrollmentStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[model.EnrollmentStatus]int{
		model.EnrollmentActive:    0,
		model.EnrollmentCompleted: 0,
		model.EnrollmentFailed:    0,
		model.EnrollmentCancelled: 0,
	}
	for _, e := range m.enrollments {
		if e.CampaignID == campaignID {
			stats[e.Status]++
		}
	}
	return stats, nil
}

func (m memoryEnrollments) RecentlyUpdated(ctx context.Context, campaignID, limit int) ([]model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Enrollment{}
	for _, e := range m.enrollments {
		if e.CampaignID == campaignID {
			out = append(out, copyEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ====================== Broadcasts ======================

type memoryBroadcasts struct{ *MemoryStore }

func (m *MemoryStore) Broadcasts() BroadcastRepositoryInterface { return memoryBroadcasts{m} }

func (m memoryBroadcasts) Create(ctx context.Context, b *model.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	b.CreatedAt = time.Now()
	cp := *b
	m.broadcasts[b.ID] = &cp
	return nil
}

func (m memoryBroadcasts) GetByID(ctx context.Context, orgID, id int) (*model.Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok || b.OrganizationID != orgID {
		return nil, appErrors.NewBroadcastNotFound(id)
	}
	cp := *b
	return &cp, nil
}

func (m memoryBroadcasts) Transition(ctx context.Context, id int, from []model.BroadcastStatus, to model.BroadcastStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok || !slices.Contains(from, b.Status) {
		return false, nil
	}
	b.Status = to
	if to == model.BroadcastSending {
		b.SentAt = &at
	}
	return true, nil
}

func (m memoryBroadcasts) RecordResult(ctx context.Context, id, sent, failed int, status model.BroadcastStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasts[id]
	if !ok || b.Status != model.BroadcastSending {
		return nil
	}
	b.Sent = sent
	b.Failed = failed
	b.Status = status
	b.CompletedAt = &at
	return nil
}

func (m memoryBroadcasts) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]model.Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Broadcast{}
	for _, b := range m.broadcasts {
		if b.Status == model.BroadcastScheduled && b.ScheduledAt != nil && !b.ScheduledAt.After(now) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ LeadRepositoryInterface       = (*MemoryStore)(nil)
	_ AudienceRepositoryInterface   = memoryAudiences{}
	_ CampaignRepositoryInterface   = memoryCampaigns{}
	_ SequenceRepositoryInterface   = memorySequences{}
	_ EnrollmentRepositoryInterface = memoryEnrollments{}
	_ BroadcastRepositoryInterface  = memoryBroadcasts{}
)
