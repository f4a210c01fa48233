// Package testfixtures provides in-memory repository implementations
// and a no-op transaction runner for tests that exercise the service
// layer without a database. The in-memory store honors the same
// conditional-update semantics as the SQL repositories (redeem-once,
// status transitions, deactivation counts); it does not provide real
// transaction isolation.
package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/repository"
)

// StubTxRunner satisfies service.TxRunner by invoking the function with
// a nil transaction; the in-memory repositories ignore the rebind.
type StubTxRunner struct{}

func (StubTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type MemStore struct {
	mu           sync.Mutex
	encounters   map[string]model.Encounter
	invites      map[string]model.Invite // keyed by OIT
	handoffs     map[string]model.HandoffToken
	sessions     map[string]model.Session
	participants map[string]map[model.ParticipantRole]model.Participant
	permissions  map[string]model.Permission
	rooms        map[string]model.Room
	journal      []model.JournalEvent
	nextEventID  int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		encounters:   make(map[string]model.Encounter),
		invites:      make(map[string]model.Invite),
		handoffs:     make(map[string]model.HandoffToken),
		sessions:     make(map[string]model.Session),
		participants: make(map[string]map[model.ParticipantRole]model.Participant),
		permissions:  make(map[string]model.Permission),
		rooms:        make(map[string]model.Room),
	}
}

func (s *MemStore) Encounters() repository.EncounterRepository     { return memEncounterRepo{s} }
func (s *MemStore) Invites() repository.InviteRepository           { return memInviteRepo{s} }
func (s *MemStore) Handoffs() repository.HandoffRepository         { return memHandoffRepo{s} }
func (s *MemStore) Sessions() repository.SessionRepository         { return memSessionRepo{s} }
func (s *MemStore) Participants() repository.ParticipantRepository { return memParticipantRepo{s} }
func (s *MemStore) Permissions() repository.PermissionRepository   { return memPermissionRepo{s} }
func (s *MemStore) Rooms() repository.RoomRepository               { return memRoomRepo{s} }
func (s *MemStore) Journal() repository.JournalRepository          { return memJournalRepo{s} }

// JournalTypes returns the event types recorded for an encounter, in
// append order.
func (s *MemStore) JournalTypes(encounterID string) []model.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []model.EventType
	for _, e := range s.journal {
		if e.EncounterID != nil && *e.EncounterID == encounterID {
			types = append(types, e.Type)
		}
	}
	return types
}

// ActiveSessions returns the active sessions for an encounter.
func (s *MemStore) ActiveSessions(encounterID string) []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.EncounterID == encounterID && sess.Active {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Session returns a session by id.
func (s *MemStore) Session(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Encounter returns an encounter by id.
func (s *MemStore) Encounter(id string) (model.Encounter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, ok := s.encounters[id]
	return enc, ok
}

// encounter repository

type memEncounterRepo struct{ s *MemStore }

func (r memEncounterRepo) WithTx(tx *sqlx.Tx) repository.EncounterRepository { return r }

func (r memEncounterRepo) FindByID(ctx context.Context, id string) (*model.Encounter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	enc, ok := r.s.encounters[id]
	if !ok {
		return nil, nil
	}
	return &enc, nil
}

func (r memEncounterRepo) Create(ctx context.Context, params model.CreateEncounterParams) (*model.Encounter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	enc := model.Encounter{
		ID:           params.ID,
		ProviderID:   params.ProviderID,
		ProviderRoom: params.ProviderRoom,
		PatientHint:  params.PatientHint,
		ScheduledAt:  params.ScheduledAt,
		Status:       model.EncounterStatusScheduled,
		CreatedAt:    time.Now(),
	}
	r.s.encounters[params.ID] = enc
	return &enc, nil
}

func (r memEncounterRepo) Transition(ctx context.Context, id string, from, to model.EncounterStatus, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	enc, ok := r.s.encounters[id]
	if !ok || enc.Status != from {
		return false, nil
	}
	enc.Status = to
	if to == model.EncounterStatusEnded {
		endedAt := now
		enc.EndedAt = &endedAt
	}
	r.s.encounters[id] = enc
	return true, nil
}

func (r memEncounterRepo) FindStaleActive(ctx context.Context, seenCutoff time.Time) ([]model.Encounter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Encounter
	for _, enc := range r.s.encounters {
		if enc.Status != model.EncounterStatusActive {
			continue
		}
		fresh := false
		for role, p := range r.s.participants[enc.ID] {
			if role == model.RoleStaff {
				continue
			}
			if p.LastSeen.After(seenCutoff) {
				fresh = true
			}
		}
		if !fresh {
			out = append(out, enc)
		}
	}
	return out, nil
}

func (r memEncounterRepo) FindAbandonedScheduled(ctx context.Context, createdBefore, seenCutoff time.Time) ([]model.Encounter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Encounter
	for _, enc := range r.s.encounters {
		if enc.Status != model.EncounterStatusScheduled || !enc.CreatedAt.Before(createdBefore) {
			continue
		}
		fresh := false
		for _, p := range r.s.participants[enc.ID] {
			if p.LastSeen.After(seenCutoff) {
				fresh = true
			}
		}
		if !fresh {
			out = append(out, enc)
		}
	}
	return out, nil
}

func (r memEncounterRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.encounters, id)
	delete(r.s.participants, id)
	delete(r.s.permissions, id)
	delete(r.s.rooms, id)
	for oit, inv := range r.s.invites {
		if inv.EncounterID == id {
			delete(r.s.invites, oit)
		}
	}
	for hot, ht := range r.s.handoffs {
		if ht.EncounterID == id {
			delete(r.s.handoffs, hot)
		}
	}
	for sid, sess := range r.s.sessions {
		if sess.EncounterID == id {
			delete(r.s.sessions, sid)
		}
	}
	kept := r.s.journal[:0]
	for _, e := range r.s.journal {
		if e.EncounterID == nil || *e.EncounterID != id {
			kept = append(kept, e)
		}
	}
	r.s.journal = kept
	return nil
}

// invite repository

type memInviteRepo struct{ s *MemStore }

func (r memInviteRepo) WithTx(tx *sqlx.Tx) repository.InviteRepository { return r }

func (r memInviteRepo) FindByOIT(ctx context.Context, oit string) (*model.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invites[oit]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r memInviteRepo) FindByEncounterID(ctx context.Context, encounterID string) (*model.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invites {
		if inv.EncounterID == encounterID {
			return &inv, nil
		}
	}
	return nil, nil
}

func (r memInviteRepo) Create(ctx context.Context, params model.CreateInviteParams) (*model.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv := model.Invite{
		ID:          params.ID,
		EncounterID: params.EncounterID,
		Channel:     params.Channel,
		Target:      params.Target,
		OIT:         params.OIT,
		CreatedAt:   time.Now(),
	}
	r.s.invites[params.OIT] = inv
	return &inv, nil
}

func (r memInviteRepo) Redeem(ctx context.Context, oit string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invites[oit]
	if !ok || inv.RedeemedAt != nil {
		return false, nil
	}
	at := now
	inv.RedeemedAt = &at
	r.s.invites[oit] = inv
	return true, nil
}

// handoff repository

type memHandoffRepo struct{ s *MemStore }

func (r memHandoffRepo) WithTx(tx *sqlx.Tx) repository.HandoffRepository { return r }

func (r memHandoffRepo) FindByHOT(ctx context.Context, hot string) (*model.HandoffToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ht, ok := r.s.handoffs[hot]
	if !ok {
		return nil, nil
	}
	return &ht, nil
}

func (r memHandoffRepo) Create(ctx context.Context, params model.CreateHandoffTokenParams) (*model.HandoffToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ht := model.HandoffToken{
		ID:          params.ID,
		EncounterID: params.EncounterID,
		HOT:         params.HOT,
		ExpiresAt:   params.ExpiresAt,
		CreatedAt:   time.Now(),
	}
	r.s.handoffs[params.HOT] = ht
	return &ht, nil
}

func (r memHandoffRepo) Consume(ctx context.Context, hot string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ht, ok := r.s.handoffs[hot]
	if !ok || ht.UsedAt != nil || !ht.ExpiresAt.After(now) {
		return false, nil
	}
	at := now
	ht.UsedAt = &at
	r.s.handoffs[hot] = ht
	return true, nil
}

func (r memHandoffRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var count int64
	for hot, ht := range r.s.handoffs {
		if ht.UsedAt != nil || ht.ExpiresAt.Before(now) {
			delete(r.s.handoffs, hot)
			count++
		}
	}
	return count, nil
}

// session repository

type memSessionRepo struct{ s *MemStore }

func (r memSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository { return r }

func (r memSessionRepo) FindActiveByDevice(ctx context.Context, encounterID, deviceNonce string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.EncounterID == encounterID && sess.DeviceNonce == deviceNonce && sess.Active {
			return &sess, nil
		}
	}
	return nil, nil
}

func (r memSessionRepo) FindActiveByEncounter(ctx context.Context, encounterID string) ([]model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Session
	for _, sess := range r.s.sessions {
		if sess.EncounterID == encounterID && sess.Active {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (r memSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	sess := model.Session{
		ID:            params.ID,
		EncounterID:   params.EncounterID,
		ParticipantID: params.ParticipantID,
		Role:          params.Role,
		DeviceNonce:   params.DeviceNonce,
		RRTHash:       params.RRTHash,
		RRTExpiresAt:  params.RRTExpiresAt,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.s.sessions[params.ID] = sess
	return &sess, nil
}

func (r memSessionRepo) DeactivateByRole(ctx context.Context, encounterID string, role model.ParticipantRole, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, sess := range r.s.sessions {
		if sess.EncounterID == encounterID && sess.Role == role && sess.Active {
			sess.Active = false
			sess.UpdatedAt = now
			r.s.sessions[id] = sess
			count++
		}
	}
	return count, nil
}

func (r memSessionRepo) DeactivateAll(ctx context.Context, encounterID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, sess := range r.s.sessions {
		if sess.EncounterID == encounterID && sess.Active {
			sess.Active = false
			sess.UpdatedAt = now
			r.s.sessions[id] = sess
			count++
		}
	}
	return count, nil
}

func (r memSessionRepo) Deactivate(ctx context.Context, id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok {
		sess.Active = false
		sess.UpdatedAt = now
		r.s.sessions[id] = sess
	}
	return nil
}

func (r memSessionRepo) ExtendRRT(ctx context.Context, id string, expiresAt, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok && sess.Active {
		sess.RRTExpiresAt = expiresAt
		sess.UpdatedAt = now
		r.s.sessions[id] = sess
	}
	return nil
}

// participant repository

type memParticipantRepo struct{ s *MemStore }

func (r memParticipantRepo) WithTx(tx *sqlx.Tx) repository.ParticipantRepository { return r }

func (r memParticipantRepo) FindByEncounter(ctx context.Context, encounterID string) ([]model.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Participant
	for _, p := range r.s.participants[encounterID] {
		out = append(out, p)
	}
	return out, nil
}

func (r memParticipantRepo) Find(ctx context.Context, encounterID string, role model.ParticipantRole) (*model.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[encounterID][role]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memParticipantRepo) Upsert(ctx context.Context, encounterID string, role model.ParticipantRole, displayName *string, presence model.Presence, now time.Time) (*model.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.participants[encounterID] == nil {
		r.s.participants[encounterID] = make(map[model.ParticipantRole]model.Participant)
	}
	p, ok := r.s.participants[encounterID][role]
	if !ok {
		p = model.Participant{EncounterID: encounterID, Role: role}
	}
	if displayName != nil {
		p.DisplayName = displayName
	}
	p.Presence = presence
	p.LastSeen = now
	r.s.participants[encounterID][role] = p
	return &p, nil
}

func (r memParticipantRepo) SetPresence(ctx context.Context, encounterID string, role model.ParticipantRole, presence model.Presence, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.participants[encounterID][role]; ok {
		p.Presence = presence
		p.LastSeen = now
		r.s.participants[encounterID][role] = p
	}
	return nil
}

// permission repository

type memPermissionRepo struct{ s *MemStore }

func (r memPermissionRepo) WithTx(tx *sqlx.Tx) repository.PermissionRepository { return r }

func (r memPermissionRepo) FindByEncounterID(ctx context.Context, encounterID string) (*model.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	perm, ok := r.s.permissions[encounterID]
	if !ok {
		return nil, nil
	}
	return &perm, nil
}

func (r memPermissionRepo) Create(ctx context.Context, perm model.Permission) (*model.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.permissions[perm.EncounterID] = perm
	return &perm, nil
}

func (r memPermissionRepo) AddPublish(ctx context.Context, encounterID, actor string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	perm, ok := r.s.permissions[encounterID]
	if !ok {
		return nil
	}
	for _, a := range perm.CanPublish {
		if a == actor {
			return nil
		}
	}
	perm.CanPublish = append(perm.CanPublish, actor)
	r.s.permissions[encounterID] = perm
	return nil
}

func (r memPermissionRepo) RemovePublish(ctx context.Context, encounterID, actor string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	perm, ok := r.s.permissions[encounterID]
	if !ok {
		return nil
	}
	kept := perm.CanPublish[:0]
	for _, a := range perm.CanPublish {
		if a != actor {
			kept = append(kept, a)
		}
	}
	perm.CanPublish = kept
	r.s.permissions[encounterID] = perm
	return nil
}

// room repository

type memRoomRepo struct{ s *MemStore }

func (r memRoomRepo) WithTx(tx *sqlx.Tx) repository.RoomRepository { return r }

func (r memRoomRepo) FindByEncounterID(ctx context.Context, encounterID string) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[encounterID]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (r memRoomRepo) Create(ctx context.Context, encounterID, name string) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room := model.Room{EncounterID: encounterID, Name: name, Active: true, CreatedAt: time.Now()}
	r.s.rooms[encounterID] = room
	return &room, nil
}

func (r memRoomRepo) Deactivate(ctx context.Context, encounterID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if room, ok := r.s.rooms[encounterID]; ok {
		room.Active = false
		r.s.rooms[encounterID] = room
	}
	return nil
}

// journal repository

type memJournalRepo struct{ s *MemStore }

func (r memJournalRepo) WithTx(tx *sqlx.Tx) repository.JournalRepository { return r }

func (r memJournalRepo) Append(ctx context.Context, event model.JournalEvent) (*model.JournalEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextEventID++
	event.ID = r.s.nextEventID
	r.s.journal = append(r.s.journal, event)
	return &event, nil
}

func (r memJournalRepo) ListByEncounter(ctx context.Context, encounterID string, limit int) ([]model.JournalEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.JournalEvent
	for i := len(r.s.journal) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.s.journal[i]
		if e.EncounterID != nil && *e.EncounterID == encounterID {
			out = append(out, e)
		}
	}
	return out, nil
}
