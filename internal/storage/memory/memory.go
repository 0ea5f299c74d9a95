// Package memory provides an in-memory implementation of storage.LedgerStore,
// used by tests and by the server when no database path is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/settleup/internal/apperr"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

var _ storage.LedgerStore = (*Store)(nil)

// Store keeps every record in maps guarded by one lock. Records are copied
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	expenses      map[string]*models.SharedExpense
	settlements   map[string]*models.Settlement
	groups        map[string]*models.Group
	relationships map[[2]string]*models.Relationship
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		expenses:      make(map[string]*models.SharedExpense),
		settlements:   make(map[string]*models.Settlement),
		groups:        make(map[string]*models.Group),
		relationships: make(map[[2]string]*models.Relationship),
	}
}

func (s *Store) FetchSharedExpenses(_ context.Context, participants []string, filter storage.Filter) ([]*models.SharedExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.SharedExpense, 0)
	for _, e := range s.expenses {
		if !e.Active || !filter.MatchesExpense(e) || !involvesAny(e, participants) {
			continue
		}
		result = append(result, e.Clone())
	}
	sortExpenses(result)
	return result, nil
}

func (s *Store) FetchConfirmedSettlements(_ context.Context, participants []string, filter storage.Filter) ([]*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Settlement, 0)
	for _, st := range s.settlements {
		if st.Status != models.SettlementConfirmed || !filter.MatchesSettlement(st) {
			continue
		}
		if len(participants) > 0 && !contains(participants, st.Payer) && !contains(participants, st.Recipient) {
			continue
		}
		result = append(result, cloneSettlement(st))
	}
	sortSettlements(result)
	return result, nil
}

func (s *Store) CreateExpense(_ context.Context, e *models.SharedExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt
	if e.Date.IsZero() {
		e.Date = e.CreatedAt
	}
	s.expenses[e.ID] = e.Clone()
	return nil
}

func (s *Store) GetExpense(_ context.Context, id string) (*models.SharedExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return nil, apperr.NotFound("expense", id)
	}
	return e.Clone(), nil
}

func (s *Store) UpdateExpense(_ context.Context, e *models.SharedExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[e.ID]; !ok {
		return apperr.NotFound("expense", e.ID)
	}
	e.UpdatedAt = time.Now()
	s.expenses[e.ID] = e.Clone()
	return nil
}

func (s *Store) SoftDeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok {
		return apperr.NotFound("expense", id)
	}
	e.Active = false
	e.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkParticipantSettled(_ context.Context, expenseID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[expenseID]
	if !ok {
		return apperr.NotFound("expense", expenseID)
	}
	if e.MarkSettled(userID, at) {
		e.UpdatedAt = time.Now()
	}
	return nil
}

func (s *Store) CreateSettlement(_ context.Context, st *models.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	s.settlements[st.ID] = cloneSettlement(st)
	return nil
}

func (s *Store) GetSettlement(_ context.Context, id string) (*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.settlements[id]
	if !ok {
		return nil, apperr.NotFound("settlement", id)
	}
	return cloneSettlement(st), nil
}

func (s *Store) TransitionSettlement(_ context.Context, st *models.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.settlements[st.ID]
	if !ok {
		return apperr.NotFound("settlement", st.ID)
	}
	if current.Status != models.SettlementPending {
		return storage.ErrConflict
	}
	s.settlements[st.ID] = cloneSettlement(st)
	return nil
}

func (s *Store) ListSettlements(_ context.Context, q storage.SettlementQuery) ([]*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Settlement, 0)
	for _, st := range s.settlements {
		if !q.MatchesSettlement(st) {
			continue
		}
		if q.Status != "" && st.Status != q.Status {
			continue
		}
		if q.Participant != "" && st.Payer != q.Participant && st.Recipient != q.Participant {
			continue
		}
		result = append(result, cloneSettlement(st))
	}
	sortSettlements(result)
	return result, nil
}

func (s *Store) CreateGroup(_ context.Context, g *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	c := *g
	c.Members = append([]string(nil), g.Members...)
	s.groups[g.ID] = &c
	return nil
}

func (s *Store) GetGroup(_ context.Context, id string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, apperr.NotFound("group", id)
	}
	c := *g
	c.Members = append([]string(nil), g.Members...)
	return &c, nil
}

func (s *Store) PutRelationship(_ context.Context, r *models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.UserA, r.UserB = models.CanonicalPair(r.UserA, r.UserB)
	key := [2]string{r.UserA, r.UserB}
	now := time.Now()
	if existing, ok := s.relationships[key]; ok {
		r.CreatedAt = existing.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	c := *r
	s.relationships[key] = &c
	return nil
}

func (s *Store) GetRelationship(_ context.Context, a, b string) (*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, b = models.CanonicalPair(a, b)
	r, ok := s.relationships[[2]string{a, b}]
	if !ok {
		return nil, apperr.NotFound("relationship", a+"/"+b)
	}
	c := *r
	return &c, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func involvesAny(e *models.SharedExpense, participants []string) bool {
	if len(participants) == 0 {
		return true
	}
	for _, p := range participants {
		if e.Involves(p) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func cloneSettlement(s *models.Settlement) *models.Settlement {
	c := *s
	c.ExpenseIDs = append([]string(nil), s.ExpenseIDs...)
	return &c
}

func sortExpenses(list []*models.SharedExpense) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].ID < list[j].ID
	})
}

func sortSettlements(list []*models.Settlement) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
