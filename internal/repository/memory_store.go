package repository

import (
	"context"
	"sync"

	"Wonderland/internal/domain/models"
	domrepo "Wonderland/internal/domain/repository"
)

// MemoryJournal keeps the journal in process. It backs local runs without
// ClickHouse and the tests of its callers.
type MemoryJournal struct {
	mu       sync.RWMutex
	events   []models.Event
	markets  []models.MarketSnapshot
	insights []models.Insight
	holdings []models.HoldingSnapshot
	actions  []models.PortfolioAction
	messages []models.OutgoingMessage
}

var _ domrepo.Journal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal { return &MemoryJournal{} }

func (m *MemoryJournal) Init(context.Context) error   { return nil }
func (m *MemoryJournal) Health(context.Context) error { return nil }
func (m *MemoryJournal) Close() error                 { return nil }

func (m *MemoryJournal) AppendEvents(_ context.Context, events []models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MemoryJournal) SaveMarketSnapshot(_ context.Context, s *models.MarketSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = append(m.markets, *s)
	return nil
}

func (m *MemoryJournal) SaveInsight(_ context.Context, in *models.Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights = append(m.insights, *in)
	return nil
}

func (m *MemoryJournal) SaveHoldingSnapshot(_ context.Context, s *models.HoldingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings = append(m.holdings, *s)
	return nil
}

func (m *MemoryJournal) SaveAction(_ context.Context, a *models.PortfolioAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, *a)
	return nil
}

func (m *MemoryJournal) SaveMessage(_ context.Context, msg *models.OutgoingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MemoryJournal) LatestMarketSnapshot(context.Context) (*models.MarketSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latest(m.markets)
}

func (m *MemoryJournal) LatestInsight(context.Context) (*models.Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latest(m.insights)
}

func (m *MemoryJournal) LatestHoldingSnapshot(context.Context) (*models.HoldingSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return latest(m.holdings)
}

func (m *MemoryJournal) RecentActions(_ context.Context, limit int) ([]models.PortfolioAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.actions, limit), nil
}

func (m *MemoryJournal) RecentEvents(_ context.Context, limit int) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.events, limit), nil
}

// Messages returns every stored outgoing message, oldest first.
func (m *MemoryJournal) Messages() []models.OutgoingMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.OutgoingMessage(nil), m.messages...)
}

func latest[T any](items []T) (*T, error) {
	if len(items) == 0 {
		return nil, domrepo.ErrNotFound
	}
	v := items[len(items)-1]
	return &v, nil
}

func newestFirst[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i])
	}
	return out
}

// MemoryStore implements TaskStore and InstructStore in process.
type MemoryStore struct {
	mu        sync.RWMutex
	tasks     map[string]models.TaskRecord
	order     []string
	instructs []models.Instruct
}

var (
	_ domrepo.TaskStore     = (*MemoryStore)(nil)
	_ domrepo.InstructStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]models.TaskRecord)}
}

func (s *MemoryStore) SaveTask(_ context.Context, rec models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.tasks[rec.ID] = rec
	return nil
}

func (s *MemoryStore) RecentTasks(_ context.Context, limit int) ([]models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]models.TaskRecord, 0, len(s.order))
	for _, id := range s.order {
		recs = append(recs, s.tasks[id])
	}
	return newestFirst(recs, limit), nil
}

func (s *MemoryStore) AddInstruct(_ context.Context, in *models.Instruct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructs = append(s.instructs, *in)
	return nil
}

func (s *MemoryStore) LatestInstruct(_ context.Context, kind models.InstructKind) (*models.Instruct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.instructs) - 1; i >= 0; i-- {
		if s.instructs[i].Kind == kind {
			in := s.instructs[i]
			return &in, nil
		}
	}
	return nil, domrepo.ErrNotFound
}
