package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]Reminder
}

func newMemStore() *memStore { return &memStore{rows: map[string]Reminder{}} }

func (m *memStore) Create(_ context.Context, r Reminder) (Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	m.rows[r.ID] = r
	return r, nil
}

func (m *memStore) List(_ context.Context, userID string, limit int) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Reminder{}
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate < out[j].DueDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, userID, id string, p Patch) (Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return Reminder{}, common.ErrNotFound
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.DueDate != nil {
		if due := p.DueDate.Format(DateLayout); due != r.DueDate {
			r.DueDate = due
			r.NotifiedAt = nil
		}
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Completed != nil {
		r.Completed = *p.Completed
	}
	r.UpdatedAt = time.Now().UTC()
	m.rows[id] = r
	return r, nil
}

func (m *memStore) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return common.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) ListDue(_ context.Context, until time.Time, limit int) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := until.Format(DateLayout)
	out := []Reminder{}
	for _, r := range m.rows {
		if !r.Completed && r.NotifiedAt == nil && r.DueDate <= cutoff {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate < out[j].DueDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetDue(_ context.Context, id string) (Due, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Due{}, common.ErrNotFound
	}
	return Due{Reminder: r, UserName: "Ada", UserEmail: "ada@example.com"}, nil
}

func (m *memStore) MarkNotified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	if r.NotifiedAt == nil {
		r.NotifiedAt = &at
		m.rows[id] = r
	}
	return nil
}
