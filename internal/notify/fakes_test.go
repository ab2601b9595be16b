package notify_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/reminder"
)

type dueStore struct {
	mu       sync.Mutex
	rows     map[string]reminder.Due
	notified map[string]time.Time
	listErr  error
}

func newDueStore(rows ...reminder.Due) *dueStore {
	s := &dueStore{rows: map[string]reminder.Due{}, notified: map[string]time.Time{}}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *dueStore) Create(context.Context, reminder.Reminder) (reminder.Reminder, error) {
	panic("not used")
}

func (s *dueStore) List(context.Context, string, int) ([]reminder.Reminder, error) {
	panic("not used")
}

func (s *dueStore) Update(context.Context, string, string, reminder.Patch) (reminder.Reminder, error) {
	panic("not used")
}

func (s *dueStore) Delete(context.Context, string, string) error { panic("not used") }

func (s *dueStore) ListDue(_ context.Context, until time.Time, limit int) ([]reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	cutoff := until.Format(reminder.DateLayout)
	out := []reminder.Reminder{}
	for _, r := range s.rows {
		if r.Completed || r.NotifiedAt != nil || r.DueDate > cutoff {
			continue
		}
		out = append(out, r.Reminder)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate < out[j].DueDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *dueStore) GetDue(_ context.Context, id string) (reminder.Due, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return reminder.Due{}, common.ErrNotFound
	}
	return r, nil
}

func (s *dueStore) MarkNotified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	if r.NotifiedAt == nil {
		r.NotifiedAt = &at
		s.rows[id] = r
		s.notified[id] = at
	}
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	seen  map[string]bool
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen == nil {
		q.seen = map[string]bool{}
	}
	key := string(task.Payload())
	if q.seen[key] {
		return nil, asynq.ErrTaskIDConflict
	}
	q.seen[key] = true
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload()}, nil
}

type recordingChannel struct {
	name string
	err  error
	mu   sync.Mutex
	sent []reminder.Due
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, due reminder.Due) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, due)
	return nil
}

func due(id, date string) reminder.Due {
	return reminder.Due{
		Reminder: reminder.Reminder{
			ID:       id,
			UserID:   "user-1",
			Title:    "File annual return",
			DueDate:  date,
			Category: reminder.CategoryFiling,
		},
		UserName:  "Ada",
		UserEmail: "ada@example.com",
	}
}
