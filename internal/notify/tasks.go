package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeReminderScan finds reminders coming due and fans out notify tasks.
	TypeReminderScan = "reminder:scan"
	// TypeReminderNotify delivers one reminder notification.
	TypeReminderNotify = "reminder:notify"

	// QueueDefault carries scan and notify tasks.
	QueueDefault = "default"
)

// Enqueuer is the subset of *asynq.Client used to schedule work.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NotifyPayload identifies the reminder to notify about.
type NotifyPayload struct {
	ReminderID string `json:"reminder_id"`
}

// NewScanTask builds the periodic scan task.
func NewScanTask() *asynq.Task {
	return asynq.NewTask(TypeReminderScan, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0), asynq.Timeout(time.Minute))
}

// NewNotifyTask builds a notify task. The reminder id doubles as the task id,
// so a reminder is never queued twice while a previous task is still live.
func NewNotifyTask(reminderID string, maxRetry int) (*asynq.Task, error) {
	reminderID = strings.TrimSpace(reminderID)
	if reminderID == "" {
		return nil, fmt.Errorf("notify: reminder id required")
	}
	payload, err := json.Marshal(NotifyPayload{ReminderID: reminderID})
	if err != nil {
		return nil, err
	}
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return asynq.NewTask(TypeReminderNotify, payload,
		asynq.TaskID(notifyTaskID(reminderID)),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30*time.Second),
	), nil
}

func notifyTaskID(reminderID string) string {
	return "reminder-notify:" + reminderID
}

func parseNotifyPayload(task *asynq.Task) (NotifyPayload, error) {
	var p NotifyPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return NotifyPayload{}, fmt.Errorf("decode %s payload: %w: %w", task.Type(), err, asynq.SkipRetry)
	}
	if strings.TrimSpace(p.ReminderID) == "" {
		return NotifyPayload{}, fmt.Errorf("%s payload missing reminder_id: %w", task.Type(), asynq.SkipRetry)
	}
	return p, nil
}
