package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/db"
)

// DateLayout is the wire and storage format of due dates.
const DateLayout = "2006-01-02"

// Category groups reminders.
type Category string

const (
	CategoryFiling  Category = "filing"
	CategoryPayment Category = "payment"
	CategoryOther   Category = "other"
)

// Reminder is a filing or payment deadline owned by one user.
type Reminder struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     string     `json:"due_date"`
	Category    Category   `json:"category"`
	Completed   bool       `json:"completed"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Patch carries the fields of a partial update. Nil means unchanged.
type Patch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Category    *Category
	Completed   *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil && p.Category == nil && p.Completed == nil
}

// Due is a reminder joined with its owner's contact details.
type Due struct {
	Reminder
	UserName  string
	UserEmail string
}

// Store persists reminders. Owner-scoped lookups return common.ErrNotFound for foreign rows.
type Store interface {
	Create(ctx context.Context, r Reminder) (Reminder, error)
	List(ctx context.Context, userID string, limit int) ([]Reminder, error)
	Update(ctx context.Context, userID, id string, p Patch) (Reminder, error)
	Delete(ctx context.Context, userID, id string) error
	// ListDue returns incomplete, un-notified reminders due on or before until.
	ListDue(ctx context.Context, until time.Time, limit int) ([]Reminder, error)
	GetDue(ctx context.Context, id string) (Due, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	DB db.DBTX
}

const reminderColumns = `id, user_id, title, description, due_date, category, completed, notified_at, created_at, updated_at`

func scanReminder(row pgx.Row, extra ...any) (Reminder, error) {
	var (
		r          Reminder
		id, owner  pgtype.UUID
		due        pgtype.Date
		category   string
		notifiedAt pgtype.Timestamptz
	)
	dest := append([]any{&id, &owner, &r.Title, &r.Description, &due, &category, &r.Completed, &notifiedAt, &r.CreatedAt, &r.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Reminder{}, err
	}
	r.ID = db.UUIDString(id)
	r.UserID = db.UUIDString(owner)
	if due.Valid {
		r.DueDate = due.Time.Format(DateLayout)
	}
	r.Category = Category(category)
	if notifiedAt.Valid {
		t := notifiedAt.Time
		r.NotifiedAt = &t
	}
	return r, nil
}

const insertReminder = `INSERT INTO reminders (user_id, title, description, due_date, category)
	VALUES ($1, $2, $3, $4, $5) RETURNING ` + reminderColumns

func (s PGStore) Create(ctx context.Context, r Reminder) (Reminder, error) {
	uid, ok := db.ParseUUID(r.UserID)
	if !ok {
		return Reminder{}, fmt.Errorf("create reminder: invalid user id %q", r.UserID)
	}
	due, err := time.Parse(DateLayout, r.DueDate)
	if err != nil {
		return Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	out, err := scanReminder(s.DB.QueryRow(ctx, insertReminder, uid, r.Title, r.Description, due, string(r.Category)))
	if err != nil {
		return Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	return out, nil
}

const listReminders = `SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = $1
	ORDER BY due_date ASC, created_at ASC LIMIT $2`

func (s PGStore) List(ctx context.Context, userID string, limit int) ([]Reminder, error) {
	uid, ok := db.ParseUUID(userID)
	if !ok {
		return []Reminder{}, nil
	}
	return s.query(ctx, listReminders, uid, int32(limit))
}

const updateReminder = `UPDATE reminders SET
	title = COALESCE($3, title),
	description = COALESCE($4, description),
	notified_at = CASE WHEN $5::date IS NOT NULL AND $5::date <> due_date THEN NULL ELSE notified_at END,
	due_date = COALESCE($5::date, due_date),
	category = COALESCE($6, category),
	completed = COALESCE($7, completed),
	updated_at = now()
	WHERE id = $1 AND user_id = $2
	RETURNING ` + reminderColumns

func (s PGStore) Update(ctx context.Context, userID, id string, p Patch) (Reminder, error) {
	rid, ok := db.ParseUUID(id)
	if !ok {
		return Reminder{}, common.ErrNotFound
	}
	uid, ok := db.ParseUUID(userID)
	if !ok {
		return Reminder{}, common.ErrNotFound
	}
	var category *string
	if p.Category != nil {
		c := string(*p.Category)
		category = &c
	}
	out, err := scanReminder(s.DB.QueryRow(ctx, updateReminder, rid, uid, p.Title, p.Description, p.DueDate, category, p.Completed))
	if err != nil {
		if db.IsNoRows(err) {
			return Reminder{}, common.ErrNotFound
		}
		return Reminder{}, fmt.Errorf("update reminder: %w", err)
	}
	return out, nil
}

const deleteReminder = `DELETE FROM reminders WHERE id = $1 AND user_id = $2`

func (s PGStore) Delete(ctx context.Context, userID, id string) error {
	rid, ok := db.ParseUUID(id)
	if !ok {
		return common.ErrNotFound
	}
	uid, ok := db.ParseUUID(userID)
	if !ok {
		return common.ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, deleteReminder, rid, uid)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

const listDue = `SELECT ` + reminderColumns + ` FROM reminders
	WHERE NOT completed AND notified_at IS NULL AND due_date <= $1::date
	ORDER BY due_date ASC LIMIT $2`

func (s PGStore) ListDue(ctx context.Context, until time.Time, limit int) ([]Reminder, error) {
	return s.query(ctx, listDue, until, int32(limit))
}

const getDue = `SELECT r.id, r.user_id, r.title, r.description, r.due_date, r.category, r.completed,
	r.notified_at, r.created_at, r.updated_at, u.name, u.email
	FROM reminders r JOIN users u ON u.id = r.user_id WHERE r.id = $1`

func (s PGStore) GetDue(ctx context.Context, id string) (Due, error) {
	rid, ok := db.ParseUUID(id)
	if !ok {
		return Due{}, common.ErrNotFound
	}
	var d Due
	r, err := scanReminder(s.DB.QueryRow(ctx, getDue, rid), &d.UserName, &d.UserEmail)
	if err != nil {
		if db.IsNoRows(err) {
			return Due{}, common.ErrNotFound
		}
		return Due{}, fmt.Errorf("get reminder: %w", err)
	}
	d.Reminder = r
	return d, nil
}

const markNotified = `UPDATE reminders SET notified_at = $2 WHERE id = $1 AND notified_at IS NULL`

func (s PGStore) MarkNotified(ctx context.Context, id string, at time.Time) error {
	rid, ok := db.ParseUUID(id)
	if !ok {
		return common.ErrNotFound
	}
	if _, err := s.DB.Exec(ctx, markNotified, rid, at); err != nil {
		return fmt.Errorf("mark reminder notified: %w", err)
	}
	return nil
}

func (s PGStore) query(ctx context.Context, sql string, args ...any) ([]Reminder, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	out := []Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
