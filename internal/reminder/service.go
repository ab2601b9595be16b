// Package reminder manages tax filing and payment reminders.
package reminder

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/taxestimator-api/internal/common"
)

const maxList = 100

// Service applies validation and ownership rules on top of a Store.
type Service struct {
	Store Store
}

// CreateInput is the payload of a new reminder.
type CreateInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	DueDate     string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Category    string `json:"category" validate:"required,oneof=filing payment other"`
}

// UpdateInput is a partial update. At least one field must be present.
type UpdateInput struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Category    *string `json:"category" validate:"omitempty,oneof=filing payment other"`
	Completed   *bool   `json:"completed"`
}

// Create validates in and stores a new reminder for userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Reminder, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if appErr := common.ValidateStruct(in); appErr != nil {
		return Reminder{}, appErr
	}
	return s.Store.Create(ctx, Reminder{
		UserID:      userID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		Category:    Category(in.Category),
	})
}

// List returns the user's reminders ordered by due date.
func (s *Service) List(ctx context.Context, userID string) ([]Reminder, error) {
	return s.Store.List(ctx, userID, maxList)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (Reminder, error) {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if in.Category != nil {
		c := strings.ToLower(strings.TrimSpace(*in.Category))
		in.Category = &c
	}
	if appErr := common.ValidateStruct(in); appErr != nil {
		return Reminder{}, appErr
	}
	patch := Patch{Title: in.Title, Completed: in.Completed}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		patch.Description = &d
	}
	if in.DueDate != nil {
		due, err := time.Parse(DateLayout, *in.DueDate)
		if err != nil {
			return Reminder{}, common.ValidationError(map[string]string{"due_date": "must be a date formatted 2006-01-02"})
		}
		patch.DueDate = &due
	}
	if in.Category != nil {
		c := Category(*in.Category)
		patch.Category = &c
	}
	if patch.Empty() {
		return Reminder{}, common.NewAppError("NO_FIELDS", "no fields to update", http.StatusBadRequest, nil)
	}
	out, err := s.Store.Update(ctx, userID, id, patch)
	if errors.Is(err, common.ErrNotFound) {
		return Reminder{}, common.NotFound("reminder")
	}
	return out, err
}

// Delete removes a reminder owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	err := s.Store.Delete(ctx, userID, id)
	if errors.Is(err, common.ErrNotFound) {
		return common.NotFound("reminder")
	}
	return err
}
