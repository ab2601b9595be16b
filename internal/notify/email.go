package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/reminder"
)

// EmailChannel mails the reminder owner.
type EmailChannel struct {
	Sender common.EmailSender
	From   string
}

func (EmailChannel) Name() string { return "email" }

// Send implements Channel.
func (c EmailChannel) Send(ctx context.Context, due reminder.Due) error {
	if c.Sender == nil {
		return errors.New("email sender not configured")
	}
	if strings.TrimSpace(due.UserEmail) == "" {
		return nil
	}
	return c.Sender.Send(ctx, ReminderEmail(c.From, due))
}

// ReminderEmail renders the plain-text notification for due.
func ReminderEmail(from string, due reminder.Due) common.Email {
	var b strings.Builder
	name := strings.TrimSpace(due.UserName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Your %s reminder \"%s\" is due on %s.\n", due.Category, due.Title, due.DueDate)
	if d := strings.TrimSpace(due.Description); d != "" {
		fmt.Fprintf(&b, "\n%s\n", d)
	}
	b.WriteString("\nMark it completed in the tax estimator once you are done.\n")
	return common.Email{
		From:    from,
		To:      due.UserEmail,
		Subject: fmt.Sprintf("Reminder: %s due %s", due.Title, due.DueDate),
		Text:    b.String(),
	}
}
