// Package notify delivers due alarms to the user.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	appLog "remhind/internal/log"
	"remhind/internal/model"
)

// Dispatcher delivers a single alarm.
type Dispatcher interface {
	Dispatch(ctx context.Context, a model.Alarm) error
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(ctx context.Context, a model.Alarm) error

func (f DispatcherFunc) Dispatch(ctx context.Context, a model.Alarm) error {
	return f(ctx, a)
}

// LogDispatcher writes every alarm to the application log. Each delivery
// gets a fresh id so repeated task reminders can be told apart.
type LogDispatcher struct {
	// NewID overrides the delivery id source; nil means uuid.NewString.
	NewID func() string
}

func (d LogDispatcher) Dispatch(ctx context.Context, a model.Alarm) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	newID := d.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	appLog.Info("reminder",
		"delivery", newID(),
		"uid", a.Event,
		"message", a.Message,
		"alarm", a.Date.Format(time.RFC3339),
		"due", a.DueDate.Format(time.RFC3339),
		"primary", a.Primary(),
	)
	return nil
}
