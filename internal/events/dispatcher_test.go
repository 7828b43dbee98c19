package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mahara-dz/mahara-api/internal/events"
)

func TestInMemoryDispatcher_Publish(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	errFirst := errors.New("first failed")

	var calls []string
	d.Subscribe(events.EventUserRegistered, func(_ context.Context, e events.Event) error {
		calls = append(calls, "first:"+e.Email)
		return errFirst
	})
	d.Subscribe(events.EventUserRegistered, func(_ context.Context, e events.Event) error {
		calls = append(calls, "second:"+e.Email)
		return nil
	})
	d.Subscribe(events.EventUserLoggedIn, func(context.Context, events.Event) error {
		calls = append(calls, "login")
		return nil
	})

	err := d.Publish(context.Background(), events.Event{Type: events.EventUserRegistered, Email: "a@b.dz"})
	if !errors.Is(err, errFirst) {
		t.Errorf("Publish() error = %v, want %v", err, errFirst)
	}
	if len(calls) != 2 || calls[0] != "first:a@b.dz" || calls[1] != "second:a@b.dz" {
		t.Errorf("calls = %v", calls)
	}

	if err := d.Publish(context.Background(), events.Event{Type: events.EventPasswordReset}); err != nil {
		t.Errorf("Publish() without listeners error = %v", err)
	}
}

func TestInMemoryDispatcher_StampsEvent(t *testing.T) {
	d := events.NewInMemoryDispatcher()

	var got events.Event
	d.Subscribe(events.EventUserLoggedOut, func(_ context.Context, e events.Event) error {
		got = e
		return nil
	})

	if err := d.Publish(context.Background(), events.Event{Type: events.EventUserLoggedOut, UserID: 7}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got.ID == "" || got.Timestamp.IsZero() {
		t.Errorf("event not stamped: %+v", got)
	}
	if got.UserID != 7 {
		t.Errorf("UserID = %d, want 7", got.UserID)
	}
}

func TestInMemoryDispatcher_RecoversPanic(t *testing.T) {
	d := events.NewInMemoryDispatcher()

	reached := false
	d.Subscribe(events.EventPasswordReset, func(context.Context, events.Event) error {
		panic("boom")
	})
	d.Subscribe(events.EventPasswordReset, func(context.Context, events.Event) error {
		reached = true
		return nil
	})

	if err := d.Publish(context.Background(), events.Event{Type: events.EventPasswordReset}); err == nil {
		t.Error("expected error from panicking handler")
	}
	if !reached {
		t.Error("second handler was not invoked")
	}
}
