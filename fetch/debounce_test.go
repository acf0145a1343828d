package fetch

import (
	"errors"
	"testing"
	"time"

	"github.com/Sargam-11/photocluster"
)

func serverError(status int) error {
	return &photocluster.Error{
		Type:       photocluster.ErrorTypeServer,
		Message:    "upstream failed",
		StatusCode: status,
	}
}

func TestDebouncerSuppressesRepeats(t *testing.T) {
	d := NewDebouncer(time.Minute)
	clock := time.Unix(1700000000, 0)
	d.now = func() time.Time { return clock }

	if !d.Allow(serverError(503)) {
		t.Fatal("first notification should pass")
	}
	if d.Allow(serverError(503)) {
		t.Error("identical notification inside the window should be suppressed")
	}

	// A different status code is a different notification.
	if !d.Allow(serverError(502)) {
		t.Error("distinct notification should pass")
	}

	clock = clock.Add(2 * time.Minute)
	if !d.Allow(serverError(503)) {
		t.Error("notification after the window should pass again")
	}
}

func TestDebouncerKeysByUserFacingIdentity(t *testing.T) {
	d := NewDebouncer(time.Minute)

	// Two distinct raw errors that render identically for the user count
	// as the same notification.
	if !d.Allow(errors.New("dial tcp: connection refused")) {
		t.Fatal("first generic error should pass")
	}
	if d.Allow(errors.New("unexpected EOF")) {
		t.Error("second generic error maps to the same copy and should be suppressed")
	}
}

func TestDebouncerNilError(t *testing.T) {
	d := NewDebouncer(time.Minute)
	if d.Allow(nil) {
		t.Error("nil error should never be shown")
	}
}

func TestDebouncerZeroWindowDisablesSuppression(t *testing.T) {
	d := NewDebouncer(0)
	if !d.Allow(serverError(500)) || !d.Allow(serverError(500)) {
		t.Error("zero window should allow every notification")
	}
}
