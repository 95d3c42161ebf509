package model

import "testing"

func TestEventStatusPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status     EventStatus
		reservable bool
		terminal   bool
	}{
		{StatusUpcoming, true, false},
		{StatusOngoing, true, false},
		{StatusCompleted, false, true},
		{StatusCanceled, false, true},
	}
	for _, tc := range tests {
		if got := tc.status.Reservable(); got != tc.reservable {
			t.Errorf("%s.Reservable() = %v, want %v", tc.status, got, tc.reservable)
		}
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
	}
}

func TestEventRemaining(t *testing.T) {
	t.Parallel()

	e := Event{Capacity: 3, AttendeeCount: 2}
	if e.Remaining() != 1 {
		t.Fatalf("remaining = %d, want 1", e.Remaining())
	}
	e.AttendeeCount = 3
	if e.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0 for a full event", e.Remaining())
	}
}

func TestEventPatchEmpty(t *testing.T) {
	t.Parallel()

	if !(EventPatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
	loc := "Hall B"
	if (EventPatch{Location: &loc}).Empty() {
		t.Fatal("patch with location is not empty")
	}
}
