package domain

import "testing"

func TestProcessingStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ProcessingStatus
		want     bool
	}{
		{StatusPending, StatusPending, true},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusCompleted, StatusCompleted, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("%s -> %s: got %v want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestProcessingStatusValid(t *testing.T) {
	for _, s := range []ProcessingStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if ProcessingStatus("blurred").Valid() {
		t.Fatalf("unexpected valid status")
	}
	if StatusProcessing.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Fatalf("terminal classification wrong")
	}
}

func TestScoresMean(t *testing.T) {
	if got := (Scores{Selection: 8, Friendliness: 7, Creativity: 9}).Mean(); got != 8 {
		t.Fatalf("expected 8, got %v", got)
	}
}

func TestUserHasRole(t *testing.T) {
	u := User{ID: "u1", Roles: []Role{RoleBuyer, RoleSeller}}
	if !u.HasRole(RoleSeller) {
		t.Fatalf("expected seller role")
	}
	if u.HasRole(RoleOrganizer) {
		t.Fatalf("unexpected organizer role")
	}
}
