package reasoning

import (
	"context"
	"strings"
	"testing"

	"github.com/clinbridge/clinbridge/internal/canonical"
)

func TestDecision_Valid(t *testing.T) {
	yes := true
	cases := []struct {
		name string
		d    *Decision
		want bool
	}{
		{"nil", nil, false},
		{"missing urgency", &Decision{RequiresReview: &yes}, false},
		{"missing review", &Decision{Urgency: canonical.UrgencyRoutine}, false},
		{"complete", &Decision{Urgency: canonical.UrgencyStat, RequiresReview: &yes}, true},
	}

	for _, tc := range cases {
		if got := tc.d.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRuleEngine_CriticalPages(t *testing.T) {
	msg := canonical.New(canonical.TypeCriticalAlert)
	msg.Content.Subject = "CRITICAL lab results for John Doe"
	msg.Content.Urgency = canonical.UrgencyCritical

	d, err := NewRuleEngine().Decide(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Valid() {
		t.Fatal("expected valid decision")
	}
	if d.Action != "page_provider" {
		t.Errorf("expected page_provider, got %q", d.Action)
	}
	if !*d.RequiresReview {
		t.Error("critical decision must require review")
	}
	if d.Urgency != canonical.UrgencyCritical {
		t.Errorf("expected critical urgency preserved, got %q", d.Urgency)
	}
	if !strings.Contains(d.ResponseText, "CRITICAL") {
		t.Errorf("unexpected response text: %q", d.ResponseText)
	}
}

func TestRuleEngine_RoutineNotificationFiles(t *testing.T) {
	msg := canonical.New(canonical.TypeGeneralNotification)
	msg.Content.Subject = "Records request completed"

	d, err := NewRuleEngine().Decide(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Action != "file" {
		t.Errorf("expected file, got %q", d.Action)
	}
	if *d.RequiresReview {
		t.Error("routine notification should not require review")
	}
}

func TestRuleEngine_RoutineClinicalStillReviewed(t *testing.T) {
	msg := canonical.New(canonical.TypeMedicationRefill)
	msg.Content.Subject = "Medication request: Lisinopril"

	d, _ := NewRuleEngine().Decide(context.Background(), msg)

	if !*d.RequiresReview {
		t.Error("clinical message types must stay flagged for review")
	}
	if d.Action != "notify_provider" {
		t.Errorf("expected notify_provider, got %q", d.Action)
	}
}
