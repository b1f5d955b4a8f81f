package drafts

import (
	"testing"

	"github.com/example/ridebook/internal/booking"
)

func TestDecodeFillsDefaults(t *testing.T) {
	var d booking.Draft
	if err := decode([]byte(`{"date":"2025-05-01","currentStep":2}`), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Passengers != 1 || d.PaymentMethod != booking.PaymentCard {
		t.Fatalf("defaults missing: %+v", d)
	}
	if d.FareEstimates == nil || d.Date != "2025-05-01" || d.CurrentStep != booking.StepPayment {
		t.Fatalf("unexpected draft: %+v", d)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var d booking.Draft
	if err := decode([]byte(`not json`), &d); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFreshDraftRoundTrip(t *testing.T) {
	raw, err := freshDraft()
	if err != nil {
		t.Fatalf("freshDraft: %v", err)
	}
	var d booking.Draft
	if err := decode(raw, &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Started() || d.IsComplete || d.CurrentStep != booking.StepCategory {
		t.Fatalf("fresh draft not pristine: %+v", d)
	}
}
