package booking

import (
	"testing"
	"time"

	"github.com/example/ridebook/internal/forms"
)

func TestSearchFormValidate(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	ok := SearchForm{
		Pickup:      "Plaça Catalunya, Barcelona",
		Destination: "Barcelona Airport T1",
		Date:        "2025-06-10",
		Time:        "11:30",
		Passengers:  2,
	}
	if err := ok.Validate(now, time.UTC, 8); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}

	bad := SearchForm{Pickup: "short", Date: "2025-06-09", Time: "11:30", Passengers: 9}
	err := bad.Validate(now, time.UTC, 8)
	fields := forms.Fields(err)
	for _, f := range []string{"pickup", "destination", "date", "passengers"} {
		if fields[f] == "" {
			t.Fatalf("missing error for %s: %v", f, err)
		}
	}
	if fields["date"] != "Pickup date cannot be in the past." {
		t.Fatalf("date message = %q", fields["date"])
	}
	if _, has := fields["time"]; has {
		t.Fatalf("unexpected time error: %v", fields)
	}
}

func TestContactFormValidate(t *testing.T) {
	f := ContactForm{Name: " Ana Puig ", Phone: "+34 600 123 456", Email: "ana@example.com"}
	if err := f.Validate(); err != nil {
		t.Fatalf("valid contact rejected: %v", err)
	}
	if f.Contact().Name != "Ana Puig" {
		t.Fatalf("name not trimmed: %q", f.Contact().Name)
	}

	f = ContactForm{Name: "", Phone: "call me", Email: "nope"}
	fields := forms.Fields(f.Validate())
	if fields["name"] != "Please enter your full name." {
		t.Fatalf("name message = %q", fields["name"])
	}
	if fields["phone"] == "" || fields["email"] == "" {
		t.Fatalf("expected phone and email errors: %v", fields)
	}
}
