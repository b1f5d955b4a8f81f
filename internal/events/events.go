// Package events announces booking lifecycle changes: each event is kept
// in the booking_events table and, when a broker is configured, published
// to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/booking"
	"github.com/example/ridebook/internal/db"
)

type Kind string

const (
	Confirmed Kind = "booking.confirmed"
	Cancelled Kind = "booking.cancelled"
)

type Event struct {
	Kind        Kind                    `json:"kind"`
	DraftID     uuid.UUID               `json:"draft_id"`
	BookingRef  string                  `json:"booking_ref,omitempty"`
	Pickup      string                  `json:"pickup,omitempty"`
	Destination string                  `json:"destination,omitempty"`
	Scheduled   string                  `json:"scheduled,omitempty"`
	Passengers  int                     `json:"passengers"`
	Vehicle     booking.VehicleCategory `json:"vehicle,omitempty"`
	Fare        float64                 `json:"fare"`
	Payment     booking.PaymentMethod   `json:"payment_method,omitempty"`
	Email       string                  `json:"email,omitempty"`
	At          time.Time               `json:"at"`
}

// FromDraft builds an event from the draft as it stood when the flow ended.
func FromDraft(kind Kind, id uuid.UUID, d booking.Draft, at time.Time) Event {
	e := Event{
		Kind:       kind,
		DraftID:    id,
		BookingRef: d.BookingRef,
		Passengers: d.Passengers,
		Vehicle:    d.SelectedVehicle,
		Fare:       d.SelectedFare,
		Payment:    d.PaymentMethod,
		Email:      d.Contact.Email,
		At:         at.UTC(),
	}
	if d.Pickup != nil {
		e.Pickup = d.Pickup.Label()
	}
	if d.Destination != nil {
		e.Destination = d.Destination.Label()
	}
	if d.Date != "" {
		e.Scheduled = d.Date + " " + d.Time
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Journal writes events to Postgres.
type Journal struct{ db *db.DB }

func NewJournal(d *db.DB) *Journal { return &Journal{db: d} }

func (j *Journal) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return j.db.Exec(ctx, `INSERT INTO booking_events(draft_id, kind, booking_ref, payload) VALUES ($1,$2,$3,$4)`,
		e.DraftID, string(e.Kind), e.BookingRef, payload)
}

// Notifier fans an event out to every publisher. Failures are logged and
// never reach the caller: a lost notification must not break the booking page.
type Notifier struct {
	log  *zap.Logger
	pubs []Publisher
}

func NewNotifier(log *zap.Logger, pubs ...Publisher) *Notifier {
	return &Notifier{log: log, pubs: pubs}
}

func (n *Notifier) Notify(ctx context.Context, e Event) {
	if n == nil {
		return
	}
	for _, p := range n.pubs {
		if err := p.Publish(ctx, e); err != nil {
			n.log.Warn("publish booking event",
				zap.String("kind", string(e.Kind)),
				zap.String("draft_id", e.DraftID.String()),
				zap.Error(err))
		}
	}
}
