package booking

import (
	"fmt"
	"strings"
	"time"
)

type VehicleCategory string

const (
	Economy  VehicleCategory = "economy"
	Standard VehicleCategory = "standard"
	Premium  VehicleCategory = "premium"
	Van      VehicleCategory = "van"
)

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentWallet PaymentMethod = "wallet"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentCard, PaymentCash, PaymentWallet:
		return m, true
	}
	return "", false
}

// Place is a resolved address as returned by the places lookup.
type Place struct {
	FormattedAddress string   `json:"formattedAddress"`
	Name             string   `json:"name,omitempty"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	Types            []string `json:"types,omitempty"`
}

// Label is the "name-address" form the checkout service expects.
func (p *Place) Label() string {
	if p == nil {
		return ""
	}
	return p.Name + "-" + p.FormattedAddress
}

// DisplayName prefers the short place name over the full address.
func (p *Place) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.FormattedAddress
}

func (p *Place) HasType(t string) bool {
	if p == nil {
		return false
	}
	for _, pt := range p.Types {
		if pt == t {
			return true
		}
	}
	return false
}

type FareEstimate struct {
	Category      VehicleCategory `json:"category"`
	EstimatedFare float64         `json:"estimated_fare"`
}

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Notes string `json:"notes,omitempty"`
}

func (c Contact) IsZero() bool {
	return c.Name == "" && c.Phone == "" && c.Email == "" && c.Notes == ""
}

type Step int

const (
	StepCategory Step = iota
	StepContact
	StepPayment
	StepConfirmation
)

const LastStep = StepConfirmation

var stepNames = [...]string{"category", "contact", "payment", "confirmation"}

func (s Step) String() string {
	if s < StepCategory || s > LastStep {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Title is the label shown in the progress indicator.
func (s Step) Title() string {
	switch s {
	case StepCategory:
		return "Vehicle Selection"
	case StepContact:
		return "Contact Details"
	case StepPayment:
		return "Payment"
	case StepConfirmation:
		return "Confirmation"
	}
	return s.String()
}

// ParseStep maps the ?step= query value. Confirmation cannot be requested.
func ParseStep(s string) (Step, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "category", "fare":
		return StepCategory, true
	case "contact", "details":
		return StepContact, true
	case "payment":
		return StepPayment, true
	}
	return StepCategory, false
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Draft is the in-progress ride request built up across the wizard steps.
type Draft struct {
	Pickup      *Place `json:"pickupLocation,omitempty"`
	Destination *Place `json:"destination,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Passengers  int    `json:"passengers"`

	FareEstimates        []FareEstimate `json:"fareEstimates"`
	EstimatedDistanceKm  float64        `json:"estimatedDistance"`
	EstimatedDurationMin float64        `json:"estimatedDuration"`

	SelectedVehicle VehicleCategory `json:"selectedVehicle,omitempty"`
	SelectedFare    float64         `json:"selectedFare"`

	Contact       Contact       `json:"contact"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`

	CurrentStep       Step   `json:"currentStep"`
	IsComplete        bool   `json:"isBookingComplete"`
	CheckoutSessionID string `json:"checkoutSessionId,omitempty"`
	BookingRef        string `json:"bookingRef,omitempty"`
}

func NewDraft() Draft {
	return Draft{
		Passengers:    1,
		FareEstimates: []FareEstimate{},
		PaymentMethod: PaymentCard,
		CurrentStep:   StepCategory,
	}
}

// Started reports whether the user has gone past the landing search box.
func (d Draft) Started() bool {
	return d.Pickup != nil
}

// CanEnterPayment holds once both locations and a vehicle are chosen.
func (d Draft) CanEnterPayment() bool {
	return d.Pickup != nil && d.Destination != nil && d.SelectedVehicle != ""
}

// ScheduledTime combines Date and Time in loc.
func (d Draft) ScheduledTime(loc *time.Location) (time.Time, error) {
	return CombineDateAndTime(d.Date, d.Time, loc)
}

// Details is a partial update for SetBookingDetails. Nil fields are left untouched.
type Details struct {
	Pickup      *Place
	Destination *Place
	Date        *string
	Time        *string
	Passengers  *int

	FareEstimates        []FareEstimate
	EstimatedDistanceKm  *float64
	EstimatedDurationMin *float64

	Contact           *Contact
	PaymentMethod     *PaymentMethod
	CheckoutSessionID *string
}
