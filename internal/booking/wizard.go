package booking

// Wizard sequences one Draft through Category -> Contact -> Payment -> Confirmation.
// It is the only writer of the draft it wraps; callers persist the draft afterwards.
type Wizard struct {
	d           *Draft
	skipContact bool
}

// NewWizard wraps d. skipContact enables the shortcut that omits the contact
// step for signed-in users whose profile is known. A draft left on the
// contact step by an earlier anonymous visit is moved off it.
func NewWizard(d *Draft, skipContact bool) *Wizard {
	if d.CurrentStep < StepCategory || d.CurrentStep > LastStep {
		d.CurrentStep = StepCategory
	}
	if skipContact && d.CurrentStep == StepContact {
		if d.CanEnterPayment() {
			d.CurrentStep = StepPayment
		} else {
			d.CurrentStep = StepCategory
		}
	}
	return &Wizard{d: d, skipContact: skipContact}
}

func (w *Wizard) Draft() *Draft { return w.d }

func (w *Wizard) Step() Step { return w.d.CurrentStep }

func (w *Wizard) SkipsContact() bool { return w.skipContact }

// Advance moves one step forward. Confirmation is never reached this way;
// only a verified payment (Complete) gets there.
func (w *Wizard) Advance() error {
	cur := w.d.CurrentStep
	if cur >= StepPayment {
		return nil
	}
	if cur == StepCategory && w.d.SelectedVehicle == "" {
		return ErrNoVehicle
	}
	next := cur + 1
	if cur == StepCategory && w.skipContact {
		next = StepPayment
	}
	if next == StepPayment && !w.d.CanEnterPayment() {
		return ErrPaymentPrecondition
	}
	w.d.CurrentStep = next
	return nil
}

// Retreat moves one step back, mirroring the contact shortcut of Advance.
// Confirmation is terminal.
func (w *Wizard) Retreat() {
	switch cur := w.d.CurrentStep; {
	case cur <= StepCategory, cur >= StepConfirmation:
		return
	case cur == StepPayment && w.skipContact:
		w.d.CurrentStep = StepCategory
	default:
		w.d.CurrentStep = cur - 1
	}
}

// GoTo jumps to a requested step (the ?step= query parameter), falling back
// to the furthest step the draft allows.
func (w *Wizard) GoTo(s Step) {
	if w.d.CurrentStep == StepConfirmation {
		return
	}
	if s < StepCategory {
		s = StepCategory
	}
	if s > StepPayment {
		s = StepPayment
	}
	if s == StepContact && w.skipContact {
		s = StepPayment
	}
	if s >= StepContact && w.d.SelectedVehicle == "" {
		s = StepCategory
	}
	if s == StepPayment && !w.d.CanEnterPayment() {
		s = StepCategory
	}
	w.d.CurrentStep = s
}

// SetBookingDetails merges p into the draft. Each step validates its own
// form before calling this. A selection that is no longer among the new
// fare estimates is dropped.
func (w *Wizard) SetBookingDetails(p Details) {
	d := w.d
	if p.Pickup != nil {
		pl := *p.Pickup
		d.Pickup = &pl
	}
	if p.Destination != nil {
		pl := *p.Destination
		d.Destination = &pl
	}
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.Time != nil {
		d.Time = *p.Time
	}
	if p.Passengers != nil {
		d.Passengers = *p.Passengers
	}
	if p.FareEstimates != nil {
		d.FareEstimates = append([]FareEstimate(nil), p.FareEstimates...)
		if est, ok := findEstimate(d.FareEstimates, d.SelectedVehicle); ok {
			d.SelectedFare = est.EstimatedFare
		} else {
			d.SelectedVehicle = ""
			d.SelectedFare = 0
		}
	}
	if p.EstimatedDistanceKm != nil {
		d.EstimatedDistanceKm = *p.EstimatedDistanceKm
	}
	if p.EstimatedDurationMin != nil {
		d.EstimatedDurationMin = *p.EstimatedDurationMin
	}
	if p.Contact != nil {
		d.Contact = *p.Contact
	}
	if p.PaymentMethod != nil {
		d.PaymentMethod = *p.PaymentMethod
	}
	if p.CheckoutSessionID != nil {
		d.CheckoutSessionID = *p.CheckoutSessionID
	}
}

// SelectVehicle picks a category from the current estimates.
func (w *Wizard) SelectVehicle(c VehicleCategory) error {
	if w.d.IsComplete {
		return ErrCompleted
	}
	est, ok := findEstimate(w.d.FareEstimates, c)
	if !ok {
		return ErrUnknownCategory
	}
	w.d.SelectedVehicle = est.Category
	w.d.SelectedFare = est.EstimatedFare
	return nil
}

// Complete marks the booking paid. verified must come from the payment
// verification service; the flag never goes back to false except via Reset.
func (w *Wizard) Complete(verified bool, ref string) bool {
	if !verified {
		return false
	}
	if w.d.IsComplete {
		return true
	}
	w.d.IsComplete = true
	w.d.CurrentStep = StepConfirmation
	if ref != "" {
		w.d.BookingRef = ref
	}
	return true
}

func (w *Wizard) Reset() {
	*w.d = NewDraft()
}

// Sequence lists the steps shown in the progress indicator.
func (w *Wizard) Sequence() []Step {
	if w.skipContact {
		return []Step{StepCategory, StepPayment, StepConfirmation}
	}
	return []Step{StepCategory, StepContact, StepPayment, StepConfirmation}
}
