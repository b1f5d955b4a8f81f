package web

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/auth"
	"github.com/example/ridebook/internal/backend"
	"github.com/example/ridebook/internal/booking"
	"github.com/example/ridebook/internal/db"
	"github.com/example/ridebook/internal/drafts"
	"github.com/example/ridebook/internal/events"
	"github.com/example/ridebook/internal/forms"
	"github.com/example/ridebook/internal/receipt"
)

const paymentCallback = "/booking?step=payment"

func (s *Server) searchDefaults() booking.SearchForm {
	now := s.clock().In(s.Location)
	return booking.SearchForm{
		Date:       now.Format(booking.DateLayout),
		Time:       now.Add(30 * time.Minute).Truncate(15 * time.Minute).Format(booking.TimeLayout),
		Passengers: 1,
	}
}

func (s *Server) homeData(form booking.SearchForm) tmplData {
	return tmplData{
		Title:         "Book a taxi in Barcelona",
		Form:          form,
		MaxPassengers: s.MaxPassengers,
		Today:         s.clock().In(s.Location).Format(booking.DateLayout),
		PlacesEnabled: s.Places.Enabled(),
	}
}

// handleHome shows the landing page. Coming back here starts over.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(drafts.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			if err := s.Drafts.Reset(r.Context(), id); err != nil {
				logFor(r.Context(), s.Log).Warn("reset draft on landing", zap.Error(err))
			}
		}
	}
	s.render(w, r, "home.html", s.homeData(s.searchDefaults()))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	passengers, _ := strconv.Atoi(r.PostFormValue("passengers"))
	f := booking.SearchForm{
		Pickup:             r.PostFormValue("pickup"),
		PickupPlaceID:      r.PostFormValue("pickup_place_id"),
		Destination:        r.PostFormValue("destination"),
		DestinationPlaceID: r.PostFormValue("destination_place_id"),
		Date:               r.PostFormValue("date"),
		Time:               r.PostFormValue("time"),
		Passengers:         passengers,
	}
	if err := f.Validate(s.clock(), s.Location, s.MaxPassengers); err != nil {
		data := s.homeData(f)
		data.Errors = forms.Fields(err)
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "home.html", data)
		return
	}

	ctx := r.Context()
	pickup := s.Places.Resolve(ctx, f.Pickup, f.PickupPlaceID)
	dest := s.Places.Resolve(ctx, f.Destination, f.DestinationPlaceID)
	when, err := booking.CombineDateAndTime(f.Date, f.Time, s.Location)
	if err != nil {
		data := s.homeData(f)
		data.Errors = map[string]string{"time": "Please select a time."}
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "home.html", data)
		return
	}

	quote, err := s.API.Quote(ctx, backend.QuoteRequest{
		Origin:        pickup.FormattedAddress,
		Destination:   dest.FormattedAddress,
		Passengers:    f.Passengers,
		ScheduledTime: when,
		IsAirport: pickup.HasType("airport") || dest.HasType("airport") ||
			booking.DetectIsAirport(pickup.Name+" "+pickup.FormattedAddress, dest.Name+" "+dest.FormattedAddress),
		IsHoliday: booking.DetectIsHoliday(when),
	})
	s.Metrics.quotes.WithLabelValues(result(err)).Inc()
	if err != nil {
		s.unavailable(w, r, "fare quote", err)
		return
	}

	id, d, err := s.loadDraft(w, r)
	if err != nil {
		s.unavailable(w, r, "load draft", err)
		return
	}
	wz := s.wizard(r, &d)
	wz.Reset()
	wz.SetBookingDetails(booking.Details{
		Pickup:               &pickup,
		Destination:          &dest,
		Date:                 &f.Date,
		Time:                 &f.Time,
		Passengers:           &f.Passengers,
		FareEstimates:        quote.Estimates,
		EstimatedDistanceKm:  &quote.DistanceKm,
		EstimatedDurationMin: &quote.DurationMin,
	})
	if err := s.Drafts.Reset(ctx, id); err != nil {
		s.unavailable(w, r, "reset draft", err)
		return
	}
	if err := s.saveDraft(r, id, d); err != nil {
		s.unavailable(w, r, "save draft", err)
		return
	}
	http.Redirect(w, r, "/booking", http.StatusSeeOther)
}

// handleBooking renders the current wizard step. ?step= may move the
// wizard as far as the draft allows.
func (s *Server) handleBooking(w http.ResponseWriter, r *http.Request) {
	id, d, err := s.loadDraft(w, r)
	if err != nil {
		s.unavailable(w, r, "load draft", err)
		return
	}
	if !d.Started() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	wz := s.wizard(r, &d)
	if st, ok := booking.ParseStep(r.URL.Query().Get("step")); ok {
		wz.GoTo(st)
	}
	if err := s.saveDraft(r, id, d); err != nil {
		s.unavailable(w, r, "save draft", err)
		return
	}
	s.render(w, r, "booking.html", s.bookingData(wz))
}

// bookingStep loads a started draft for a step POST. It writes the
// response itself and returns ok=false when the caller should stop.
func (s *Server) bookingStep(w http.ResponseWriter, r *http.Request) (uuid.UUID, *booking.Draft, *booking.Wizard, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return uuid.Nil, nil, nil, false
	}
	id, d, err := s.loadDraft(w, r)
	if err != nil {
		s.unavailable(w, r, "load draft", err)
		return uuid.Nil, nil, nil, false
	}
	if !d.Started() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return uuid.Nil, nil, nil, false
	}
	dp := &d
	return id, dp, s.wizard(r, dp), true
}

func (s *Server) stepFailed(w http.ResponseWriter, r *http.Request, wz *booking.Wizard, status int, mutate func(*tmplData)) {
	data := s.bookingData(wz)
	mutate(&data)
	s.renderStatus(w, r, status, "booking.html", data)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	id, d, wz, ok := s.bookingStep(w, r)
	if !ok {
		return
	}
	if err := wz.SelectVehicle(booking.VehicleCategory(r.PostFormValue("vehicle"))); err != nil {
		s.stepFailed(w, r, wz, http.StatusUnprocessableEntity, func(t *tmplData) {
			t.Flash = "Please select a vehicle to continue."
		})
		return
	}
	if err := wz.Advance(); err != nil {
		s.stepFailed(w, r, wz, http.StatusUnprocessableEntity, func(t *tmplData) {
			t.Flash = stepError(err)
		})
		return
	}
	if err := s.saveDraft(r, id, *d); err != nil {
		s.unavailable(w, r, "save draft", err)
		return
	}
	http.Redirect(w, r, "/booking", http.StatusSeeOther)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	id, d, wz, ok := s.bookingStep(w, r)
	if !ok {
		return
	}
	// A stale form must not trigger a signup.
	if wz.Step() != booking.StepContact {
		http.Redirect(w, r, "/booking", http.StatusSeeOther)
		return
	}
	f := booking.ContactForm{
		Name:  r.PostFormValue("name"),
		Phone: r.PostFormValue("phone"),
		Email: r.PostFormValue("email"),
		Notes: r.PostFormValue("notes"),
	}
	if err := f.Validate(); err != nil {
		s.stepFailed(w, r, wz, http.StatusUnprocessableEntity, func(t *tmplData) {
			t.Errors = forms.Fields(err)
			t.Form = f
		})
		return
	}
	c := f.Contact()
	wz.SetBookingDetails(booking.Details{Contact: &c})

	if _, signedIn := auth.FromContext(r.Context()); !signedIn {
		res, err := s.Auth.EnsureUserAndLogin(r.Context(), w, r, c)
		if err != nil {
			logFor(r.Context(), s.Log).Warn("silent signup", zap.Error(err))
			_ = s.saveDraft(r, id, *d)
			s.stepFailed(w, r, wz, http.StatusBadGateway, func(t *tmplData) {
				t.Flash = "We could not set up your booking account. Please try again."
				t.Form = f
			})
			return
		}
		if res == auth.Exists {
			if err := s.saveDraft(r, id, *d); err != nil {
				s.unavailable(w, r, "save draft", err)
				return
			}
			q := url.Values{"callbackUrl": {paymentCallback}, "notice": {"exists"}}
			http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
			return
		}
	}

	if err := wz.Advance(); err != nil {
		s.stepFailed(w, r, wz, http.StatusUnprocessableEntity, func(t *tmplData) {
			t.Flash = stepError(err)
		})
		return
	}
	if err := s.saveDraft(r, id, *d); err != nil {
		s.unavailable(w, r, "save draft", err)
		return
	}
	http.Redirect(w, r, "/booking", http.StatusSeeOther)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	id, d, wz, ok := s.bookingStep(w, r)
	if !ok {
		return
	}
	wz.Retreat()
	if err := s.saveDraft(r, id, *d); err != nil {
		s.unavailable(w, r, "save draft", err)
		return
	}
	http.Redirect(w, r, "/booking", http.StatusSeeOther)
}

// handlePayment starts a checkout session and hands the browser over to
// the payment provider.
func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, d, wz, ok := s.bookingStep(w, r)
	if !ok {
		return
	}
	if !d.CanEnterPayment() {
		http.Redirect(w, r, "/booking", http.StatusSeeOther)
		return
	}
	wz.GoTo(booking.StepPayment)
	method, valid := booking.ParsePaymentMethod(r.PostFormValue("payment_method"))
	if !valid {
		s.stepFailed(w, r, wz, http.StatusUnprocessableEntity, func(t *tmplData) {
			t.Flash = "Please choose a payment method."
		})
		return
	}
	wz.SetBookingDetails(booking.Details{PaymentMethod: &method})

	sess, signedIn := auth.FromContext(r.Context())
	if !signedIn {
		if err := s.saveDraft(r, id, *d); err != nil {
			s.unavailable(w, r, "save draft", err)
			return
		}
		http.Redirect(w, r, "/login?"+url.Values{"callbackUrl": {paymentCallback}}.Encode(), http.StatusSeeOther)
		return
	}

	when, err := d.ScheduledTime(s.Location)
	if err != nil {
		s.stepFailed(w, r, wz, http.StatusUnprocessableEntity, func(t *tmplData) {
			t.Flash = "The pickup time is invalid. Please start a new search."
		})
		return
	}
	cs, err := s.API.CreateCheckoutSession(r.Context(), sess.AccessToken, backend.CheckoutRequest{
		Name:              d.Contact.Name,
		Email:             d.Contact.Email,
		Phone:             d.Contact.Phone,
		Notes:             d.Contact.Notes,
		Price:             d.SelectedFare,
		SelectedVehicle:   string(d.SelectedVehicle),
		Passengers:        d.Passengers,
		PickupLocation:    d.Pickup.Label(),
		Destination:       d.Destination.Label(),
		ScheduledTime:     when.UTC(),
		EstimatedDistance: d.EstimatedDistanceKm,
		EstimatedDuration: d.EstimatedDurationMin,
		PaymentMethod:     string(method),
	})
	s.Metrics.checkouts.WithLabelValues(string(method), result(err)).Inc()
	if err != nil {
		logFor(r.Context(), s.Log).Error("create checkout session", zap.Error(err))
		_ = s.saveDraft(r, id, *d)
		s.stepFailed(w, r, wz, http.StatusBadGateway, func(t *tmplData) {
			t.Flash = checkoutError(err)
		})
		return
	}
	if cs.SessionID != "" {
		wz.SetBookingDetails(booking.Details{CheckoutSessionID: &cs.SessionID})
	}
	if err := s.saveDraft(r, id, *d); err != nil {
		s.unavailable(w, r, "save draft", err)
		return
	}
	http.Redirect(w, r, cs.URL, http.StatusSeeOther)
}

// handleSuccess is the payment provider's return URL. Success is only
// shown once the booking API confirms the session was paid.
func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	sid := strings.TrimSpace(r.URL.Query().Get("session_id"))
	data := tmplData{Title: "Booking confirmation"}
	if sid == "" {
		s.render(w, r, "success.html", data)
		return
	}
	v, err := s.API.VerifyPayment(r.Context(), sid)
	if err != nil {
		logFor(r.Context(), s.Log).Error("verify payment", zap.String("session_id", sid), zap.Error(err))
		s.render(w, r, "success.html", data)
		return
	}
	if !v.Valid {
		s.render(w, r, "success.html", data)
		return
	}
	data.Verified = true

	id, d, err := s.loadDraft(w, r)
	if err != nil {
		logFor(r.Context(), s.Log).Error("load draft", zap.Error(err))
		s.render(w, r, "success.html", data)
		return
	}
	ours := d.Started() && (d.CheckoutSessionID == "" || d.CheckoutSessionID == sid)
	if ours {
		wz := s.wizard(r, &d)
		first := !d.IsComplete
		wz.Complete(true, firstNonEmpty(v.BookingID, d.BookingRef, shortRef(id)))
		if err := s.saveDraft(r, id, d); err == nil && first {
			s.Metrics.bookings.WithLabelValues("confirmed").Inc()
			s.Events.Notify(r.Context(), events.FromDraft(events.Confirmed, id, d, s.clock()))
		}
		s.scheduleReset(r, id)
		data.Draft = d
		data.HasDetails = true
		data.Vehicle = booking.VehicleFor(d.SelectedVehicle)
	}
	s.render(w, r, "success.html", data)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, d, err := s.loadDraft(w, r)
	if err != nil {
		s.unavailable(w, r, "load draft", err)
		return
	}
	if !d.Started() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if !d.IsComplete {
		s.Metrics.bookings.WithLabelValues("cancelled").Inc()
		s.Events.Notify(r.Context(), events.FromDraft(events.Cancelled, id, d, s.clock()))
	}
	s.scheduleReset(r, id)
	s.render(w, r, "cancel.html", tmplData{Title: "Booking cancelled", Draft: d})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	_, d, err := s.loadDraft(w, r)
	if err != nil {
		s.unavailable(w, r, "load draft", err)
		return
	}
	if !d.IsComplete {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	var buf bytes.Buffer
	if err := receipt.Render(&buf, d, s.SiteName); err != nil {
		logFor(r.Context(), s.Log).Error("render receipt", zap.Error(err))
		s.renderStatus(w, r, http.StatusInternalServerError, "error.html", tmplData{Title: "Something went wrong"})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.Filename(d)+`"`)
	_, _ = w.Write(buf.Bytes())
}

// scheduleReset clears the draft a little after the final page is shown.
func (s *Server) scheduleReset(r *http.Request, id uuid.UUID) {
	err := s.Drafts.ScheduleReset(r.Context(), id, s.clock().Add(s.ResetDelay))
	if err != nil && !db.IsNotFound(err) {
		logFor(r.Context(), s.Log).Warn("schedule draft reset", zap.String("draft_id", id.String()), zap.Error(err))
	}
}

func stepError(err error) string {
	switch {
	case errors.Is(err, booking.ErrNoVehicle):
		return "Please select a vehicle to continue."
	case errors.Is(err, booking.ErrPaymentPrecondition):
		return "Pickup, destination and vehicle are required before payment."
	case errors.Is(err, booking.ErrCompleted):
		return "This booking is already confirmed."
	}
	return "Something went wrong. Please try again."
}

func checkoutError(err error) string {
	var ae *backend.APIError
	if errors.As(err, &ae) && ae.Status < 500 && ae.Detail != "" {
		return "Payment could not be started: " + ae.Detail
	}
	if errors.Is(err, backend.ErrNoSessionURL) {
		return "Payment could not be started: session URL missing from response."
	}
	return "Payment could not be started. Please try again in a moment."
}

func shortRef(id uuid.UUID) string {
	return "RB-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
