package web

import (
	"github.com/example/ridebook/internal/booking"
)

type stepView struct {
	Step    booking.Step
	Title   string
	Number  int
	Done    bool
	Current bool
}

type estimateView struct {
	Category booking.VehicleCategory
	Fare     float64
	Vehicle  booking.Vehicle
	Selected bool
}

func stepViews(w *booking.Wizard) []stepView {
	cur := w.Step()
	seq := w.Sequence()
	out := make([]stepView, 0, len(seq))
	for i, st := range seq {
		out = append(out, stepView{
			Step:    st,
			Title:   st.Title(),
			Number:  i + 1,
			Done:    st < cur || (st == booking.StepConfirmation && w.Draft().IsComplete),
			Current: st == cur,
		})
	}
	return out
}

func estimateViews(d booking.Draft) []estimateView {
	sorted := booking.SortedEstimates(d.FareEstimates)
	out := make([]estimateView, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, estimateView{
			Category: e.Category,
			Fare:     e.EstimatedFare,
			Vehicle:  booking.VehicleFor(e.Category),
			Selected: e.Category == d.SelectedVehicle,
		})
	}
	return out
}

func (s *Server) bookingData(w *booking.Wizard) tmplData {
	d := *w.Draft()
	c := d.Contact
	return tmplData{
		Title:       "Book your ride",
		Draft:       d,
		Step:        w.Step(),
		Steps:       stepViews(w),
		Estimates:   estimateViews(d),
		Vehicle:     booking.VehicleFor(d.SelectedVehicle),
		SkipContact: w.SkipsContact(),
		Form:        booking.ContactForm{Name: c.Name, Phone: c.Phone, Email: c.Email, Notes: c.Notes},
	}
}
