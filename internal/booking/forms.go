package booking

import (
	"strings"
	"time"

	"github.com/example/ridebook/internal/forms"
)

// SearchForm is the landing page "find a ride" box.
type SearchForm struct {
	Pickup             string `form:"pickup" validate:"required,min=8"`
	PickupPlaceID      string `form:"pickup_place_id"`
	Destination        string `form:"destination" validate:"required,min=8"`
	DestinationPlaceID string `form:"destination_place_id"`
	Date               string `form:"date" validate:"required,datetime=2006-01-02"`
	Time               string `form:"time" validate:"required,datetime=15:04"`
	Passengers         int    `form:"passengers" validate:"gte=1"`
}

var searchMessages = forms.Messages{
	"pickup":        "Please select a correct location",
	"destination":   "Please select a correct location",
	"date.required": "Please select a date.",
	"date.datetime": "Please select a date.",
	"time.required": "Please select a time.",
	"time.datetime": "Please select a time.",
	"passengers":    "Please select number of passengers.",
}

// Validate checks the search form. The pickup date may not lie before
// today in loc and passengers are capped at maxPassengers.
func (f *SearchForm) Validate(now time.Time, loc *time.Location, maxPassengers int) error {
	f.Pickup = strings.TrimSpace(f.Pickup)
	f.Destination = strings.TrimSpace(f.Destination)
	err := forms.Validate(f, searchMessages)
	ferr, ok := err.(*forms.Error)
	if err != nil && !ok {
		return err
	}
	if ferr == nil {
		ferr = &forms.Error{}
	}
	if maxPassengers > 0 && f.Passengers > maxPassengers {
		ferr.Add("passengers", "Too many passengers for a single booking.")
	}
	if d, perr := time.ParseInLocation(DateLayout, f.Date, loc); perr == nil {
		today := now.In(loc).Format(DateLayout)
		if d.Format(DateLayout) < today {
			ferr.Add("date", "Pickup date cannot be in the past.")
		}
	}
	return ferr.OrNil()
}

// ContactForm is the optional contact details step.
type ContactForm struct {
	Name  string `form:"name" validate:"required,min=2,max=100"`
	Phone string `form:"phone" validate:"required,phone"`
	Email string `form:"email" validate:"required,email"`
	Notes string `form:"notes" validate:"max=500"`
}

var contactMessages = forms.Messages{
	"name.required":  "Please enter your full name.",
	"phone.required": "Please enter a phone number.",
	"email.required": "Please enter your email address.",
}

func (f *ContactForm) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	f.Notes = strings.TrimSpace(f.Notes)
	return forms.Validate(f, contactMessages)
}

func (f ContactForm) Contact() Contact {
	return Contact{Name: f.Name, Phone: f.Phone, Email: f.Email, Notes: f.Notes}
}
