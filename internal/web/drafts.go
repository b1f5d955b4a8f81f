package web

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/auth"
	"github.com/example/ridebook/internal/booking"
	"github.com/example/ridebook/internal/db"
	"github.com/example/ridebook/internal/drafts"
)

// draftID returns the id in the storage cookie, issuing a new one if the
// cookie is missing or garbled.
func (s *Server) draftID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if c, err := r.Cookie(drafts.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id, true
		}
	}
	id := uuid.New()
	http.SetCookie(w, &http.Cookie{
		Name:     drafts.CookieName,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || strings.HasPrefix(s.BaseURL, "https://"),
	})
	return id, false
}

// loadDraft returns the visitor's draft; unknown ids start fresh.
func (s *Server) loadDraft(w http.ResponseWriter, r *http.Request) (uuid.UUID, booking.Draft, error) {
	id, known := s.draftID(w, r)
	if !known {
		return id, booking.NewDraft(), nil
	}
	d, err := s.Drafts.Load(r.Context(), id)
	if db.IsNotFound(err) {
		return id, booking.NewDraft(), nil
	}
	if err != nil {
		return id, booking.Draft{}, err
	}
	return id, d, nil
}

func (s *Server) saveDraft(r *http.Request, id uuid.UUID, d booking.Draft) error {
	if err := s.Drafts.Save(r.Context(), id, d); err != nil {
		logFor(r.Context(), s.Log).Error("save draft", zap.String("draft_id", id.String()), zap.Error(err))
		return err
	}
	return nil
}

// wizard wraps d, enabling the contact shortcut for signed-in users.
func (s *Server) wizard(r *http.Request, d *booking.Draft) *booking.Wizard {
	sess, ok := auth.FromContext(r.Context())
	skip := auth.SkipContact(sess, ok, s.clock())
	w := booking.NewWizard(d, skip)
	if skip && d.Contact.IsZero() {
		c := booking.Contact{
			Name:  sess.Profile.FullName,
			Phone: sess.Profile.PhoneNumber,
			Email: sess.Profile.Email,
		}
		w.SetBookingDetails(booking.Details{Contact: &c})
	}
	return w
}
