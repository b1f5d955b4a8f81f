// Package receipt renders the booking confirmation as a one-page PDF.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/example/ridebook/internal/booking"
)

var ErrIncomplete = errors.New("receipt: booking is not confirmed")

// Render writes the receipt for a completed draft to w.
func Render(w io.Writer, d booking.Draft, siteName string) error {
	if !d.IsComplete {
		return ErrIncomplete
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(siteName+" booking receipt", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(siteName+" - Booking Confirmation"))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 12)
	v := booking.VehicleFor(d.SelectedVehicle)
	rows := [][2]string{
		{"Booking reference", dash(d.BookingRef)},
		{"Pickup", dash(placeText(d.Pickup))},
		{"Destination", dash(placeText(d.Destination))},
		{"Date", dash(d.Date)},
		{"Time", dash(d.Time)},
		{"Passengers", fmt.Sprintf("%d", d.Passengers)},
		{"Vehicle", v.Name},
		{"Payment", dash(title(string(d.PaymentMethod)))},
		{"Fare", fmt.Sprintf("EUR %.2f", d.SelectedFare)},
	}
	if d.EstimatedDistanceKm > 0 {
		rows = append(rows, [2]string{"Distance", fmt.Sprintf("%.1f km (about %.0f min)", d.EstimatedDistanceKm, d.EstimatedDurationMin)})
	}
	if !d.Contact.IsZero() {
		rows = append(rows,
			[2]string{"Name", dash(d.Contact.Name)},
			[2]string{"Phone", dash(d.Contact.Phone)},
			[2]string{"Email", dash(d.Contact.Email)},
		)
	}
	for _, r := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 8, tr(r[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 8, tr(r[1]), "", "L", false)
	}
	if d.Contact.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, tr("Notes: "+d.Contact.Notes), "", "", false)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Your driver will be waiting at the pickup point at the scheduled time. Keep this receipt for your records.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("receipt: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Filename is the download name for the receipt.
func Filename(d booking.Draft) string {
	ref := d.BookingRef
	if ref == "" {
		ref = strings.ReplaceAll(d.Date, "-", "")
	}
	var b strings.Builder
	for _, r := range ref {
		if r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return "booking_" + b.String() + ".pdf"
}

func placeText(p *booking.Place) string {
	if p == nil {
		return ""
	}
	if p.Name != "" && p.Name != p.FormattedAddress {
		return p.Name + ", " + p.FormattedAddress
	}
	return p.FormattedAddress
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
