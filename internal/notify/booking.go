package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

// Confirmation describes a booking the provider accepted.
type Confirmation struct {
	BookingID   string
	Status      string
	ClientName  string
	ClientEmail string
	ServiceID   string
	StaffID     string
	BranchID    string
	StartLocal  time.Time
	Notes       string
}

// BookingNotifier emails the client and, optionally, the clinic team after a
// booking is confirmed.
type BookingNotifier struct {
	sender     EmailSender
	staffEmail string
	clinicName string
	logger     *logging.Logger
}

func NewBookingNotifier(sender EmailSender, staffEmail, clinicName string, logger *logging.Logger) *BookingNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if clinicName == "" {
		clinicName = defaultFromName
	}
	return &BookingNotifier{
		sender:     sender,
		staffEmail: strings.TrimSpace(staffEmail),
		clinicName: clinicName,
		logger:     logger,
	}
}

// NotifyBooked sends the client confirmation and the staff notification.
// Both are attempted; failures are joined.
func (n *BookingNotifier) NotifyBooked(ctx context.Context, c Confirmation) error {
	if n == nil || n.sender == nil {
		return nil
	}

	var errs []error
	if c.ClientEmail != "" {
		if err := n.sender.Send(ctx, n.clientMessage(c)); err != nil {
			errs = append(errs, fmt.Errorf("client confirmation: %w", err))
		}
	}
	if n.staffEmail != "" {
		if err := n.sender.Send(ctx, n.staffMessage(c)); err != nil {
			errs = append(errs, fmt.Errorf("staff notification: %w", err))
		}
	} else {
		n.logger.Debug("notify: staff email not configured, skipping staff notification", "booking_id", c.BookingID)
	}
	return errors.Join(errs...)
}

func (n *BookingNotifier) clientMessage(c Confirmation) EmailMessage {
	when := formatWhen(c.StartLocal)
	subject := fmt.Sprintf("Your appointment at %s is confirmed", n.clinicName)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", valueOr(firstName(c.ClientName), "there"))
	fmt.Fprintf(&b, "Your appointment on %s is confirmed.\n", when)
	fmt.Fprintf(&b, "Booking reference: %s\n", c.BookingID)
	b.WriteString("\nIf you need to change your booking, please contact us before your appointment.\n")

	return EmailMessage{
		To:         c.ClientEmail,
		ToName:     c.ClientName,
		Subject:    subject,
		Body:       b.String(),
		HTML:       n.confirmationHTML(c, when),
		Categories: []string{"booking-confirmation"},
	}
}

func (n *BookingNotifier) staffMessage(c Confirmation) EmailMessage {
	when := formatWhen(c.StartLocal)
	subject := fmt.Sprintf("New online booking: %s (%s)", valueOr(c.ClientName, "client"), when)

	var b strings.Builder
	fmt.Fprintf(&b, "Booking: %s\n", c.BookingID)
	fmt.Fprintf(&b, "Status: %s\n", valueOr(c.Status, "N/A"))
	fmt.Fprintf(&b, "Client: %s\n", valueOr(c.ClientName, "N/A"))
	if c.ClientEmail != "" {
		fmt.Fprintf(&b, "Email: %s\n", c.ClientEmail)
	}
	fmt.Fprintf(&b, "Service: %s\n", valueOr(c.ServiceID, "N/A"))
	fmt.Fprintf(&b, "Staff: %s\n", valueOr(c.StaffID, "N/A"))
	fmt.Fprintf(&b, "Branch: %s\n", valueOr(c.BranchID, "N/A"))
	fmt.Fprintf(&b, "Start: %s\n", when)
	if c.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", c.Notes)
	}

	return EmailMessage{
		To:         n.staffEmail,
		ReplyTo:    c.ClientEmail,
		Subject:    subject,
		Body:       b.String(),
		Categories: []string{"booking-staff"},
	}
}

func (n *BookingNotifier) confirmationHTML(c Confirmation, when string) string {
	var notesRow string
	if c.Notes != "" {
		notesRow = fmt.Sprintf(`<tr><td style="padding:6px 12px;font-weight:bold;">Notes</td><td style="padding:6px 12px;">%s</td></tr>`, html.EscapeString(c.Notes))
	}
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:600px;">
<h2 style="color:#333;">Appointment confirmed</h2>
<p>Hi %s, we look forward to seeing you at %s.</p>
<table style="border-collapse:collapse;width:100%%;">
<tr><td style="padding:6px 12px;font-weight:bold;">When</td><td style="padding:6px 12px;">%s</td></tr>
<tr><td style="padding:6px 12px;font-weight:bold;">Reference</td><td style="padding:6px 12px;">%s</td></tr>
%s
</table>
</div>`,
		html.EscapeString(valueOr(firstName(c.ClientName), "there")),
		html.EscapeString(n.clinicName),
		html.EscapeString(when),
		html.EscapeString(c.BookingID),
		notesRow,
	)
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("Monday 2 January 2006, 3:04 PM")
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
