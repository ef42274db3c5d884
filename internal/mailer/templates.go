package mailer

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/fasticket/backend/internal/models"
)

// Message is a rendered email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// BookingDetails feeds the booking email templates.
type BookingDetails struct {
	AttendeeName    string
	EventTitle      string
	EventLocation   string
	EventStartDate  time.Time
	BookingCode     string
	Quantity        int
	TotalPriceCents int
	Currency        string
	Link            string
}

// Render builds the email for emailType.
func Render(emailType string, d BookingDetails) (*Message, error) {
	var subject, intro string
	switch emailType {
	case models.EmailTypeBookingConfirmation:
		subject = "Your tickets for " + d.EventTitle
		intro = "Your booking is confirmed."
	case models.EmailTypeBookingCancelled:
		subject = "Booking cancelled: " + d.EventTitle
		intro = "Your booking has been cancelled."
	case models.EmailTypeEventCancelled:
		subject = "Event cancelled: " + d.EventTitle
		intro = "The organizer has cancelled this event. Your booking has been cancelled."
	default:
		return nil, fmt.Errorf("unknown email type %q", emailType)
	}

	lines := [][2]string{
		{"Event", d.EventTitle},
		{"When", d.EventStartDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST")},
	}
	if d.EventLocation != "" {
		lines = append(lines, [2]string{"Where", d.EventLocation})
	}
	lines = append(lines,
		[2]string{"Booking code", d.BookingCode},
		[2]string{"Tickets", fmt.Sprintf("%d", d.Quantity)},
		[2]string{"Total", FormatPrice(d.TotalPriceCents, d.Currency)},
	)

	greeting := "Hi,"
	if name := strings.TrimSpace(d.AttendeeName); name != "" {
		greeting = "Hi " + name + ","
	}

	var text strings.Builder
	text.WriteString(greeting + "\n\n" + intro + "\n\n")
	for _, l := range lines {
		fmt.Fprintf(&text, "%s: %s\n", l[0], l[1])
	}
	if d.Link != "" {
		fmt.Fprintf(&text, "\n%s\n", d.Link)
	}

	return &Message{Subject: subject, Text: text.String(), HTML: renderHTML(greeting, intro, lines, d.Link)}, nil
}

// FormatPrice renders cents as "12.50 USD", or "Free" for zero.
func FormatPrice(cents int, currency string) string {
	if cents == 0 {
		return "Free"
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

func renderHTML(greeting, intro string, lines [][2]string, link string) string {
	var b strings.Builder
	b.WriteString(`<!doctype html>
<html>
  <body style="font-family:Arial,Helvetica,sans-serif; line-height:1.4;">
`)
	fmt.Fprintf(&b, "    <p>%s</p>\n    <p>%s</p>\n    <table>\n", html.EscapeString(greeting), html.EscapeString(intro))
	for _, l := range lines {
		fmt.Fprintf(&b, "      <tr><td style=\"color:#555; padding-right:12px;\">%s</td><td><strong>%s</strong></td></tr>\n",
			html.EscapeString(l[0]), html.EscapeString(l[1]))
	}
	b.WriteString("    </table>\n")
	if link != "" {
		esc := html.EscapeString(link)
		fmt.Fprintf(&b, `    <p><a href="%s" style="display:inline-block; padding:10px 14px; text-decoration:none; border-radius:6px; background:#111; color:#fff;">View event</a></p>`+"\n", esc)
	}
	b.WriteString("  </body>\n</html>")
	return b.String()
}
