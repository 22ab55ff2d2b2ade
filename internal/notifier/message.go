package notifier

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"vehicle-booking-engine/internal/domain"
)

const dateLayout = "2006-01-02"

// subject falls back to a title derived from the notification type.
func subject(n domain.Notification) string {
	if n.Title != "" {
		return n.Title
	}
	switch n.Type {
	case domain.NotificationVehicleAvailable:
		return "A vehicle you are waiting for is available"
	case domain.NotificationRefundProcessed:
		return "Your refund has been processed"
	case domain.NotificationBookingStatus:
		return "Your booking was updated"
	default:
		return "Notification"
	}
}

func plainBody(user *domain.User, n domain.Notification) string {
	var b strings.Builder
	if user.Name != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", user.Name)
	}
	b.WriteString(n.Message)
	if n.VehicleName != "" {
		fmt.Fprintf(&b, "\n\nVehicle: %s", n.VehicleName)
	}
	if n.DesiredStart != nil && n.DesiredEnd != nil {
		fmt.Fprintf(&b, "\nDates: %s to %s", n.DesiredStart.Format(dateLayout), n.DesiredEnd.Format(dateLayout))
	}
	if n.BookingID != 0 {
		fmt.Fprintf(&b, "\nBooking: #%d", n.BookingID)
	}
	return b.String()
}

func htmlBody(user *domain.User, n domain.Notification) string {
	lines := strings.Split(plainBody(user, n), "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return "<html><body><p>" + strings.Join(lines, "<br>") + "</p></body></html>"
}

// data flattens the notification into string pairs for transports that
// only carry flat maps.
func data(n domain.Notification) map[string]string {
	out := map[string]string{"type": string(n.Type)}
	if n.VehicleID != 0 {
		out["vehicle_id"] = strconv.Itoa(int(n.VehicleID))
	}
	if n.BookingID != 0 {
		out["booking_id"] = strconv.Itoa(int(n.BookingID))
	}
	if n.DesiredStart != nil {
		out["desired_start"] = n.DesiredStart.Format(dateLayout)
	}
	if n.DesiredEnd != nil {
		out["desired_end"] = n.DesiredEnd.Format(dateLayout)
	}
	for k, v := range n.Attributes {
		out[k] = v
	}
	return out
}
