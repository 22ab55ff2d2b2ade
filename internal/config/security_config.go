package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityAccess                        // Access token required
	SecurityOperator                      // Admin token or operator key required
)

// RouteSecurityConfig maps HTTP route names to their required security level
var RouteSecurityConfig = map[string]SecurityLevel{
	"health": SecurityPublic,

	// Bookings
	"createBooking":          SecurityAccess,
	"getBooking":             SecurityAccess,
	"updateBookingStatus":    SecurityAccess,
	"refundQuote":            SecurityAccess,
	"recordRenterInspection": SecurityAccess,
	"decideRenterInspection": SecurityAccess,
	"recordOwnerInspection":  SecurityAccess,
	"contractSigned":         SecurityOperator,

	// Waiting queue
	"joinWaitingQueue":  SecurityAccess,
	"listWaitingQueue":  SecurityAccess,
	"leaveWaitingQueue": SecurityAccess,

	// Availability
	"listAvailability":   SecurityPublic,
	"checkAvailability":  SecurityPublic,
	"addAvailability":    SecurityAccess,
	"removeAvailability": SecurityAccess,

	// Administrative triggers
	"releaseExpired": SecurityOperator,
	"retryRefund":    SecurityOperator,
}

// GetSecurityLevel returns the security level for a route. Unknown routes
// require an access token.
func GetSecurityLevel(route string) SecurityLevel {
	if level, ok := RouteSecurityConfig[route]; ok {
		return level
	}
	return SecurityAccess
}
