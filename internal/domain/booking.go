package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking is an accommodation reservation, optionally assigned to a trip.
// When AssignedTripID is set and BudgetedCost is positive, the referenced
// trip's "Accommodation" budget category reflects the sum of all such
// bookings' costs; every booking mutation reconciles that category in the
// same transaction as the booking write.
type Booking struct {
	ID           string    `json:"id"`
	SiteName     string    `json:"siteName"`
	ContactPhone string    `json:"contactPhone,omitempty"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	WebsiteURL   string    `json:"websiteUrl,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CheckIn      time.Time `json:"checkIn"`
	CheckOut     time.Time `json:"checkOut"` // always >= CheckIn
	// BudgetedCost of zero means the booking carries no budget impact.
	BudgetedCost   decimal.Decimal `json:"budgetedCost"`
	AssignedTripID *string         `json:"assignedTripId,omitempty"`
	Confirmed      bool            `json:"confirmed"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
