package domain

import "time"

// PackingList holds the packing checklist for one trip. There is at most one
// list per trip, stored under the trip's id; deleting a trip deletes its
// packing list in the same transaction.
type PackingList struct {
	TripID    string        `json:"tripId"`
	Items     []PackingItem `json:"items"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// PackingItem is a single checklist entry.
type PackingItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Packed   bool   `json:"packed"`
	Category string `json:"category,omitempty"`
}
