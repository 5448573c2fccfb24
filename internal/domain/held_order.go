package domain

import "time"

// HeldOrder is a named, timestamped snapshot of a cart set aside for later.
type HeldOrder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Cart      Cart      `json:"cart"`
}

// FindHeldIndex returns the index of the held order with id, or -1.
func FindHeldIndex(held []HeldOrder, id string) int {
	for i := range held {
		if held[i].ID == id {
			return i
		}
	}
	return -1
}
