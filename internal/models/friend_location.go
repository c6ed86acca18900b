package models

import "time"

// FriendLocation is a mutual friend's last published position as shown on
// the map. It is a read model, not a table.
type FriendLocation struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}
