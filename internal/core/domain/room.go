package domain

import "time"

// RoomStatus represents the occupancy state of a consultation room.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

var roomTransitions = map[RoomStatus][]RoomStatus{
	RoomAvailable:   {RoomOccupied, RoomMaintenance},
	RoomOccupied:    {RoomAvailable},
	RoomMaintenance: {RoomAvailable},
}

// CanTransitionTo reports whether a room may move from s to next.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range roomTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Room is a physical consultation or imaging room.
type Room struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Floor     int        `json:"floor"`
	Status    RoomStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Tag is a free-form label attached to patients and consultations.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
