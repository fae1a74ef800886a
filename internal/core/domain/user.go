package domain

import "time"

// ReservedAdminUsername is the root administrator account provisioned at
// startup. It never appears in rosters and cannot be deleted.
const ReservedAdminUsername = "admin"

// User is the externally persisted account record. The coordinator reads it
// at login and permission-check time and mutates it only through explicit
// admin commands.
type User struct {
	Username        string     `json:"username"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	PhoneNumber     string     `json:"phoneNumber"`
	PasswordHash    string     `json:"passwordHash"`
	Admin           bool       `json:"isAdmin"`
	AllowedRooms    []RoomName `json:"allowedRooms"`
	PendingRequests []RoomName `json:"pendingRequests"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// UserSummary is the roster view returned to administrators.
type UserSummary struct {
	Username        string     `json:"username"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	AllowedRooms    []RoomName `json:"allowedRooms"`
	PendingRequests []RoomName `json:"pendingRequests"`
}

// Summary projects the roster fields of a user.
func (u *User) Summary() UserSummary {
	return UserSummary{
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		AllowedRooms:    append([]RoomName(nil), u.AllowedRooms...),
		PendingRequests: append([]RoomName(nil), u.PendingRequests...),
	}
}
