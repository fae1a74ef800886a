package domain

// RoomName identifies one of the fixed set of rooms known at startup.
// There is no dynamic room creation.
type RoomName string

// DefaultRooms is the room set the broker serves when the configuration
// does not override it.
var DefaultRooms = []RoomName{"Geral", "Dúvidas", "Projetos"}

// DefaultAllowedRooms is granted to every freshly registered account.
var DefaultAllowedRooms = []RoomName{"Geral"}

// ContainsRoom reports whether name is part of the given set.
func ContainsRoom(set []RoomName, name RoomName) bool {
	for _, r := range set {
		if r == name {
			return true
		}
	}
	return false
}
