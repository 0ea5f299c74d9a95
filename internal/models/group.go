package models

import "time"

// Group is a set of members sharing expenses.
// Group balances are derived from the active expenses and confirmed
// settlements carrying the group's ID.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// Members is the list of user IDs in this group.
	Members []string

	// CreatedAt is when the group was created.
	CreatedAt time.Time
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// RelationshipStatus is the state of a peer-to-peer relationship.
type RelationshipStatus string

const (
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipAccepted RelationshipStatus = "accepted"
)

// Relationship links two users outside of any group (a friendship).
// Peer-to-peer settlements require an accepted relationship.
type Relationship struct {
	// UserA and UserB are stored in canonical (sorted) order.
	UserA string
	UserB string

	Status    RelationshipStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanonicalPair orders two user IDs so (a, b) and (b, a) map to the same key.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
