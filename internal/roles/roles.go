// Package roles derives what a user may do from their profile state.
package roles

import "github.com/dmitrijs2005/symbiobot/internal/profiles"

// Role is the closed set of user classes.
type Role int

const (
	Unregistered Role = iota
	IncompleteProfile
	Unverified
	Student
	Admin
)

func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Student:
		return "student"
	case Unverified:
		return "unverified"
	case IncompleteProfile:
		return "incomplete_profile"
	case Unregistered:
		return "unregistered"
	}
	return "unknown"
}

// Classifier knows the single administrator identity.
type Classifier struct {
	AdminID int64
}

// Classify maps a user and their profile (nil if none) to exactly one role.
func (c Classifier) Classify(userID int64, p *profiles.Profile) Role {
	switch {
	case userID == c.AdminID:
		return Admin
	case p == nil:
		return Unregistered
	case !p.IsSignedUp:
		return IncompleteProfile
	case !p.IsVerified:
		return Unverified
	}
	return Student
}
