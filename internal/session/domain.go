// Package session stores the bearer credentials of the two identity domains
// (admin and user) and decodes their display claims.
//
// Each domain owns exactly one storage key. Operations on one domain never read
// or modify the other domain's key, so an admin session and a user session can
// be live at the same time.
package session

import "fmt"

// Domain identifies an identity context. The zero value, None, marks requests
// that carry no credential (sign-in and sign-up).
type Domain string

const (
	None  Domain = ""
	Admin Domain = "admin"
	User  Domain = "user"
)

// Domains lists every identity domain that owns a session.
var Domains = []Domain{Admin, User}

// ParseDomain converts a CLI or config value into a Domain.
func ParseDomain(value string) (Domain, error) {
	switch Domain(value) {
	case Admin, User:
		return Domain(value), nil
	default:
		return None, fmt.Errorf("unknown domain %q (must be admin or user)", value)
	}
}

// Key is the storage key holding the domain's token.
func (d Domain) Key() string {
	switch d {
	case Admin:
		return "adminToken"
	case User:
		return "authToken"
	default:
		return ""
	}
}

// Label is the human-readable role name, also used as the claims fallback.
func (d Domain) Label() string {
	switch d {
	case Admin:
		return "Admin"
	case User:
		return "User"
	default:
		return "Guest"
	}
}

func (d Domain) String() string {
	if d == None {
		return "none"
	}
	return string(d)
}
