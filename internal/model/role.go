package model

import "strings"

// RoleName is one of the fixed authorization roles.  Values match the
// `roles.name` column and the `roles` token claim.
type RoleName string

const (
	RoleUser       RoleName = "USER"
	RoleAdmin      RoleName = "ADMIN"
	RoleSuperAdmin RoleName = "SUPER_ADMIN"
)

// AllRoles lists the reference data seeded into `roles` at startup.
var AllRoles = []RoleName{RoleUser, RoleAdmin, RoleSuperAdmin}

// ParseRoleName maps a case-insensitive name to a RoleName.
func ParseRoleName(s string) (RoleName, bool) {
	r := RoleName(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Role represents a row in the `roles` table.
type Role struct {
	ID   uint8
	Name RoleName
}

// RoleStrings converts roles to plain strings for token claims.
func RoleStrings(roles []RoleName) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
