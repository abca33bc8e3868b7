package utils

import (
	"net/http"
	"slices"

	"treadline/globals"
)

func GetUserIDFromRequest(r *http.Request) string {
	id, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		return ""
	}
	return id
}

// HasRole reports whether the authenticated caller holds role.
func HasRole(r *http.Request, role string) bool {
	roles, _ := r.Context().Value(globals.RoleKey).([]string)
	return slices.Contains(roles, role)
}

func IsAdmin(r *http.Request) bool {
	return HasRole(r, "admin")
}
