// Package access decides who may view an application. The rules are pure
// functions over the application, its current assignment and the caller, so
// they can be evaluated anywhere without touching storage.
package access

import (
	"casework-workers/internal/models"
)

// CanView reports whether user may read app. Owners always may. Before
// submission only the owner may. After submission the current assignment
// widens access to the assigned officer and to anyone at the assigned
// location; when no assignment is recorded yet the application's origin
// location stands in for it.
func CanView(user models.User, app *models.Application, current *models.AssignmentPeriod) bool {
	if user.Username == app.Owner {
		return true
	}
	if !app.IsSubmitted() {
		return false
	}
	if current == nil {
		return user.ActiveLocation == app.OriginLocation
	}
	if current.Officer != nil && *current.Officer == user.Username {
		return true
	}
	return user.ActiveLocation == current.Location
}
