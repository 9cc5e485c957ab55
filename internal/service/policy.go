package service

import (
	"github.com/janmitra/backend/internal/models"
)

func requireIdentity(id *models.Identity) error {
	if id == nil || id.UserID == "" {
		return Unauthorized()
	}
	if !id.Active {
		return Forbidden("Account is deactivated")
	}
	return nil
}

func requireRole(id *models.Identity, roles ...models.Role) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	for _, r := range roles {
		if id.Role == r {
			return nil
		}
	}
	return Forbidden("Role " + string(id.Role) + " may not perform this action")
}

func sameRef(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

// CanView applies the per-role read rules for a single grievance.
func CanView(id *models.Identity, g models.Grievance) bool {
	if id == nil {
		return false
	}
	switch id.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCitizen:
		return g.UserID == id.UserID
	case models.RoleOfficer:
		if g.Status == models.StatusDraft {
			return false
		}
		return inDepartmentQueue(id, g) || inPersonalQueue(id, g)
	}
	return false
}

func inDepartmentQueue(id *models.Identity, g models.Grievance) bool {
	return sameRef(id.DepartmentID, g.DepartmentID)
}

func inPersonalQueue(id *models.Identity, g models.Grievance) bool {
	return g.AssignedOfficerID != nil && *g.AssignedOfficerID == id.UserID
}

// CanSelfAssign checks the officer guard for claiming a grievance. The
// unassigned check here is advisory; the store enforces it atomically.
func CanSelfAssign(id *models.Identity, g models.Grievance) error {
	if err := requireRole(id, models.RoleOfficer); err != nil {
		return err
	}
	if g.DepartmentID == nil || !inDepartmentQueue(id, g) {
		return Forbidden("Grievance is not in your department queue")
	}
	if g.AssignedOfficerID != nil {
		return ErrAlreadyAssigned
	}
	if g.Status != models.StatusPending {
		return Conflict("only pending grievances can be claimed")
	}
	return nil
}

// CanUpdateStatus: officers only on grievances assigned to them, admins always.
func CanUpdateStatus(id *models.Identity, g models.Grievance) error {
	if err := requireRole(id, models.RoleOfficer, models.RoleAdmin); err != nil {
		return err
	}
	if id.Role == models.RoleOfficer && !inPersonalQueue(id, g) {
		return Forbidden("Grievance is not assigned to you")
	}
	return nil
}

func CanEditDraft(id *models.Identity, g models.Grievance) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	if g.UserID != id.UserID {
		return NotFound("Grievance not found")
	}
	if g.Status != models.StatusDraft {
		return Forbidden("Grievance has already been submitted")
	}
	return nil
}
