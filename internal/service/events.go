package service

import (
	"context"

	"github.com/janmitra/backend/internal/models"
)

const (
	ActionSubmit        = "grievance.submit"
	ActionSelfAssign    = "grievance.self_assign"
	ActionUpdateStatus  = "grievance.update_status"
	ActionAdminOverride = "grievance.admin_override"
	ActionDelete        = "grievance.delete"
)

// Event describes a committed transition. Sinks run after the primary write
// and must not fail the operation that produced the event.
type Event struct {
	Action    string
	Actor     *models.Identity
	Grievance models.Grievance
	Status    models.Status
	Note      string

	NotifyUsers []string
	Message     string
	Type        models.NotificationType
}

type EventSink interface {
	GrievanceEvent(ctx context.Context, ev Event)
}
