package service

import (
	"github.com/janmitra/backend/internal/models"
)

// Trigger names the action that drives a lifecycle transition.
type Trigger string

const (
	TriggerSubmit        Trigger = "submit"
	TriggerSelfAssign    Trigger = "self_assign"
	TriggerUpdateStatus  Trigger = "update_status"
	TriggerAdminOverride Trigger = "admin_override"
)

var officerTransitions = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusInProgress, models.StatusResolved, models.StatusRejected},
	models.StatusInProgress: {models.StatusInProgress, models.StatusResolved, models.StatusRejected},
}

// CanTransition reports whether from -> to is a legal move for the given trigger.
// Admin overrides may move anywhere except back into draft.
func CanTransition(trigger Trigger, from, to models.Status) bool {
	switch trigger {
	case TriggerSubmit:
		return from == models.StatusDraft && to == models.StatusPending
	case TriggerSelfAssign:
		return from == models.StatusPending && to == models.StatusInProgress
	case TriggerUpdateStatus:
		for _, s := range officerTransitions[from] {
			if s == to {
				return true
			}
		}
		return false
	case TriggerAdminOverride:
		// drafts only leave draft through submit
		return from != models.StatusDraft && to != models.StatusDraft
	}
	return false
}

// NextStatuses lists the statuses an officer may move a grievance to from its current one.
func NextStatuses(from models.Status) []models.Status {
	next := officerTransitions[from]
	out := make([]models.Status, len(next))
	copy(out, next)
	return out
}

func checkStatusUpdate(from, to models.Status) error {
	if to == models.StatusDraft || to == models.StatusPending {
		return Validation("status must be one of in_progress, resolved, rejected")
	}
	if from.Terminal() {
		return Conflict("grievance is already " + string(from))
	}
	if !CanTransition(TriggerUpdateStatus, from, to) {
		return Conflict("cannot move grievance from " + string(from) + " to " + string(to))
	}
	return nil
}
