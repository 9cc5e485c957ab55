package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/janmitra/backend/internal/models"
)

func assignedEntry(actor *models.Identity, now time.Time) models.HistoryEntry {
	return models.HistoryEntry{
		Status:    models.HistoryAssigned,
		ChangedBy: actor.UserID,
		Timestamp: now.UTC(),
		Note:      "Self-assigned by " + actor.Email,
	}
}

func statusEntry(actor *models.Identity, status models.Status, note string, now time.Time) models.HistoryEntry {
	return models.HistoryEntry{
		Status:    string(status),
		ChangedBy: actor.UserID,
		Timestamp: now.UTC(),
		Note:      strings.TrimSpace(note),
	}
}

func overrideEntry(actor *models.Identity, status models.Status, now time.Time) models.HistoryEntry {
	return statusEntry(actor, status, "Admin override by "+actor.Email, now)
}

// internalNote renders the "[timestamp] email: note" line kept in internal_notes.
func internalNote(actor *models.Identity, note string, now time.Time) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return ""
	}
	return fmt.Sprintf("[%s] %s: %s", now.UTC().Format(time.RFC3339), actor.Email, note)
}

func statusMessage(g models.Grievance, status models.Status, note string) string {
	ref := g.ID
	if g.TrackingID != nil {
		ref = *g.TrackingID
	}
	msg := fmt.Sprintf("Your grievance %s is now %s", ref, strings.ReplaceAll(string(status), "_", " "))
	if note = strings.TrimSpace(note); note != "" {
		msg += ": " + note
	}
	return msg
}
