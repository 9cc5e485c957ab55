package db

import (
	"time"

	"github.com/janmitra/backend/internal/models"
)

type DraftUpdate struct {
	ID          string
	OwnerID     string
	Category    models.Category
	Priority    models.Priority
	Location    string
	Description string
	ChatHistory []models.ChatMessage
	Extracted   models.ExtractedData
	Now         time.Time
}

type Submission struct {
	ID           string
	OwnerID      string
	TrackingID   string
	Category     models.Category
	Priority     models.Priority
	Location     string
	Description  string
	DepartmentID *string
	Now          time.Time
}

// Claim sets the assignee only while the grievance is pending, unassigned and in DepartmentID.
type Claim struct {
	ID           string
	OfficerID    string
	DepartmentID string
	Entry        models.HistoryEntry
	Now          time.Time
}

// Transition moves status From -> To in one statement together with its history entry.
// When OfficerID is set the row must also be assigned to that officer.
type Transition struct {
	ID        string
	From      models.Status
	To        models.Status
	OfficerID *string
	Entry     models.HistoryEntry
	Note      string
	Now       time.Time
}

// Override fields left nil are unchanged; an empty string clears a reference.
// The row must still hold the Expect* values read before validation.
type Override struct {
	ID                string
	DepartmentID      *string
	AssignedOfficerID *string
	Status            *models.Status
	Entry             *models.HistoryEntry
	ExpectStatus      models.Status
	ExpectDepartment  *string
	ExpectOfficer     *string
	Now               time.Time
}

type GrievanceFilter struct {
	OwnerID string
	// QueueDepartmentID and QueueOfficerID are OR-ed: department queue or personal queue.
	QueueDepartmentID string
	QueueOfficerID    string
	Status            models.Status
	DepartmentID      string
	AssignedOfficerID string
	IncludeDrafts     bool
	Limit             int
	Offset            int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// PageBounds returns the limit and offset a list query actually applies.
func PageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type ProfileUpdate struct {
	Role         *models.Role
	DepartmentID *string
	IsActive     *bool
	FullName     *string
}
