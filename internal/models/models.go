package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

var Statuses = []Status{StatusDraft, StatusPending, StatusInProgress, StatusResolved, StatusRejected}

func ParseStatus(v string) (Status, bool) {
	for _, s := range Statuses {
		if string(s) == strings.ToLower(strings.TrimSpace(v)) {
			return s, true
		}
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

type Category string

const (
	CategorySanitation  Category = "Sanitation"
	CategoryRoads       Category = "Roads"
	CategoryElectricity Category = "Electricity"
	CategoryWater       Category = "Water"
	CategoryLawOrder    Category = "Law & Order"
	CategoryOther       Category = "Other"
)

var Categories = []Category{CategorySanitation, CategoryRoads, CategoryElectricity, CategoryWater, CategoryLawOrder, CategoryOther}

// ParseCategory matches case-insensitively; "law and order" is accepted for "Law & Order".
func ParseCategory(v string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(v))
	key = strings.ReplaceAll(key, " and ", " & ")
	for _, c := range Categories {
		if strings.ToLower(string(c)) == key {
			return c, true
		}
	}
	return "", false
}

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func ParsePriority(v string) (Priority, bool) {
	for _, p := range Priorities {
		if strings.EqualFold(string(p), strings.TrimSpace(v)) {
			return p, true
		}
	}
	return "", false
}

type Role string

const (
	RoleCitizen Role = "citizen"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

func ParseRole(v string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(v))) {
	case RoleCitizen:
		return RoleCitizen, true
	case RoleOfficer:
		return RoleOfficer, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// HistoryAssigned marks the self-assignment entry in status_history.
const HistoryAssigned = "assigned"

type HistoryEntry struct {
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExtractedData is the intake snapshot produced by the conversational assistant.
type ExtractedData struct {
	Category   string `json:"category,omitempty"`
	Location   string `json:"location,omitempty"`
	Priority   string `json:"priority,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Department string `json:"department,omitempty"`
	SLAHours   int    `json:"sla_hours,omitempty"`
	Complete   bool   `json:"complete,omitempty"`
}

type Grievance struct {
	ID                string         `json:"id"`
	TrackingID        *string        `json:"tracking_id"`
	UserID            string         `json:"user_id"`
	Status            Status         `json:"status"`
	Category          Category       `json:"category"`
	Priority          Priority       `json:"priority"`
	Location          string         `json:"location"`
	Description       string         `json:"description"`
	DepartmentID      *string        `json:"department_id"`
	AssignedOfficerID *string        `json:"assigned_officer_id"`
	StatusHistory     []HistoryEntry `json:"status_history"`
	InternalNotes     []string       `json:"internal_notes"`
	ChatHistory       []ChatMessage  `json:"chat_history"`
	ExtractedData     ExtractedData  `json:"extracted_data"`
	Latitude          *float64       `json:"latitude,omitempty"`
	Longitude         *float64       `json:"longitude,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	SubmittedAt       *time.Time     `json:"submitted_at"`
}

type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	DepartmentID *string   `json:"department_id"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identity is the acting caller, resolved from a token and its profile.
type Identity struct {
	UserID       string
	Email        string
	Role         Role
	DepartmentID *string
	Active       bool
}

type NotificationType string

const (
	NotificationStatusUpdate NotificationType = "status_update"
	NotificationAssignment   NotificationType = "assignment"
	NotificationBroadcast    NotificationType = "broadcast"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

type AuditEntry struct {
	ID          string         `json:"id"`
	ActorID     string         `json:"actor_id"`
	Action      string         `json:"action"`
	GrievanceID *string        `json:"grievance_id"`
	Details     map[string]any `json:"details"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Stats struct {
	ByStatus   map[Status]int   `json:"by_status"`
	ByCategory map[Category]int `json:"by_category"`
	Total      int              `json:"total"`
}
