package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/janmitra/backend/internal/db"
	"github.com/janmitra/backend/internal/models"
)

type GrievanceStore interface {
	CreateGrievance(ctx context.Context, g models.Grievance) (models.Grievance, error)
	UpdateDraft(ctx context.Context, d db.DraftUpdate) (models.Grievance, error)
	GetGrievance(ctx context.Context, id string) (models.Grievance, error)
	GetGrievanceByTrackingID(ctx context.Context, code string) (models.Grievance, error)
	SubmitDraft(ctx context.Context, s db.Submission) (models.Grievance, error)
	ClaimGrievance(ctx context.Context, c db.Claim) (models.Grievance, error)
	TransitionStatus(ctx context.Context, t db.Transition) (models.Grievance, error)
	OverrideGrievance(ctx context.Context, o db.Override) (models.Grievance, error)
	DeleteDraft(ctx context.Context, id, ownerID string) error
	DeleteGrievance(ctx context.Context, id string) error
	ListGrievances(ctx context.Context, f db.GrievanceFilter) ([]models.Grievance, error)
	GrievanceStats(ctx context.Context) (models.Stats, error)
	SetLocationPoint(ctx context.Context, id string, lat, lon float64) error
}

// Locator resolves a free-text location to coordinates.
type Locator interface {
	Locate(ctx context.Context, location string) (lat float64, lon float64, err error)
}

type GrievanceService struct {
	Grievances GrievanceStore
	Directory  DirectoryStore
	Events     EventSink
	Locator    Locator
	Logger     zerolog.Logger
	NewCode    CodeGenerator
	Now        func() time.Time
	// AdminOverrideHistory appends a status_history entry when an admin override changes status.
	AdminOverrideHistory bool
}

const submitAttempts = 3

type DraftInput struct {
	GrievanceID string
	ChatHistory []models.ChatMessage
	Extracted   models.ExtractedData
}

type SubmitInput struct {
	Category     string
	Priority     string
	Location     string
	Description  string
	DepartmentID string
}

type OverrideInput struct {
	DepartmentID      *string
	AssignedOfficerID *string
	Status            *models.Status
}

type ListFilter struct {
	Status       models.Status
	DepartmentID string
	OfficerID    string
	Limit        int
	Offset       int
}

func (s *GrievanceService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *GrievanceService) emit(ctx context.Context, ev Event) {
	if s.Events == nil {
		return
	}
	s.Events.GrievanceEvent(ctx, ev)
}

// CreateOrUpdateDraft creates a new draft for the caller, or overwrites the
// content and intake snapshots of one of the caller's existing drafts.
func (s *GrievanceService) CreateOrUpdateDraft(ctx context.Context, actor *models.Identity, in DraftInput) (models.Grievance, error) {
	if err := requireIdentity(actor); err != nil {
		return models.Grievance{}, err
	}
	category, priority := draftEnums(in.Extracted)
	now := s.now()

	if in.GrievanceID == "" {
		g := models.Grievance{
			ID:            uuid.NewString(),
			UserID:        actor.UserID,
			Status:        models.StatusDraft,
			Category:      category,
			Priority:      priority,
			Location:      strings.TrimSpace(in.Extracted.Location),
			Description:   strings.TrimSpace(in.Extracted.Summary),
			StatusHistory: []models.HistoryEntry{},
			InternalNotes: []string{},
			ChatHistory:   nonNilChat(in.ChatHistory),
			ExtractedData: in.Extracted,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		created, err := s.Grievances.CreateGrievance(ctx, g)
		if err != nil {
			return models.Grievance{}, storeErr(err, "Grievance not found")
		}
		return created, nil
	}

	current, err := s.Grievances.GetGrievance(ctx, in.GrievanceID)
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}
	if err := CanEditDraft(actor, current); err != nil {
		return models.Grievance{}, err
	}
	updated, err := s.Grievances.UpdateDraft(ctx, db.DraftUpdate{
		ID:          current.ID,
		OwnerID:     actor.UserID,
		Category:    category,
		Priority:    priority,
		Location:    strings.TrimSpace(in.Extracted.Location),
		Description: strings.TrimSpace(in.Extracted.Summary),
		ChatHistory: nonNilChat(in.ChatHistory),
		Extracted:   in.Extracted,
		Now:         now,
	})
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrConflict) {
		return models.Grievance{}, Forbidden("Grievance has already been submitted")
	}
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}
	return updated, nil
}

// SubmitDraft turns the caller's draft into a pending, trackable grievance.
func (s *GrievanceService) SubmitDraft(ctx context.Context, actor *models.Identity, id string, in SubmitInput) (models.Grievance, error) {
	if err := requireIdentity(actor); err != nil {
		return models.Grievance{}, err
	}
	current, err := s.Grievances.GetGrievance(ctx, id)
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}
	if err := CanEditDraft(actor, current); err != nil {
		return models.Grievance{}, err
	}

	sub := db.Submission{
		ID:          current.ID,
		OwnerID:     actor.UserID,
		Category:    current.Category,
		Priority:    current.Priority,
		Location:    current.Location,
		Description: current.Description,
	}
	if v := strings.TrimSpace(in.Category); v != "" {
		c, ok := models.ParseCategory(v)
		if !ok {
			return models.Grievance{}, Validation("unknown category " + v)
		}
		sub.Category = c
	}
	if v := strings.TrimSpace(in.Priority); v != "" {
		p, ok := models.ParsePriority(v)
		if !ok {
			return models.Grievance{}, Validation("unknown priority " + v)
		}
		sub.Priority = p
	}
	if v := strings.TrimSpace(in.Location); v != "" {
		sub.Location = v
	}
	if v := strings.TrimSpace(in.Description); v != "" {
		sub.Description = v
	}
	if sub.Description == "" {
		return models.Grievance{}, Validation("summary is required before submitting")
	}
	if sub.Category == "" {
		sub.Category = models.CategoryOther
	}
	if sub.Priority == "" {
		sub.Priority = models.PriorityMedium
	}

	dept, err := s.resolveDepartment(ctx, in.DepartmentID, current.ExtractedData.Department)
	if err != nil {
		return models.Grievance{}, err
	}
	sub.DepartmentID = dept

	newCode := s.NewCode
	if newCode == nil {
		newCode = NewTrackingCode
	}

	var submitted models.Grievance
	for attempt := 1; ; attempt++ {
		code, err := newCode()
		if err != nil {
			return models.Grievance{}, Upstream("failed to generate tracking code", err)
		}
		sub.TrackingID = code
		sub.Now = s.now()
		submitted, err = s.Grievances.SubmitDraft(ctx, sub)
		if err == nil {
			break
		}
		if errors.Is(err, db.ErrDuplicate) && attempt < submitAttempts {
			s.Logger.Warn().Str("grievance_id", id).Int("attempt", attempt).Msg("tracking code collision, retrying")
			continue
		}
		if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrConflict) {
			return models.Grievance{}, Forbidden("Grievance has already been submitted")
		}
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}

	s.emit(ctx, Event{Action: ActionSubmit, Actor: actor, Grievance: submitted, Status: submitted.Status})
	s.locate(ctx, submitted)
	return submitted, nil
}

func (s *GrievanceService) resolveDepartment(ctx context.Context, id string, suggested string) (*string, error) {
	if id = strings.TrimSpace(id); id != "" {
		d, err := s.Directory.GetDepartment(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil, Validation("unknown department " + id)
		}
		if err != nil {
			return nil, storeErr(err, "Department not found")
		}
		return &d.ID, nil
	}
	if suggested = strings.TrimSpace(suggested); suggested != "" {
		d, err := s.Directory.FindDepartmentByName(ctx, suggested)
		if err == nil {
			return &d.ID, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, storeErr(err, "Department not found")
		}
	}
	return nil, nil
}

func (s *GrievanceService) locate(ctx context.Context, g models.Grievance) {
	if s.Locator == nil || strings.TrimSpace(g.Location) == "" {
		return
	}
	lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	lat, lon, err := s.Locator.Locate(lctx, g.Location)
	if err != nil {
		s.Logger.Warn().Err(err).Str("grievance_id", g.ID).Msg("geocoding failed")
		return
	}
	if err := s.Grievances.SetLocationPoint(lctx, g.ID, lat, lon); err != nil {
		s.Logger.Warn().Err(err).Str("grievance_id", g.ID).Msg("failed to store coordinates")
	}
}

// AssignSelf lets an officer claim an unassigned pending grievance in their department.
// The claim is a single compare-and-set; losing a race yields ErrAlreadyAssigned.
func (s *GrievanceService) AssignSelf(ctx context.Context, actor *models.Identity, id string) (models.Grievance, error) {
	if err := requireRole(actor, models.RoleOfficer); err != nil {
		return models.Grievance{}, err
	}
	current, err := s.Grievances.GetGrievance(ctx, id)
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}
	if current.Status == models.StatusDraft {
		return models.Grievance{}, NotFound("Grievance not found")
	}
	if err := CanSelfAssign(actor, current); err != nil {
		return models.Grievance{}, err
	}

	claimed, err := s.Grievances.ClaimGrievance(ctx, db.Claim{
		ID:           current.ID,
		OfficerID:    actor.UserID,
		DepartmentID: *current.DepartmentID,
		Entry:        assignedEntry(actor, s.now()),
		Now:          s.now(),
	})
	if errors.Is(err, db.ErrConflict) {
		return models.Grievance{}, s.claimConflict(ctx, id)
	}
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}

	s.emit(ctx, Event{Action: ActionSelfAssign, Actor: actor, Grievance: claimed, Status: claimed.Status})
	return claimed, nil
}

func (s *GrievanceService) claimConflict(ctx context.Context, id string) error {
	latest, err := s.Grievances.GetGrievance(ctx, id)
	if err != nil || latest.AssignedOfficerID != nil {
		return ErrAlreadyAssigned
	}
	return Conflict("Grievance is no longer pending")
}

// UpdateStatus records an officer or admin status change. History, internal
// note and status are written together; the owner is notified afterwards.
func (s *GrievanceService) UpdateStatus(ctx context.Context, actor *models.Identity, id string, to models.Status, note string) (models.Grievance, error) {
	if err := requireRole(actor, models.RoleOfficer, models.RoleAdmin); err != nil {
		return models.Grievance{}, err
	}
	current, err := s.Grievances.GetGrievance(ctx, id)
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}
	if !CanView(actor, current) {
		return models.Grievance{}, NotFound("Grievance not found")
	}
	if err := CanUpdateStatus(actor, current); err != nil {
		return models.Grievance{}, err
	}
	if err := checkStatusUpdate(current.Status, to); err != nil {
		return models.Grievance{}, err
	}

	now := s.now()
	t := db.Transition{
		ID:    current.ID,
		From:  current.Status,
		To:    to,
		Entry: statusEntry(actor, to, note, now),
		Note:  internalNote(actor, note, now),
		Now:   now,
	}
	if actor.Role == models.RoleOfficer {
		t.OfficerID = &actor.UserID
	}
	updated, err := s.Grievances.TransitionStatus(ctx, t)
	if errors.Is(err, db.ErrConflict) {
		return models.Grievance{}, Conflict("Grievance was changed by someone else; reload and retry")
	}
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}

	s.emit(ctx, Event{
		Action:      ActionUpdateStatus,
		Actor:       actor,
		Grievance:   updated,
		Status:      to,
		Note:        note,
		NotifyUsers: []string{updated.UserID},
		Message:     statusMessage(updated, to, note),
		Type:        models.NotificationStatusUpdate,
	})
	return updated, nil
}

// AdminOverride directly rewrites department, assignee and status. It skips
// the officer-path history and owner notification unless AdminOverrideHistory is set.
func (s *GrievanceService) AdminOverride(ctx context.Context, actor *models.Identity, id string, in OverrideInput) (models.Grievance, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return models.Grievance{}, err
	}
	current, err := s.Grievances.GetGrievance(ctx, id)
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}

	o := db.Override{
		ID:                current.ID,
		DepartmentID:      in.DepartmentID,
		AssignedOfficerID: in.AssignedOfficerID,
		Status:            in.Status,
		ExpectStatus:      current.Status,
		ExpectDepartment:  current.DepartmentID,
		ExpectOfficer:     current.AssignedOfficerID,
		Now:               s.now(),
	}
	if in.Status != nil && !CanTransition(TriggerAdminOverride, current.Status, *in.Status) {
		if current.Status == models.StatusDraft {
			return models.Grievance{}, Validation("drafts can only leave draft by being submitted")
		}
		return models.Grievance{}, Validation("status cannot be set back to draft")
	}

	effectiveStatus := current.Status
	if in.Status != nil {
		effectiveStatus = *in.Status
	}
	effectiveDept := current.DepartmentID
	if in.DepartmentID != nil {
		effectiveDept = nil
		if *in.DepartmentID != "" {
			d, err := s.Directory.GetDepartment(ctx, *in.DepartmentID)
			if errors.Is(err, db.ErrNotFound) {
				return models.Grievance{}, Validation("unknown department " + *in.DepartmentID)
			}
			if err != nil {
				return models.Grievance{}, storeErr(err, "Department not found")
			}
			effectiveDept = &d.ID
		}
	}
	effectiveOfficer := current.AssignedOfficerID
	if in.AssignedOfficerID != nil {
		effectiveOfficer = nil
		if *in.AssignedOfficerID != "" {
			effectiveOfficer = in.AssignedOfficerID
		}
	}

	if effectiveStatus == models.StatusDraft && (effectiveDept != nil || effectiveOfficer != nil) {
		return models.Grievance{}, Validation("draft grievances cannot be routed")
	}
	if effectiveOfficer != nil && (in.AssignedOfficerID != nil || in.DepartmentID != nil) {
		if err := s.checkOfficerFits(ctx, *effectiveOfficer, effectiveDept); err != nil {
			return models.Grievance{}, err
		}
	}

	if s.AdminOverrideHistory && in.Status != nil && *in.Status != current.Status {
		entry := overrideEntry(actor, *in.Status, o.Now)
		o.Entry = &entry
	}

	updated, err := s.Grievances.OverrideGrievance(ctx, o)
	if errors.Is(err, db.ErrConflict) {
		return models.Grievance{}, Conflict("Grievance was changed by someone else; reload and retry")
	}
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}

	ev := Event{Action: ActionAdminOverride, Actor: actor, Grievance: updated, Status: updated.Status}
	if updated.AssignedOfficerID != nil && !sameRef(updated.AssignedOfficerID, current.AssignedOfficerID) {
		ev.NotifyUsers = []string{*updated.AssignedOfficerID}
		ev.Message = "A grievance has been assigned to you: " + updated.Description
		ev.Type = models.NotificationAssignment
	}
	s.emit(ctx, ev)
	return updated, nil
}

func (s *GrievanceService) checkOfficerFits(ctx context.Context, officerID string, dept *string) error {
	if dept == nil {
		return Validation("assign a department before assigning an officer")
	}
	p, err := s.Directory.GetProfile(ctx, officerID)
	if errors.Is(err, db.ErrNotFound) {
		return Validation("unknown officer " + officerID)
	}
	if err != nil {
		return storeErr(err, "Profile not found")
	}
	if p.Role != models.RoleOfficer || !p.IsActive {
		return Validation("assignee must be an active officer")
	}
	if !sameRef(p.DepartmentID, dept) {
		return Validation("assignee is outside the grievance's department")
	}
	return nil
}

// LookupByTrackingCode returns nil when no submitted grievance carries the code.
func (s *GrievanceService) LookupByTrackingCode(ctx context.Context, code string) (*models.Grievance, error) {
	code = NormalizeTrackingCode(code)
	if !ValidTrackingCode(code) {
		return nil, nil
	}
	g, err := s.Grievances.GetGrievanceByTrackingID(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err, "Grievance not found")
	}
	if g.Status == models.StatusDraft {
		return nil, nil
	}
	return &g, nil
}

func (s *GrievanceService) DeleteDraft(ctx context.Context, actor *models.Identity, id string) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	current, err := s.Grievances.GetGrievance(ctx, id)
	if err != nil {
		return storeErr(err, "Grievance not found")
	}
	if err := CanEditDraft(actor, current); err != nil {
		return err
	}
	if err := s.Grievances.DeleteDraft(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Forbidden("Grievance has already been submitted")
		}
		return storeErr(err, "Grievance not found")
	}
	s.emit(ctx, Event{Action: ActionDelete, Actor: actor, Grievance: current, Status: current.Status})
	return nil
}

func (s *GrievanceService) DeleteGrievance(ctx context.Context, actor *models.Identity, id string) error {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return err
	}
	current, err := s.Grievances.GetGrievance(ctx, id)
	if err != nil {
		return storeErr(err, "Grievance not found")
	}
	if err := s.Grievances.DeleteGrievance(ctx, id); err != nil {
		return storeErr(err, "Grievance not found")
	}
	s.emit(ctx, Event{Action: ActionDelete, Actor: actor, Grievance: current, Status: current.Status})
	return nil
}

func (s *GrievanceService) GetGrievance(ctx context.Context, actor *models.Identity, id string) (models.Grievance, error) {
	if err := requireIdentity(actor); err != nil {
		return models.Grievance{}, err
	}
	g, err := s.Grievances.GetGrievance(ctx, id)
	if err != nil {
		return models.Grievance{}, storeErr(err, "Grievance not found")
	}
	if !CanView(actor, g) {
		return models.Grievance{}, NotFound("Grievance not found")
	}
	return g, nil
}

func (s *GrievanceService) ListGrievances(ctx context.Context, actor *models.Identity, f ListFilter) ([]models.Grievance, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	filter := db.GrievanceFilter{Status: f.Status, Limit: f.Limit, Offset: f.Offset}
	switch actor.Role {
	case models.RoleCitizen:
		filter.OwnerID = actor.UserID
		filter.IncludeDrafts = true
	case models.RoleOfficer:
		filter.QueueOfficerID = actor.UserID
		if actor.DepartmentID != nil {
			filter.QueueDepartmentID = *actor.DepartmentID
		}
	case models.RoleAdmin:
		filter.DepartmentID = f.DepartmentID
		filter.AssignedOfficerID = f.OfficerID
		filter.IncludeDrafts = f.Status == models.StatusDraft
	default:
		return nil, Forbidden("Unknown role")
	}
	items, err := s.Grievances.ListGrievances(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "Grievance not found")
	}
	return items, nil
}

func (s *GrievanceService) Stats(ctx context.Context, actor *models.Identity) (models.Stats, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return models.Stats{}, err
	}
	st, err := s.Grievances.GrievanceStats(ctx)
	if err != nil {
		return models.Stats{}, storeErr(err, "Stats not found")
	}
	return st, nil
}

func draftEnums(x models.ExtractedData) (models.Category, models.Priority) {
	category, ok := models.ParseCategory(x.Category)
	if !ok {
		category = models.CategoryOther
	}
	priority, ok := models.ParsePriority(x.Priority)
	if !ok {
		priority = models.PriorityMedium
	}
	return category, priority
}

func nonNilChat(h []models.ChatMessage) []models.ChatMessage {
	if h == nil {
		return []models.ChatMessage{}
	}
	return h
}

func storeErr(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return NotFound(notFoundMsg)
	case errors.Is(err, db.ErrReferenced):
		return Referential("record is referenced by other records", err)
	case errors.Is(err, db.ErrDuplicate):
		return Conflict("record already exists")
	case errors.Is(err, db.ErrConflict):
		return Conflict("record was changed concurrently")
	}
	return Upstream("store request failed", err)
}
