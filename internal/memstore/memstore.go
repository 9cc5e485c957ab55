// Package memstore is an in-process implementation of the grievance store.
// Every conditional write mirrors the guard of the matching SQL statement in
// package db, so it can stand in for Postgres in tests and local development.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/janmitra/backend/internal/db"
	"github.com/janmitra/backend/internal/models"
)

type Store struct {
	mu            sync.Mutex
	grievances    map[string]models.Grievance
	profiles      map[string]models.Profile
	departments   map[string]models.Department
	notifications []models.Notification
	audit         []models.AuditEntry
}

func New() *Store {
	return &Store{
		grievances:  map[string]models.Grievance{},
		profiles:    map[string]models.Profile{},
		departments: map[string]models.Department{},
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() {}

func clone(g models.Grievance) models.Grievance {
	g.StatusHistory = append([]models.HistoryEntry{}, g.StatusHistory...)
	g.InternalNotes = append([]string{}, g.InternalNotes...)
	g.ChatHistory = append([]models.ChatMessage{}, g.ChatHistory...)
	g.TrackingID = cloneRef(g.TrackingID)
	g.DepartmentID = cloneRef(g.DepartmentID)
	g.AssignedOfficerID = cloneRef(g.AssignedOfficerID)
	return g
}

func cloneRef(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func ref(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// sameRef treats two nils as equal, like IS NOT DISTINCT FROM.
func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func refEq(a *string, b string) bool {
	return a != nil && *a == b
}

func (s *Store) CreateGrievance(ctx context.Context, g models.Grievance) (models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grievances[g.ID]; ok {
		return models.Grievance{}, db.ErrDuplicate
	}
	if _, ok := s.profiles[g.UserID]; !ok {
		return models.Grievance{}, db.ErrReferenced
	}
	g = clone(g)
	s.grievances[g.ID] = g
	return clone(g), nil
}

func (s *Store) UpdateDraft(ctx context.Context, d db.DraftUpdate) (models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[d.ID]
	if !ok || g.UserID != d.OwnerID || g.Status != models.StatusDraft {
		return models.Grievance{}, db.ErrConflict
	}
	g.Category = d.Category
	g.Priority = d.Priority
	g.Location = d.Location
	g.Description = d.Description
	g.ChatHistory = append([]models.ChatMessage{}, d.ChatHistory...)
	g.ExtractedData = d.Extracted
	g.UpdatedAt = d.Now
	s.grievances[g.ID] = g
	return clone(g), nil
}

func (s *Store) GetGrievance(ctx context.Context, id string) (models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[id]
	if !ok {
		return models.Grievance{}, db.ErrNotFound
	}
	return clone(g), nil
}

func (s *Store) GetGrievanceByTrackingID(ctx context.Context, code string) (models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grievances {
		if refEq(g.TrackingID, code) {
			return clone(g), nil
		}
	}
	return models.Grievance{}, db.ErrNotFound
}

func (s *Store) SubmitDraft(ctx context.Context, sub db.Submission) (models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[sub.ID]
	if !ok || g.UserID != sub.OwnerID || g.Status != models.StatusDraft {
		return models.Grievance{}, db.ErrConflict
	}
	for id, other := range s.grievances {
		if id != sub.ID && refEq(other.TrackingID, sub.TrackingID) {
			return models.Grievance{}, db.ErrDuplicate
		}
	}
	if sub.DepartmentID != nil {
		if _, ok := s.departments[*sub.DepartmentID]; !ok {
			return models.Grievance{}, db.ErrReferenced
		}
	}
	now := sub.Now
	g.Status = models.StatusPending
	g.TrackingID = ref(sub.TrackingID)
	g.Category = sub.Category
	g.Priority = sub.Priority
	g.Location = sub.Location
	g.Description = sub.Description
	g.DepartmentID = cloneRef(sub.DepartmentID)
	g.SubmittedAt = &now
	g.UpdatedAt = now
	s.grievances[g.ID] = g
	return clone(g), nil
}

func (s *Store) ClaimGrievance(ctx context.Context, c db.Claim) (models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[c.ID]
	if !ok || g.Status != models.StatusPending || g.AssignedOfficerID != nil || !refEq(g.DepartmentID, c.DepartmentID) {
		return models.Grievance{}, db.ErrConflict
	}
	g = clone(g)
	g.AssignedOfficerID = ref(c.OfficerID)
	g.Status = models.StatusInProgress
	g.StatusHistory = append(g.StatusHistory, c.Entry)
	g.UpdatedAt = c.Now
	s.grievances[g.ID] = g
	return clone(g), nil
}

func (s *Store) TransitionStatus(ctx context.Context, t db.Transition) (models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[t.ID]
	if !ok || g.Status != t.From || (t.OfficerID != nil && !refEq(g.AssignedOfficerID, *t.OfficerID)) {
		return models.Grievance{}, db.ErrConflict
	}
	g = clone(g)
	g.Status = t.To
	g.StatusHistory = append(g.StatusHistory, t.Entry)
	if t.Note != "" {
		g.InternalNotes = append(g.InternalNotes, t.Note)
	}
	g.UpdatedAt = t.Now
	s.grievances[g.ID] = g
	return clone(g), nil
}

func (s *Store) OverrideGrievance(ctx context.Context, o db.Override) (models.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[o.ID]
	if !ok {
		return models.Grievance{}, db.ErrNotFound
	}
	if g.Status != o.ExpectStatus || !sameRef(g.DepartmentID, o.ExpectDepartment) || !sameRef(g.AssignedOfficerID, o.ExpectOfficer) {
		return models.Grievance{}, db.ErrConflict
	}
	g = clone(g)
	if o.DepartmentID != nil {
		g.DepartmentID = ref(*o.DepartmentID)
		if g.DepartmentID != nil {
			if _, ok := s.departments[*g.DepartmentID]; !ok {
				return models.Grievance{}, db.ErrReferenced
			}
		}
	}
	if o.AssignedOfficerID != nil {
		g.AssignedOfficerID = ref(*o.AssignedOfficerID)
	}
	if o.Status != nil {
		g.Status = *o.Status
	}
	if o.Entry != nil {
		g.StatusHistory = append(g.StatusHistory, *o.Entry)
	}
	g.UpdatedAt = o.Now
	s.grievances[g.ID] = g
	return clone(g), nil
}

func (s *Store) DeleteDraft(ctx context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[id]
	if !ok || g.UserID != ownerID || g.Status != models.StatusDraft {
		return db.ErrNotFound
	}
	delete(s.grievances, id)
	return nil
}

func (s *Store) DeleteGrievance(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grievances[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.grievances, id)
	return nil
}

func (s *Store) SetLocationPoint(ctx context.Context, id string, lat, lon float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[id]
	if !ok {
		return nil
	}
	g.Latitude = &lat
	g.Longitude = &lon
	s.grievances[id] = g
	return nil
}

func (s *Store) ListGrievances(ctx context.Context, f db.GrievanceFilter) ([]models.Grievance, error) {
	f.Limit, f.Offset = db.PageBounds(f.Limit, f.Offset)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Grievance{}
	for _, g := range s.grievances {
		if f.OwnerID != "" && g.UserID != f.OwnerID {
			continue
		}
		if f.QueueDepartmentID != "" || f.QueueOfficerID != "" {
			inDept := f.QueueDepartmentID != "" && refEq(g.DepartmentID, f.QueueDepartmentID)
			inOwn := f.QueueOfficerID != "" && refEq(g.AssignedOfficerID, f.QueueOfficerID)
			if !inDept && !inOwn {
				continue
			}
		}
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if !f.IncludeDrafts && g.Status == models.StatusDraft {
			continue
		}
		if f.DepartmentID != "" && !refEq(g.DepartmentID, f.DepartmentID) {
			continue
		}
		if f.AssignedOfficerID != "" && !refEq(g.AssignedOfficerID, f.AssignedOfficerID) {
			continue
		}
		out = append(out, clone(g))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset >= len(out) {
		return []models.Grievance{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountOpenAssignments(ctx context.Context, officerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, g := range s.grievances {
		if refEq(g.AssignedOfficerID, officerID) && (g.Status == models.StatusPending || g.Status == models.StatusInProgress) {
			n++
		}
	}
	return n, nil
}

func (s *Store) GrievanceStats(ctx context.Context) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := models.Stats{ByStatus: map[models.Status]int{}, ByCategory: map[models.Category]int{}}
	for _, g := range s.grievances {
		if g.Status == models.StatusDraft {
			continue
		}
		st.ByStatus[g.Status]++
		st.ByCategory[g.Category]++
		st.Total++
	}
	return st, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return models.Profile{}, db.ErrNotFound
	}
	return p, nil
}

func (s *Store) EnsureProfile(ctx context.Context, id, email string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		p = models.Profile{ID: id, Email: email, Role: models.RoleCitizen, IsActive: true, CreatedAt: time.Now().UTC()}
	} else if p.Email == "" {
		p.Email = email
	}
	s.profiles[id] = p
	return p, nil
}

// PutProfile seeds or replaces a profile.
func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.ID] = p
}

func (s *Store) ListProfiles(ctx context.Context, role models.Role) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Profile{}
	for _, p := range s.profiles {
		if role == "" || p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, u db.ProfileUpdate) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return models.Profile{}, db.ErrNotFound
	}
	if u.Role != nil {
		p.Role = *u.Role
	}
	if u.DepartmentID != nil {
		p.DepartmentID = ref(*u.DepartmentID)
		if p.DepartmentID != nil {
			if _, ok := s.departments[*p.DepartmentID]; !ok {
				return models.Profile{}, db.ErrReferenced
			}
		}
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	s.profiles[id] = p
	return p, nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]models.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Department, 0, len(s.departments))
	for _, d := range s.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetDepartment(ctx context.Context, id string) (models.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.departments[id]
	if !ok {
		return models.Department{}, db.ErrNotFound
	}
	return d, nil
}

func (s *Store) FindDepartmentByName(ctx context.Context, name string) (models.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.departmentByName(name); ok {
		return d, nil
	}
	return models.Department{}, db.ErrNotFound
}

func (s *Store) departmentByName(name string) (models.Department, bool) {
	for _, d := range s.departments {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return models.Department{}, false
}

func (s *Store) CreateDepartment(ctx context.Context, d models.Department) (models.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.departments[d.ID]; ok {
		return models.Department{}, db.ErrDuplicate
	}
	for _, other := range s.departments {
		if other.Name == d.Name {
			return models.Department{}, db.ErrDuplicate
		}
	}
	s.departments[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDepartment(ctx context.Context, d models.Department) (models.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.departments[d.ID]
	if !ok {
		return models.Department{}, db.ErrNotFound
	}
	for id, other := range s.departments {
		if id != d.ID && other.Name == d.Name {
			return models.Department{}, db.ErrDuplicate
		}
	}
	current.Name = d.Name
	current.Description = d.Description
	s.departments[d.ID] = current
	return current, nil
}

func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.departments[id]; !ok {
		return db.ErrNotFound
	}
	for _, g := range s.grievances {
		if refEq(g.DepartmentID, id) {
			return db.ErrReferenced
		}
	}
	for _, p := range s.profiles {
		if refEq(p.DepartmentID, id) {
			return db.ErrReferenced
		}
	}
	delete(s.departments, id)
	return nil
}

func (s *Store) UpsertDepartments(ctx context.Context, departments []models.Department) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range departments {
		if existing, ok := s.departmentByName(d.Name); ok {
			existing.Description = d.Description
			s.departments[existing.ID] = existing
			continue
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}
		s.departments[d.ID] = d
	}
	return len(departments), nil
}

func (s *Store) InsertNotification(ctx context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[n.UserID]; !ok {
		return db.ErrReferenced
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *Store) InsertBroadcast(ctx context.Context, role models.Role, message string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, p := range s.profiles {
		if !p.IsActive || (role != "" && p.Role != role) {
			continue
		}
		s.notifications = append(s.notifications, models.Notification{
			ID:        uuid.NewString(),
			UserID:    p.ID,
			Message:   message,
			Type:      models.NotificationBroadcast,
			CreatedAt: now,
		})
		n++
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	limit, _ = db.PageBounds(limit, 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].Read = true
			return nil
		}
	}
	return db.ErrNotFound
}

func (s *Store) AppendAudit(ctx context.Context, e models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// Audit returns a copy of the audit log in append order.
func (s *Store) Audit() []models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditEntry{}, s.audit...)
}
