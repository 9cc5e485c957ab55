package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/janmitra/backend/internal/memstore"
	"github.com/janmitra/backend/internal/models"
)

const (
	deptWater = "dept-water"
	deptRoads = "dept-roads"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) GrievanceEvent(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) byAction(action string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	store *memstore.Store
	sink  *recordingSink
	svc   *GrievanceService
	dir   *DirectoryService

	citizen, otherCitizen       *models.Identity
	officerA, officerB, roadsOf *models.Identity
	admin                       *models.Identity
}

func identityOf(p models.Profile) *models.Identity {
	return &models.Identity{UserID: p.ID, Email: p.Email, Role: p.Role, DepartmentID: p.DepartmentID, Active: p.IsActive}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	if _, err := store.UpsertDepartments(ctx, []models.Department{
		{ID: deptWater, Name: "Water Supply Department"},
		{ID: deptRoads, Name: "Public Works Department"},
	}); err != nil {
		t.Fatalf("seed departments: %v", err)
	}

	water, roads := deptWater, deptRoads
	profiles := []models.Profile{
		{ID: "citizen-1", Email: "asha@example.org", Role: models.RoleCitizen, IsActive: true},
		{ID: "citizen-2", Email: "ravi@example.org", Role: models.RoleCitizen, IsActive: true},
		{ID: "officer-a", Email: "a@water.gov.in", Role: models.RoleOfficer, DepartmentID: &water, IsActive: true},
		{ID: "officer-b", Email: "b@water.gov.in", Role: models.RoleOfficer, DepartmentID: &water, IsActive: true},
		{ID: "officer-r", Email: "r@pwd.gov.in", Role: models.RoleOfficer, DepartmentID: &roads, IsActive: true},
		{ID: "admin-1", Email: "admin@janmitra.gov.in", Role: models.RoleAdmin, IsActive: true},
	}
	for _, p := range profiles {
		store.PutProfile(p)
	}

	var (
		mu    sync.Mutex
		clock = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	sink := &recordingSink{}
	f := &fixture{
		store: store,
		sink:  sink,
		svc: &GrievanceService{
			Grievances: store,
			Directory:  store,
			Events:     sink,
			Logger:     zerolog.Nop(),
			Now:        now,
		},
		dir: &DirectoryService{
			Directory:     store,
			Notifications: store,
			Now:           now,
		},
		citizen:      identityOf(profiles[0]),
		otherCitizen: identityOf(profiles[1]),
		officerA:     identityOf(profiles[2]),
		officerB:     identityOf(profiles[3]),
		roadsOf:      identityOf(profiles[4]),
		admin:        identityOf(profiles[5]),
	}
	return f
}

// sequentialCodes hands out JM-000001, JM-000002, ...
func sequentialCodes() CodeGenerator {
	var (
		mu sync.Mutex
		n  int
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("JM-%06d", n), nil
	}
}

func (f *fixture) draft(t *testing.T, owner *models.Identity, summary string) models.Grievance {
	t.Helper()
	g, err := f.svc.CreateOrUpdateDraft(context.Background(), owner, DraftInput{
		ChatHistory: []models.ChatMessage{{Role: "user", Content: summary}},
		Extracted: models.ExtractedData{
			Category:   "Water",
			Priority:   "High",
			Location:   "Sector 4",
			Summary:    summary,
			Department: "water supply department",
		},
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	return g
}

func (f *fixture) submitted(t *testing.T, owner *models.Identity, summary string) models.Grievance {
	t.Helper()
	d := f.draft(t, owner, summary)
	g, err := f.svc.SubmitDraft(context.Background(), owner, d.ID, SubmitInput{})
	if err != nil {
		t.Fatalf("submit draft: %v", err)
	}
	return g
}

func (f *fixture) claimed(t *testing.T, officer *models.Identity) models.Grievance {
	t.Helper()
	g := f.submitted(t, f.citizen, "no water supply since Monday")
	g, err := f.svc.AssignSelf(context.Background(), officer, g.ID)
	if err != nil {
		t.Fatalf("assign self: %v", err)
	}
	return g
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if got := KindOf(err); got != want {
		t.Fatalf("expected %s, got %v", want, err)
	}
}
