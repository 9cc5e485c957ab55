package db

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/janmitra/backend/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := New(ctx, url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

type seeded struct {
	dept      models.Department
	citizen   models.Profile
	officers  []models.Profile
	grievance models.Grievance
}

// seed creates a department, a citizen, officers in the department and one pending grievance.
func seed(t *testing.T, s *Store, officers int) seeded {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	now := time.Now().UTC()

	dept, err := s.CreateDepartment(ctx, models.Department{ID: uuid.NewString(), Name: "Water " + suffix, CreatedAt: now})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	citizen, err := s.EnsureProfile(ctx, "citizen-"+suffix, "c-"+suffix+"@example.org")
	if err != nil {
		t.Fatalf("ensure citizen: %v", err)
	}
	out := seeded{dept: dept, citizen: citizen}
	officer := models.RoleOfficer
	for i := 0; i < officers; i++ {
		id := uuid.NewString()
		if _, err := s.EnsureProfile(ctx, id, id+"@water.gov.in"); err != nil {
			t.Fatalf("ensure officer: %v", err)
		}
		p, err := s.UpdateProfile(ctx, id, ProfileUpdate{Role: &officer, DepartmentID: &dept.ID})
		if err != nil {
			t.Fatalf("promote officer: %v", err)
		}
		out.officers = append(out.officers, p)
	}

	g, err := s.CreateGrievance(ctx, models.Grievance{
		ID:            uuid.NewString(),
		UserID:        citizen.ID,
		Status:        models.StatusDraft,
		Category:      models.CategoryWater,
		Priority:      models.PriorityHigh,
		StatusHistory: []models.HistoryEntry{},
		InternalNotes: []string{},
		ChatHistory:   []models.ChatMessage{{Role: "user", Content: "no water"}},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("create grievance: %v", err)
	}
	g, err = s.SubmitDraft(ctx, Submission{
		ID:           g.ID,
		OwnerID:      citizen.ID,
		TrackingID:   "JM-" + suffix[:6],
		Category:     g.Category,
		Priority:     g.Priority,
		Location:     "Sector 4",
		Description:  "No water since Monday",
		DepartmentID: &dept.ID,
		Now:          now,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	out.grievance = g
	return out
}

func TestSubmitOnlyOnce(t *testing.T) {
	s := testStore(t)
	fx := seed(t, s, 0)
	_, err := s.SubmitDraft(context.Background(), Submission{
		ID:         fx.grievance.ID,
		OwnerID:    fx.citizen.ID,
		TrackingID: "JM-" + uuid.NewString()[:6],
		Now:        time.Now().UTC(),
	})
	if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected conditional failure, got %v", err)
	}
	got, err := s.GetGrievanceByTrackingID(context.Background(), *fx.grievance.TrackingID)
	if err != nil || got.ID != fx.grievance.ID {
		t.Fatalf("lookup by tracking id: %v %+v", err, got)
	}
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	s := testStore(t)
	fx := seed(t, s, 6)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for _, o := range fx.officers {
		wg.Add(1)
		go func(officerID string) {
			defer wg.Done()
			now := time.Now().UTC()
			_, err := s.ClaimGrievance(context.Background(), Claim{
				ID:           fx.grievance.ID,
				OfficerID:    officerID,
				DepartmentID: fx.dept.ID,
				Entry:        models.HistoryEntry{Status: models.HistoryAssigned, ChangedBy: officerID, Timestamp: now},
				Now:          now,
			})
			if err == nil {
				mu.Lock()
				winners = append(winners, officerID)
				mu.Unlock()
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}(o.ID)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
	g, err := s.GetGrievance(context.Background(), fx.grievance.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.AssignedOfficerID == nil || *g.AssignedOfficerID != winners[0] || g.Status != models.StatusInProgress {
		t.Fatalf("unexpected state after claim: %+v", g)
	}
	if len(g.StatusHistory) != 1 {
		t.Fatalf("expected one history entry, got %d", len(g.StatusHistory))
	}
}

func TestTransitionGuards(t *testing.T) {
	s := testStore(t)
	fx := seed(t, s, 2)
	ctx := context.Background()
	owner, other := fx.officers[0].ID, fx.officers[1].ID
	now := time.Now().UTC()

	if _, err := s.ClaimGrievance(ctx, Claim{ID: fx.grievance.ID, OfficerID: owner, DepartmentID: fx.dept.ID,
		Entry: models.HistoryEntry{Status: models.HistoryAssigned, ChangedBy: owner, Timestamp: now}, Now: now}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	resolve := func(from models.Status, officer string) error {
		_, err := s.TransitionStatus(ctx, Transition{
			ID: fx.grievance.ID, From: from, To: models.StatusResolved, OfficerID: &officer,
			Entry: models.HistoryEntry{Status: string(models.StatusResolved), ChangedBy: officer, Timestamp: now},
			Note:  "fixed", Now: now,
		})
		return err
	}
	if err := resolve(models.StatusPending, owner); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale from-status: expected ErrConflict, got %v", err)
	}
	if err := resolve(models.StatusInProgress, other); !errors.Is(err, ErrConflict) {
		t.Fatalf("foreign officer: expected ErrConflict, got %v", err)
	}
	if err := resolve(models.StatusInProgress, owner); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	g, _ := s.GetGrievance(ctx, fx.grievance.ID)
	if g.Status != models.StatusResolved || len(g.StatusHistory) != 2 || len(g.InternalNotes) != 1 {
		t.Fatalf("unexpected state: status=%s history=%d notes=%d", g.Status, len(g.StatusHistory), len(g.InternalNotes))
	}
}

func TestDeleteReferencedDepartment(t *testing.T) {
	s := testStore(t)
	fx := seed(t, s, 1)
	if err := s.DeleteDepartment(context.Background(), fx.dept.ID); !errors.Is(err, ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
	if _, err := s.CreateDepartment(context.Background(), models.Department{ID: uuid.NewString(), Name: fx.dept.Name, CreatedAt: time.Now()}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestOverrideRequiresObservedState(t *testing.T) {
	s := testStore(t)
	fx := seed(t, s, 1)
	ctx := context.Background()
	officer := fx.officers[0].ID
	now := time.Now().UTC()

	if _, err := s.ClaimGrievance(ctx, Claim{ID: fx.grievance.ID, OfficerID: officer, DepartmentID: fx.dept.ID,
		Entry: models.HistoryEntry{Status: models.HistoryAssigned, ChangedBy: officer, Timestamp: now}, Now: now}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if n, err := s.CountOpenAssignments(ctx, officer); err != nil || n != 1 {
		t.Fatalf("open assignments: %d, %v", n, err)
	}

	// state read before the claim: pending and unassigned
	cleared := ""
	_, err := s.OverrideGrievance(ctx, Override{
		ID:               fx.grievance.ID,
		DepartmentID:     &cleared,
		ExpectStatus:     models.StatusPending,
		ExpectDepartment: &fx.dept.ID,
		Now:              now,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("stale override: expected ErrConflict, got %v", err)
	}

	resolved := models.StatusResolved
	g, err := s.OverrideGrievance(ctx, Override{
		ID:               fx.grievance.ID,
		Status:           &resolved,
		ExpectStatus:     models.StatusInProgress,
		ExpectDepartment: &fx.dept.ID,
		ExpectOfficer:    &officer,
		Now:              now,
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if g.Status != models.StatusResolved || g.DepartmentID == nil || *g.AssignedOfficerID != officer {
		t.Fatalf("unexpected state: %+v", g)
	}
	if n, err := s.CountOpenAssignments(ctx, officer); err != nil || n != 0 {
		t.Fatalf("open assignments after resolve: %d, %v", n, err)
	}
}
