package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/janmitra/backend/internal/db"
	"github.com/janmitra/backend/internal/models"
)

type DirectoryStore interface {
	GetProfile(ctx context.Context, id string) (models.Profile, error)
	EnsureProfile(ctx context.Context, id, email string) (models.Profile, error)
	ListProfiles(ctx context.Context, role models.Role) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, id string, u db.ProfileUpdate) (models.Profile, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	GetDepartment(ctx context.Context, id string) (models.Department, error)
	FindDepartmentByName(ctx context.Context, name string) (models.Department, error)
	CreateDepartment(ctx context.Context, d models.Department) (models.Department, error)
	UpdateDepartment(ctx context.Context, d models.Department) (models.Department, error)
	DeleteDepartment(ctx context.Context, id string) error
	CountOpenAssignments(ctx context.Context, officerID string) (int, error)
}

type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

// Broadcaster fans one message out to every active user, optionally limited to a role.
type Broadcaster interface {
	Broadcast(ctx context.Context, actorID string, role models.Role, message string) (int64, error)
}

type DirectoryService struct {
	Directory     DirectoryStore
	Notifications NotificationStore
	Broadcaster   Broadcaster
	Now           func() time.Time
}

type DepartmentInput struct {
	Name        string
	Description string
}

type ProfileInput struct {
	Role         string
	DepartmentID *string
	IsActive     *bool
	FullName     *string
}

func (s *DirectoryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Me is readable even for deactivated accounts.
func (s *DirectoryService) Me(ctx context.Context, actor *models.Identity) (models.Profile, error) {
	if actor == nil || actor.UserID == "" {
		return models.Profile{}, Unauthorized()
	}
	p, err := s.Directory.GetProfile(ctx, actor.UserID)
	if err != nil {
		return models.Profile{}, storeErr(err, "Profile not found")
	}
	return p, nil
}

func (s *DirectoryService) ListDepartments(ctx context.Context, actor *models.Identity) ([]models.Department, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	out, err := s.Directory.ListDepartments(ctx)
	if err != nil {
		return nil, storeErr(err, "Department not found")
	}
	return out, nil
}

func (s *DirectoryService) CreateDepartment(ctx context.Context, actor *models.Identity, in DepartmentInput) (models.Department, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return models.Department{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Department{}, Validation("department name is required")
	}
	d, err := s.Directory.CreateDepartment(ctx, models.Department{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now(),
	})
	if errors.Is(err, db.ErrDuplicate) {
		return models.Department{}, Conflict("department " + name + " already exists")
	}
	if err != nil {
		return models.Department{}, storeErr(err, "Department not found")
	}
	return d, nil
}

func (s *DirectoryService) UpdateDepartment(ctx context.Context, actor *models.Identity, id string, in DepartmentInput) (models.Department, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return models.Department{}, err
	}
	current, err := s.Directory.GetDepartment(ctx, id)
	if err != nil {
		return models.Department{}, storeErr(err, "Department not found")
	}
	if v := strings.TrimSpace(in.Name); v != "" {
		current.Name = v
	}
	current.Description = strings.TrimSpace(in.Description)
	d, err := s.Directory.UpdateDepartment(ctx, current)
	if err != nil {
		return models.Department{}, storeErr(err, "Department not found")
	}
	return d, nil
}

// DeleteDepartment surfaces the store's referential rejection as KindReferential.
func (s *DirectoryService) DeleteDepartment(ctx context.Context, actor *models.Identity, id string) error {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.Directory.DeleteDepartment(ctx, id); err != nil {
		if errors.Is(err, db.ErrReferenced) {
			return Referential("department is still referenced by grievances or profiles", err)
		}
		return storeErr(err, "Department not found")
	}
	return nil
}

func (s *DirectoryService) ListProfiles(ctx context.Context, actor *models.Identity, role string) ([]models.Profile, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	var r models.Role
	if role != "" {
		var ok bool
		if r, ok = models.ParseRole(role); !ok {
			return nil, Validation("unknown role " + role)
		}
	}
	out, err := s.Directory.ListProfiles(ctx, r)
	if err != nil {
		return nil, storeErr(err, "Profile not found")
	}
	return out, nil
}

// UpdateProfile applies an admin edit. Officers must belong to an existing department.
func (s *DirectoryService) UpdateProfile(ctx context.Context, actor *models.Identity, id string, in ProfileInput) (models.Profile, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return models.Profile{}, err
	}
	current, err := s.Directory.GetProfile(ctx, id)
	if err != nil {
		return models.Profile{}, storeErr(err, "Profile not found")
	}

	u := db.ProfileUpdate{IsActive: in.IsActive, FullName: in.FullName}
	role := current.Role
	if in.Role != "" {
		r, ok := models.ParseRole(in.Role)
		if !ok {
			return models.Profile{}, Validation("unknown role " + in.Role)
		}
		role = r
		u.Role = &r
	}
	dept := current.DepartmentID
	if in.DepartmentID != nil {
		dept = nil
		if *in.DepartmentID != "" {
			if _, err := s.Directory.GetDepartment(ctx, *in.DepartmentID); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return models.Profile{}, Validation("unknown department " + *in.DepartmentID)
				}
				return models.Profile{}, storeErr(err, "Department not found")
			}
			dept = in.DepartmentID
		}
		u.DepartmentID = in.DepartmentID
	}
	if role == models.RoleOfficer && dept == nil {
		return models.Profile{}, Validation("department is required for officers")
	}
	leaving := role != models.RoleOfficer || !sameRef(dept, current.DepartmentID) || (in.IsActive != nil && !*in.IsActive)
	if current.Role == models.RoleOfficer && leaving {
		n, err := s.Directory.CountOpenAssignments(ctx, id)
		if err != nil {
			return models.Profile{}, storeErr(err, "Profile not found")
		}
		if n > 0 {
			return models.Profile{}, Conflict(fmt.Sprintf("officer still has %d open grievances; reassign them first", n))
		}
	}

	p, err := s.Directory.UpdateProfile(ctx, id, u)
	if err != nil {
		return models.Profile{}, storeErr(err, "Profile not found")
	}
	return p, nil
}

func (s *DirectoryService) ListNotifications(ctx context.Context, actor *models.Identity, unreadOnly bool, limit int) ([]models.Notification, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	out, err := s.Notifications.ListNotifications(ctx, actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, storeErr(err, "Notification not found")
	}
	return out, nil
}

func (s *DirectoryService) MarkNotificationRead(ctx context.Context, actor *models.Identity, id string) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if err := s.Notifications.MarkNotificationRead(ctx, id, actor.UserID); err != nil {
		return storeErr(err, "Notification not found")
	}
	return nil
}

func (s *DirectoryService) Broadcast(ctx context.Context, actor *models.Identity, role string, message string) (int64, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return 0, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, Validation("message is required")
	}
	var r models.Role
	if role != "" {
		var ok bool
		if r, ok = models.ParseRole(role); !ok {
			return 0, Validation("unknown role " + role)
		}
	}
	n, err := s.Broadcaster.Broadcast(ctx, actor.UserID, r, message)
	if err != nil {
		return 0, storeErr(err, "Notification not found")
	}
	return n, nil
}
