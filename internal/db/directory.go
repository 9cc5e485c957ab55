package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/janmitra/backend/internal/models"
)

const profileColumns = `id, email, full_name, role, department_id, is_active, created_at`

func scanProfile(row pgx.Row) (models.Profile, error) {
	var (
		p    models.Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &role, &p.DepartmentID, &p.IsActive, &p.CreatedAt); err != nil {
		return models.Profile{}, translate(err)
	}
	p.Role = models.Role(role)
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	return scanProfile(s.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

// EnsureProfile provisions a citizen profile on first sight of an identity.
func (s *Store) EnsureProfile(ctx context.Context, id, email string) (models.Profile, error) {
	return scanProfile(s.Pool.QueryRow(ctx, `
		INSERT INTO profiles (id, email, role, is_active, created_at)
		VALUES ($1, $2, 'citizen', TRUE, NOW())
		ON CONFLICT (id) DO UPDATE
			SET email = CASE WHEN profiles.email = '' THEN EXCLUDED.email ELSE profiles.email END
		RETURNING `+profileColumns, id, email))
}

func (s *Store) ListProfiles(ctx context.Context, role models.Role) ([]models.Profile, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at ASC, id ASC`, string(role))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (models.Profile, error) {
	var role *string
	if u.Role != nil {
		v := string(*u.Role)
		role = &v
	}
	return scanProfile(s.Pool.QueryRow(ctx, `
		UPDATE profiles
		SET role = COALESCE($2::text, role),
			department_id = CASE WHEN $3::boolean THEN NULLIF($4::text, '') ELSE department_id END,
			is_active = COALESCE($5::boolean, is_active),
			full_name = COALESCE($6::text, full_name)
		WHERE id = $1
		RETURNING `+profileColumns,
		id, role, u.DepartmentID != nil, deref(u.DepartmentID), u.IsActive, u.FullName))
}

const departmentColumns = `id, name, description, created_at`

func scanDepartment(row pgx.Row) (models.Department, error) {
	var d models.Department
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt); err != nil {
		return models.Department{}, translate(err)
	}
	return d, nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]models.Department, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name ASC`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []models.Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetDepartment(ctx context.Context, id string) (models.Department, error) {
	return scanDepartment(s.Pool.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id))
}

func (s *Store) FindDepartmentByName(ctx context.Context, name string) (models.Department, error) {
	return scanDepartment(s.Pool.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE lower(name) = lower($1)`, name))
}

func (s *Store) CreateDepartment(ctx context.Context, d models.Department) (models.Department, error) {
	return scanDepartment(s.Pool.QueryRow(ctx, `
		INSERT INTO departments (id, name, description, created_at) VALUES ($1, $2, $3, $4)
		RETURNING `+departmentColumns, d.ID, d.Name, d.Description, d.CreatedAt))
}

func (s *Store) UpdateDepartment(ctx context.Context, d models.Department) (models.Department, error) {
	return scanDepartment(s.Pool.QueryRow(ctx, `
		UPDATE departments SET name = $2, description = $3 WHERE id = $1
		RETURNING `+departmentColumns, d.ID, d.Name, d.Description))
}

// DeleteDepartment fails with ErrReferenced while grievances or profiles point at it.
func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertDepartments loads a batch of departments by name in one transaction.
func (s *Store) UpsertDepartments(ctx context.Context, departments []models.Department) (int, error) {
	n := 0
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, d := range departments {
			tag, err := tx.Exec(ctx, `
				INSERT INTO departments (id, name, description, created_at) VALUES ($1, $2, $3, NOW())
				ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`,
				d.ID, d.Name, d.Description)
			if err != nil {
				return translate(err)
			}
			n += int(tag.RowsAffected())
		}
		return nil
	})
	return n, err
}
