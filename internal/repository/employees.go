package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/apperror"
	"github.com/sysu-ecnc-dev/staff-directory/backend/internal/domain"
)

const employeeColumns = `
	id,
	manager_id,
	first_name,
	last_name,
	email,
	employee_number,
	department,
	position,
	salary,
	birth_date,
	profile_picture,
	created_at,
	updated_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (*domain.Employee, error) {
	e := &domain.Employee{}
	dst := []any{
		&e.ID,
		&e.ManagerID,
		&e.FirstName,
		&e.LastName,
		&e.Email,
		&e.EmployeeNumber,
		&e.Department,
		&e.Position,
		&e.Salary,
		&e.BirthDate,
		&e.ProfilePicture,
		&e.CreatedAt,
		&e.UpdatedAt,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *Repository) ListEmployees(ctx context.Context) ([]*domain.Employee, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.queries.ListEmployees(ctx)
}

func (r *Repository) GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE lower(email) = lower($1)`
	return scanEmployee(r.db.QueryRowContext(ctx, query, email))
}

func (r *Repository) CountByDepartment(ctx context.Context) ([]domain.DepartmentCount, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT department, COUNT(*)
		FROM employees
		GROUP BY department
		ORDER BY department
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]domain.DepartmentCount, 0)
	for rows.Next() {
		var c domain.DepartmentCount
		if err := rows.Scan(&c.Department, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// ListEmployees 一次性读取全部员工，层级在内存中计算
func (q *queries) ListEmployees(ctx context.Context) ([]*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := make([]*domain.Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}

func (q *queries) CreateEmployee(ctx context.Context, e *domain.Employee) error {
	query := `
		INSERT INTO employees (
			manager_id,
			first_name,
			last_name,
			email,
			employee_number,
			department,
			position,
			salary,
			birth_date,
			profile_picture
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	params := []any{
		e.ManagerID,
		e.FirstName,
		e.LastName,
		e.Email,
		e.EmployeeNumber,
		e.Department,
		e.Position,
		e.Salary,
		e.BirthDate,
		e.ProfilePicture,
	}
	if err := q.db.QueryRowContext(ctx, query, params...).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return translateError(err)
	}

	return nil
}

func (q *queries) UpdateEmployee(ctx context.Context, e *domain.Employee) error {
	query := `
		UPDATE employees
		SET
			manager_id = $1,
			first_name = $2,
			last_name = $3,
			email = $4,
			employee_number = $5,
			department = $6,
			position = $7,
			salary = $8,
			birth_date = $9,
			profile_picture = $10,
			updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at
	`

	params := []any{
		e.ManagerID,
		e.FirstName,
		e.LastName,
		e.Email,
		e.EmployeeNumber,
		e.Department,
		e.Position,
		e.Salary,
		e.BirthDate,
		e.ProfilePicture,
		e.ID,
	}
	if err := q.db.QueryRowContext(ctx, query, params...).Scan(&e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.Newf(apperror.KindNotFound, "Employee %d not found", e.ID)
		}
		return translateError(err)
	}

	return nil
}

func (q *queries) DeleteEmployee(ctx context.Context, id int64) error {
	query := `
		DELETE FROM employees WHERE id = $1
	`

	if _, err := q.db.ExecContext(ctx, query, id); err != nil {
		return translateError(err)
	}

	return nil
}

// DetachSubordinates 把 managerID 的直接下属变为无上级且未分配部门
func (q *queries) DetachSubordinates(ctx context.Context, managerID int64) error {
	query := `
		UPDATE employees
		SET manager_id = NULL, department = $2, position = $3, updated_at = NOW()
		WHERE manager_id = $1
	`

	if _, err := q.db.ExecContext(ctx, query, managerID, domain.DepartmentUnassigned, domain.PositionUnassigned); err != nil {
		return err
	}

	return nil
}
