package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/UnknownOlympus/staffdesk/internal/models"
)

func (r *Repository) observe(queryType string, startTime time.Time) {
	duration := time.Since(startTime).Seconds()
	r.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(duration)
}

// ListEmployees returns every employee ordered by identifier. An empty table gives an empty, non-nil slice.
func (r *Repository) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	defer r.observe("list_employees", time.Now())

	query := `SELECT id, name, email, employee_number, attributes FROM employees ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	result := make([]models.Employee, 0)
	for rows.Next() {
		var (
			employee models.Employee
			rawAttrs []byte
		)

		if err = rows.Scan(
			&employee.ID, &employee.Name, &employee.Email, &employee.EmployeeNumber, &rawAttrs); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}

		if employee.Attributes, err = models.DecodeAttributes(rawAttrs); err != nil {
			return nil, fmt.Errorf("employee %d: %w", employee.ID, err)
		}

		result = append(result, employee)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return result, nil
}

// SaveEmployee inserts a new employee and returns the identifier assigned by the database.
func (r *Repository) SaveEmployee(ctx context.Context, draft models.Draft) (int64, error) {
	defer r.observe("save_employee", time.Now())

	attrs, err := models.EncodeAttributes(draft.Attributes)
	if err != nil {
		return 0, fmt.Errorf("failed to save employee: %w", err)
	}

	query := `
		INSERT INTO employees (name, email, employee_number, attributes)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id;
	`

	var identifier int64
	err = r.db.QueryRow(ctx, query, draft.Name, draft.Email, draft.EmployeeNumber, attrs).Scan(&identifier)
	if err != nil {
		return 0, fmt.Errorf("failed to save employee: %w", err)
	}

	return identifier, nil
}

// UpdateEmployee applies the non-nil fields of patch to the employee with the given identifier.
// Attributes are merged into the stored ones.
func (r *Repository) UpdateEmployee(ctx context.Context, identifier int64, patch models.Patch) error {
	defer r.observe("update_employee", time.Now())

	query, args, err := buildUpdateQuery(identifier, patch)
	if err != nil {
		return fmt.Errorf("failed to update employee data: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update employee data: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update employee %d: %w", identifier, ErrEmployeeNotFound)
	}

	return nil
}

// DeleteEmployee removes the employee with the given identifier.
func (r *Repository) DeleteEmployee(ctx context.Context, identifier int64) error {
	defer r.observe("delete_employee", time.Now())

	query := `DELETE FROM employees WHERE id = $1;`

	tag, err := r.db.Exec(ctx, query, identifier)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete employee %d: %w", identifier, ErrEmployeeNotFound)
	}

	return nil
}

func buildUpdateQuery(identifier int64, patch models.Patch) (string, []any, error) {
	args := []any{identifier}
	sets := make([]string, 0, 5)

	add := func(assignment string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(assignment, len(args)))
	}

	if patch.Name != nil {
		add("name = $%d", *patch.Name)
	}
	if patch.Email != nil {
		add("email = $%d", *patch.Email)
	}
	if patch.EmployeeNumber != nil {
		add("employee_number = $%d", *patch.EmployeeNumber)
	}
	if len(patch.Attributes) != 0 {
		attrs, err := models.EncodeAttributes(patch.Attributes)
		if err != nil {
			return "", nil, err
		}
		add("attributes = attributes || $%d::jsonb", attrs)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	return "UPDATE employees SET " + strings.Join(sets, ", ") + " WHERE id = $1;", args, nil
}
