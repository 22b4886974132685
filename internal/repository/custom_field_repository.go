package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

// CustomFieldRepository handles database operations for custom field
// definitions.
type CustomFieldRepository struct {
	db *sqlx.DB
}

// NewCustomFieldRepository creates a new custom field repository.
func NewCustomFieldRepository(db *sqlx.DB) *CustomFieldRepository {
	return &CustomFieldRepository{db: db}
}

// Create inserts a field definition and fills in its id.
func (r *CustomFieldRepository) Create(ctx context.Context, field *models.CustomField) error {
	query := r.db.Rebind(`
		INSERT INTO custom_fields (
			queue_id, name, label, data_type, max_length,
			ordering, required, staff_only
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	id, err := insertReturningID(ctx, r.db, nil, query,
		field.QueueID, field.Name, field.Label, field.DataType, field.MaxLength,
		field.Ordering, field.Required, field.StaffOnly,
	)
	if err != nil {
		return fmt.Errorf("failed to create custom field: %w", err)
	}
	field.ID = id
	return nil
}

// List returns all field definitions sorted by ordering.
func (r *CustomFieldRepository) List(ctx context.Context) ([]models.CustomField, error) {
	var fields []models.CustomField
	query := `
		SELECT id, queue_id, name, label, data_type, max_length,
		       ordering, required, staff_only
		FROM custom_fields ORDER BY ordering, name`
	if err := r.db.SelectContext(ctx, &fields, query); err != nil {
		return nil, fmt.Errorf("failed to list custom fields: %w", err)
	}
	return fields, nil
}

// Delete removes a field definition by name.
func (r *CustomFieldRepository) Delete(ctx context.Context, name string) error {
	query := r.db.Rebind(`DELETE FROM custom_fields WHERE name = ?`)
	res, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete custom field %s: %w", name, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("custom field not found: %s", name)
	}
	return nil
}
