package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

// MemoryCustomFieldRepository implements CustomFieldStore with in-memory
// storage for development/testing.
type MemoryCustomFieldRepository struct {
	mu     sync.RWMutex
	fields map[string]*models.CustomField
	nextID int
}

// NewMemoryCustomFieldRepository creates a new in-memory custom field repository.
func NewMemoryCustomFieldRepository() *MemoryCustomFieldRepository {
	return &MemoryCustomFieldRepository{
		fields: make(map[string]*models.CustomField),
		nextID: 1,
	}
}

// Create registers a custom field definition. Field names are unique.
func (r *MemoryCustomFieldRepository) Create(_ context.Context, field *models.CustomField) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fields[field.Name]; exists {
		return fmt.Errorf("custom field already exists: %s", field.Name)
	}
	field.ID = r.nextID
	r.nextID++
	copied := *field
	r.fields[field.Name] = &copied
	return nil
}

// List returns all field definitions sorted by ordering, then name.
func (r *MemoryCustomFieldRepository) List(_ context.Context) ([]models.CustomField, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fields := make([]models.CustomField, 0, len(r.fields))
	for _, field := range r.fields {
		fields = append(fields, *field)
	}
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].Ordering != fields[j].Ordering {
			return fields[i].Ordering < fields[j].Ordering
		}
		return fields[i].Name < fields[j].Name
	})
	return fields, nil
}

// Delete removes a field definition by name.
func (r *MemoryCustomFieldRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fields[name]; !exists {
		return fmt.Errorf("custom field not found: %s", name)
	}
	delete(r.fields, name)
	return nil
}
