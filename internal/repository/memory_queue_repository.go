package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

// MemoryQueueRepository implements QueueStore with in-memory storage.
// This is for development/testing. Production uses the SQL implementation.
type MemoryQueueRepository struct {
	mu     sync.RWMutex
	queues map[int]*models.Queue
	nextID int
}

// NewMemoryQueueRepository creates a new in-memory queue repository.
func NewMemoryQueueRepository() *MemoryQueueRepository {
	return &MemoryQueueRepository{
		queues: make(map[int]*models.Queue),
		nextID: 1,
	}
}

// Create saves a new queue and assigns its id.
func (r *MemoryQueueRepository) Create(_ context.Context, queue *models.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue.ID = r.nextID
	r.nextID++
	now := time.Now()
	queue.CreateTime = now
	queue.ChangeTime = now

	copied := *queue
	r.queues[queue.ID] = &copied
	return nil
}

// GetByID retrieves a queue by id, (nil, nil) when absent.
func (r *MemoryQueueRepository) GetByID(_ context.Context, id int) (*models.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queue, exists := r.queues[id]
	if !exists {
		return nil, nil
	}
	copied := *queue
	return &copied, nil
}

// GetBySlug retrieves a queue by slug, (nil, nil) when absent.
func (r *MemoryQueueRepository) GetBySlug(_ context.Context, slug string) (*models.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, queue := range r.queues {
		if strings.EqualFold(queue.Slug, slug) {
			copied := *queue
			return &copied, nil
		}
	}
	return nil, nil
}

// List returns all queues ordered by id.
func (r *MemoryQueueRepository) List(_ context.Context) ([]models.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queues := make([]models.Queue, 0, len(r.queues))
	for id := 1; id < r.nextID; id++ {
		if queue, ok := r.queues[id]; ok {
			queues = append(queues, *queue)
		}
	}
	return queues, nil
}
