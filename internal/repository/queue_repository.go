package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/queuedesk-io/queuedesk/internal/models"
)

// QueueRepository handles database operations for queues.
type QueueRepository struct {
	db *sqlx.DB
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Create inserts a queue and fills in its id.
func (r *QueueRepository) Create(ctx context.Context, queue *models.Queue) error {
	now := time.Now()
	queue.CreateTime = now
	queue.ChangeTime = now

	query := r.db.Rebind(`
		INSERT INTO queues (
			title, slug, email_address, allow_public_submission,
			new_ticket_cc, updated_ticket_cc, create_time, change_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	id, err := insertReturningID(ctx, r.db, nil, query,
		queue.Title, queue.Slug, queue.EmailAddress, queue.AllowPublicSubmission,
		queue.NewTicketCC, queue.UpdatedTicketCC, queue.CreateTime, queue.ChangeTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}
	queue.ID = id
	return nil
}

const queueColumns = `id, title, slug, email_address, allow_public_submission,
		new_ticket_cc, updated_ticket_cc, create_time, change_time`

// GetByID retrieves a queue by id, (nil, nil) when absent.
func (r *QueueRepository) GetByID(ctx context.Context, id int) (*models.Queue, error) {
	var queue models.Queue
	query := r.db.Rebind(`SELECT ` + queueColumns + ` FROM queues WHERE id = ?`)
	err := r.db.GetContext(ctx, &queue, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue %d: %w", id, err)
	}
	return &queue, nil
}

// GetBySlug retrieves a queue by slug, (nil, nil) when absent.
func (r *QueueRepository) GetBySlug(ctx context.Context, slug string) (*models.Queue, error) {
	var queue models.Queue
	query := r.db.Rebind(`SELECT ` + queueColumns + ` FROM queues WHERE slug = ?`)
	err := r.db.GetContext(ctx, &queue, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue %s: %w", slug, err)
	}
	return &queue, nil
}

// List returns all queues ordered by id.
func (r *QueueRepository) List(ctx context.Context) ([]models.Queue, error) {
	var queues []models.Queue
	query := `SELECT ` + queueColumns + ` FROM queues ORDER BY id`
	if err := r.db.SelectContext(ctx, &queues, query); err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	return queues, nil
}

// insertReturningID runs an INSERT and reports the generated id. Postgres
// has no LastInsertId, so the statement gains a RETURNING clause there.
func insertReturningID(ctx context.Context, db *sqlx.DB, tx *sqlx.Tx, query string, args ...any) (int, error) {
	driver := db.DriverName()
	if driver == "postgres" || driver == "pgx" {
		var (
			id  int
			row *sqlx.Row
		)
		if tx != nil {
			row = tx.QueryRowxContext(ctx, query+" RETURNING id", args...)
		} else {
			row = db.QueryRowxContext(ctx, query+" RETURNING id", args...)
		}
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	var (
		res sql.Result
		err error
	)
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, args...)
	} else {
		res, err = db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}
