package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/scope"
)

// ContentRepository handles persistence for distributable content items.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new repository instance.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

const contentColumns = `id, content_type, title, body, scope_kind, college_id, department_name,
section_id, year, created_by, active, created_at, updated_at`

// Create persists a content item. Scope columns must already be assigned and
// validated by the service layer.
func (r *ContentRepository) Create(ctx context.Context, item *models.ContentItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	const query = `INSERT INTO content_items (id, content_type, title, body, scope_kind, college_id,
department_name, section_id, year, created_by, active, created_at, updated_at)
VALUES (:id, :content_type, :title, :body, :scope_kind, :college_id,
:department_name, :section_id, :year, :created_by, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create content item: %w", err)
	}
	return nil
}

// FindByID returns a content item by id without applying visibility rules;
// the service decides whether the caller may see it.
func (r *ContentRepository) FindByID(ctx context.Context, id string) (*models.ContentItem, error) {
	query := fmt.Sprintf("SELECT %s FROM content_items WHERE id = $1", contentColumns)
	var item models.ContentItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find content item: %w", err)
	}
	return &item, nil
}

// ListVisible returns content items the actor may see, pushing the scope
// predicate into the query so pagination counts stay correct.
func (r *ContentRepository) ListVisible(ctx context.Context, actor models.ActorContext, filter models.ContentFilter) ([]models.ContentItem, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Type != nil && filter.Type.Valid() {
		conditions = append(conditions, fmt.Sprintf("content_type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	scopeClause, scopeArgs := scope.SQLFilter(actor, "", len(args)+1)
	conditions = append(conditions, "("+scopeClause+")")
	args = append(args, scopeArgs...)

	whereClause := strings.Join(conditions, " AND ")

	allowedSorts := map[string]bool{
		"title":      true,
		"created_at": true,
		"updated_at": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM content_items WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, contentColumns, whereClause, sortBy, order, size, offset)

	var items []models.ContentItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list content items: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM content_items WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count content items: %w", err)
	}
	return items, total, nil
}

// Update modifies the mutable fields of a content item. Scope columns are
// rewritten as a unit to keep them consistent with the kind.
func (r *ContentRepository) Update(ctx context.Context, item *models.ContentItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE content_items
SET content_type = :content_type, title = :title, body = :body, scope_kind = :scope_kind,
    college_id = :college_id, department_name = :department_name, section_id = :section_id,
    year = :year, active = :active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update content item: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a content item.
func (r *ContentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete content item: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
