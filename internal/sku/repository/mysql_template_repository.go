package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/fulfillment/internal/database"
	apperrors "github.com/allisson/fulfillment/internal/errors"
	skuDomain "github.com/allisson/fulfillment/internal/sku/domain"
)

// MySQLTemplateRepository implements Template persistence for MySQL databases.
type MySQLTemplateRepository struct {
	db *sql.DB
}

// GetBySKU retrieves the template for a product code.
func (m *MySQLTemplateRepository) GetBySKU(
	ctx context.Context,
	sku string,
) (*skuDomain.Template, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT sku, body, created_at, updated_at
			  FROM sku_templates
			  WHERE sku = ?`

	var template skuDomain.Template
	err := querier.QueryRowContext(ctx, query, sku).Scan(
		&template.SKU,
		&template.Body,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get template by sku")
	}

	return &template, nil
}

// Upsert inserts the template or replaces its body when the SKU already
// exists.
func (m *MySQLTemplateRepository) Upsert(
	ctx context.Context,
	template *skuDomain.Template,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO sku_templates (sku, body, created_at, updated_at)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = VALUES(updated_at)`

	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	_, err := querier.ExecContext(
		ctx,
		query,
		template.SKU,
		template.Body,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert template")
	}
	return nil
}

// List retrieves templates ordered by product code with pagination.
func (m *MySQLTemplateRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*skuDomain.Template, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT sku, body, created_at, updated_at
			  FROM sku_templates
			  ORDER BY sku
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list templates")
	}
	defer func() { _ = rows.Close() }()

	var templates []*skuDomain.Template
	for rows.Next() {
		var template skuDomain.Template
		if err := rows.Scan(
			&template.SKU,
			&template.Body,
			&template.CreatedAt,
			&template.UpdatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan template")
		}
		templates = append(templates, &template)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate templates")
	}

	return templates, nil
}

// Delete removes the template for a product code.
func (m *MySQLTemplateRepository) Delete(ctx context.Context, sku string) error {
	querier := database.GetTx(ctx, m.db)

	query := `DELETE FROM sku_templates WHERE sku = ?`

	_, err := querier.ExecContext(ctx, query, sku)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete template")
	}
	return nil
}

// NewMySQLTemplateRepository creates a new MySQL Template repository instance.
func NewMySQLTemplateRepository(db *sql.DB) *MySQLTemplateRepository {
	return &MySQLTemplateRepository{db: db}
}
