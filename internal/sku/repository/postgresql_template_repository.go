// Package repository implements SKU template persistence.
// Repositories support both PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/fulfillment/internal/database"
	apperrors "github.com/allisson/fulfillment/internal/errors"
	skuDomain "github.com/allisson/fulfillment/internal/sku/domain"
)

// PostgreSQLTemplateRepository implements Template persistence for PostgreSQL databases.
type PostgreSQLTemplateRepository struct {
	db *sql.DB
}

// GetBySKU retrieves the template for a product code.
func (p *PostgreSQLTemplateRepository) GetBySKU(
	ctx context.Context,
	sku string,
) (*skuDomain.Template, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT sku, body, created_at, updated_at
			  FROM sku_templates
			  WHERE sku = $1`

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
func (p *PostgreSQLTemplateRepository) Upsert(
	ctx context.Context,
	template *skuDomain.Template,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO sku_templates (sku, body, created_at, updated_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (sku) DO UPDATE SET body = $2, updated_at = $4`

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
func (p *PostgreSQLTemplateRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*skuDomain.Template, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT sku, body, created_at, updated_at
			  FROM sku_templates
			  ORDER BY sku
			  LIMIT $1 OFFSET $2`

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
func (p *PostgreSQLTemplateRepository) Delete(ctx context.Context, sku string) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM sku_templates WHERE sku = $1`

	_, err := querier.ExecContext(ctx, query, sku)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete template")
	}
	return nil
}

// NewPostgreSQLTemplateRepository creates a new PostgreSQL Template repository instance.
func NewPostgreSQLTemplateRepository(db *sql.DB) *PostgreSQLTemplateRepository {
	return &PostgreSQLTemplateRepository{db: db}
}
