package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/fulfillment/internal/errors"
	skuDomain "github.com/allisson/fulfillment/internal/sku/domain"
)

func TestMySQLTemplateRepository_GetBySKU(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"sku", "body", "created_at", "updated_at"}).
		AddRow("SKU1", "Rendered:{{.SKU}}", now, now)
	mock.ExpectQuery("SELECT sku, body, created_at, updated_at").
		WithArgs("SKU1").
		WillReturnRows(rows)

	repo := NewMySQLTemplateRepository(db)
	template, err := repo.GetBySKU(context.Background(), "SKU1")

	require.NoError(t, err)
	assert.Equal(t, "SKU1", template.SKU)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLTemplateRepository_GetBySKUNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT sku, body, created_at, updated_at").
		WithArgs("MISSING").
		WillReturnRows(sqlmock.NewRows([]string{"sku", "body", "created_at", "updated_at"}))

	repo := NewMySQLTemplateRepository(db)
	_, err = repo.GetBySKU(context.Background(), "MISSING")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLTemplateRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO sku_templates").
		WithArgs("SKU1", "Rendered:{{.SKU}}", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewMySQLTemplateRepository(db)
	err = repo.Upsert(context.Background(), &skuDomain.Template{
		SKU:  "SKU1",
		Body: "Rendered:{{.SKU}}",
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLTemplateRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"sku", "body", "created_at", "updated_at"}).
		AddRow("SKU1", "Rendered:{{.SKU}}", now, now)
	mock.ExpectQuery("SELECT sku, body, created_at, updated_at").
		WithArgs(50, 0).
		WillReturnRows(rows)

	repo := NewMySQLTemplateRepository(db)
	templates, err := repo.List(context.Background(), 0, 50)

	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "SKU1", templates[0].SKU)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLTemplateRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DELETE FROM sku_templates").
		WithArgs("SKU1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewMySQLTemplateRepository(db)
	err = repo.Delete(context.Background(), "SKU1")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
