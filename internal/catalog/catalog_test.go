package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_GetService(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, tenant_id, name, duration_min, buffer_min, price_cents\s+FROM services`).
		WithArgs("tenant-1", "svc-cut").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name", "duration_min", "buffer_min", "price_cents"}).
			AddRow("svc-cut", "tenant-1", "Haircut", 30, 10, int64(2000)))

	repo := NewRepositoryWithDB(mock)
	svc, err := repo.GetService(context.Background(), "tenant-1", "svc-cut")
	require.NoError(t, err)
	assert.Equal(t, "Haircut", svc.Name)
	assert.Equal(t, 40, svc.Occupancy())
	assert.Equal(t, int64(2000), svc.PriceCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetService_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM services`).
		WithArgs("tenant-1", "missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewRepositoryWithDB(mock)
	_, err = repo.GetService(context.Background(), "tenant-1", "missing")
	assert.True(t, errors.Is(err, ErrServiceNotFound), "got %v", err)
}

func TestRepository_GetService_InvalidRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM services`).
		WithArgs("tenant-1", "svc-zero").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name", "duration_min", "buffer_min", "price_cents"}).
			AddRow("svc-zero", "tenant-1", "Broken", 0, 0, int64(0)))

	repo := NewRepositoryWithDB(mock)
	_, err = repo.GetService(context.Background(), "tenant-1", "svc-zero")
	assert.True(t, errors.Is(err, ErrInvalidService), "got %v", err)
}

func TestRepository_ListStaffForService(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT ss.staff_id\s+FROM staff_services`).
		WithArgs("tenant-1", "svc-cut").
		WillReturnRows(pgxmock.NewRows([]string{"staff_id"}).AddRow("barber-1").AddRow("barber-2"))

	repo := NewRepositoryWithDB(mock)
	staff, err := repo.ListStaffForService(context.Background(), "tenant-1", "svc-cut")
	require.NoError(t, err)
	assert.Equal(t, []string{"barber-1", "barber-2"}, staff)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_StaffOffersService(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tenant-1", "barber-1", "svc-cut").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewRepositoryWithDB(mock)
	ok, err := repo.StaffOffersService(context.Background(), "tenant-1", "barber-1", "svc-cut")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceValidate(t *testing.T) {
	assert.NoError(t, Service{DurationMin: 30}.Validate())
	assert.ErrorIs(t, Service{DurationMin: 30, BufferMin: -1}.Validate(), ErrInvalidService)
	assert.ErrorIs(t, Service{DurationMin: 30, PriceCents: -5}.Validate(), ErrInvalidService)
}
