package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/adomherbals/api/internal/domain"
)

// AddressRepository persists shipping addresses in Postgres.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository constructs an address repository over the pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

const insertAddressSQL = `
INSERT INTO addresses (id, user_id, recipient, street, city, region, postal_code, country, phone, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Insert stores the address.
func (r *AddressRepository) Insert(ctx context.Context, address domain.Address) (domain.Address, error) {
	_, err := r.pool.Exec(ctx, insertAddressSQL,
		address.ID, address.UserID, address.Recipient, address.Street, address.City,
		string(address.Region), address.PostalCode, address.Country, address.Phone, address.CreatedAt,
	)
	if err != nil {
		return domain.Address{}, translate("postgres addresses: insert", err)
	}
	return address, nil
}

const selectAddressSQL = `
SELECT id, user_id, recipient, street, city, region, postal_code, country, phone, created_at
FROM addresses WHERE id = $1`

// FindByID returns the stored address.
func (r *AddressRepository) FindByID(ctx context.Context, addressID string) (domain.Address, error) {
	var address domain.Address
	var region string
	err := r.pool.QueryRow(ctx, selectAddressSQL, addressID).Scan(
		&address.ID, &address.UserID, &address.Recipient, &address.Street, &address.City,
		&region, &address.PostalCode, &address.Country, &address.Phone, &address.CreatedAt,
	)
	if err != nil {
		return domain.Address{}, translate("postgres addresses: find", err)
	}
	address.Region = domain.RegionCode(region)
	return address, nil
}

const listAddressesSQL = `
SELECT id, user_id, recipient, street, city, region, postal_code, country, phone, created_at
FROM addresses WHERE user_id = $1 ORDER BY created_at`

// ListByUser returns the user's addresses in insertion order.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, translate("postgres addresses: list", err)
	}
	defer rows.Close()

	var result []domain.Address
	for rows.Next() {
		var address domain.Address
		var region string
		if err := rows.Scan(
			&address.ID, &address.UserID, &address.Recipient, &address.Street, &address.City,
			&region, &address.PostalCode, &address.Country, &address.Phone, &address.CreatedAt,
		); err != nil {
			return nil, translate("postgres addresses: scan", err)
		}
		address.Region = domain.RegionCode(region)
		result = append(result, address)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("postgres addresses: rows", err)
	}
	return result, nil
}
