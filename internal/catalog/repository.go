package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, sku, name, COALESCE(name_en, ''), COALESCE(barcode, ''), selling_price, is_vat_applicable, vat_rate`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (domain.Product, error) {
	var p domain.Product
	err := s.Scan(&p.ID, &p.SKU, &p.Name, &p.NameEN, &p.Barcode, &p.SellingPrice, &p.IsVATApplicable, &p.VATRate)
	return p, err
}

// Search lists active products whose sku, name or barcode contains term.
// An empty term lists everything up to limit.
func (r *ProductRepository) Search(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active
		  AND ($1 = '' OR sku ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%' OR barcode ILIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2
	`, term, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collect(rows)
}

// ValidID reports whether id can name a product row.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if !ValidID(id) {
		return nil, nil
	}
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns the active products among ids keyed by id. Missing,
// malformed or inactive ids are absent from the map.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if ValidID(id) {
			valid = append(valid, id)
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1) AND is_active
	`, pq.Array(valid))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products, err := collect(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func collect(rows *sql.Rows) ([]domain.Product, error) {
	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
