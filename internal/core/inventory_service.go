package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InventoryService manages per-owner stock. Each debit/credit is
// scoped strictly to one owner; a product name is only a matching key
// during network transfers, never a shared catalog identity.
type InventoryService interface {
	ListProducts(ctx context.Context, ownerID int) ([]Product, error)
	GetProduct(ctx context.Context, ownerID, productID int) (*Product, error)
	CreateProduct(ctx context.Context, ownerID int, networkID *int, name string, quantity int, price decimal.Decimal) (*Product, error)
	UpdateProduct(ctx context.Context, ownerID, productID int, name string, quantity int, price decimal.Decimal) (*Product, error)
	DeleteProduct(ctx context.Context, ownerID, productID int) error

	// AssignStock moves quantity of one product from a supervisor to a
	// downline member, overwriting the member's unit price when price
	// is non-nil. Atomic: the debit and the credit commit together.
	AssignStock(ctx context.Context, ownerID, productID, recipientID, quantity int, price *decimal.Decimal) error

	// Tx-scoped operations used by SaleService to keep stock changes
	// atomic with sale persistence.

	// DebitStockTx decrements a locked product row. The caller must
	// have locked the row FOR UPDATE and verified sufficiency.
	DebitStockTx(ctx context.Context, tx pgx.Tx, productID, quantity int) error
	// CreditStockTx upserts a product row for the recipient keyed by
	// (owner, network, name): an existing row is incremented, price
	// overwritten only when overwritePrice is set; otherwise a new row
	// is created with the given quantity and price.
	CreditStockTx(ctx context.Context, tx pgx.Tx, ownerID int, networkID *int, name string, quantity int, price decimal.Decimal, overwritePrice bool) error
	// LockProductTx loads a seller-owned product row FOR UPDATE.
	LockProductTx(ctx context.Context, tx pgx.Tx, ownerID, productID int) (*Product, error)
}

type inventoryService struct {
	pool     *pgxpool.Pool
	notifier Notifier
}

func NewInventoryService(pool *pgxpool.Pool, notifier Notifier) InventoryService {
	return &inventoryService{pool: pool, notifier: notifier}
}

const productColumns = "id, owner_id, network_id, name, quantity, price, created_at"

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.OwnerID, &p.NetworkID, &p.Name, &p.Quantity, &p.Price, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *inventoryService) ListProducts(ctx context.Context, ownerID int) ([]Product, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+productColumns+" FROM products WHERE owner_id = $1 ORDER BY name, id",
		ownerID)
	if err != nil {
		return nil, Internalf(err, "query products")
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, Internalf(err, "scan product")
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *inventoryService) GetProduct(ctx context.Context, ownerID, productID int) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1 AND owner_id = $2",
		productID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("product %d not found", productID)
		}
		return nil, Internalf(err, "fetch product %d", productID)
	}
	return p, nil
}

func (s *inventoryService) CreateProduct(ctx context.Context, ownerID int, networkID *int, name string, quantity int, price decimal.Decimal) (*Product, error) {
	if quantity < 0 {
		return nil, Validationf("quantity must not be negative")
	}
	if price.IsNegative() {
		return nil, Validationf("price must not be negative")
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		INSERT INTO products (owner_id, network_id, name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		ownerID, networkID, name, quantity, price))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, Conflict(CodeProductExists, "a product named %q already exists", name)
		}
		return nil, Internalf(err, "insert product")
	}
	return p, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, ownerID, productID int, name string, quantity int, price decimal.Decimal) (*Product, error) {
	if quantity < 0 {
		return nil, Validationf("quantity must not be negative")
	}
	if price.IsNegative() {
		return nil, Validationf("price must not be negative")
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		UPDATE products SET name = $3, quantity = $4, price = $5
		WHERE id = $1 AND owner_id = $2
		RETURNING `+productColumns,
		productID, ownerID, name, quantity, price))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("product %d not found", productID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, Conflict(CodeProductExists, "a product named %q already exists", name)
		}
		return nil, Internalf(err, "update product %d", productID)
	}
	return p, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, ownerID, productID int) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM products WHERE id = $1 AND owner_id = $2",
		productID, ownerID)
	if err != nil {
		return Internalf(err, "delete product %d", productID)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundf("product %d not found", productID)
	}
	return nil
}

func (s *inventoryService) AssignStock(ctx context.Context, ownerID, productID, recipientID, quantity int, price *decimal.Decimal) error {
	if quantity < 1 {
		return Validationf("quantity must be at least 1")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Internalf(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	product, err := s.LockProductTx(ctx, tx, ownerID, productID)
	if err != nil {
		return err
	}
	if quantity > product.Quantity {
		return BusinessRule(CodeInsufficientStock,
			"insufficient stock of %s: have %d, requested %d", product.Name, product.Quantity, quantity)
	}

	var recipientNetwork *int
	err = tx.QueryRow(ctx, "SELECT network_id FROM accounts WHERE id = $1", recipientID).Scan(&recipientNetwork)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NotFoundf("account %d not found", recipientID)
		}
		return Internalf(err, "resolve recipient %d", recipientID)
	}

	if err := s.DebitStockTx(ctx, tx, product.ID, quantity); err != nil {
		return err
	}

	unitPrice := product.Price
	overwrite := false
	if price != nil {
		unitPrice = *price
		overwrite = true
	}
	if err := s.CreditStockTx(ctx, tx, recipientID, recipientNetwork, product.Name, quantity, unitPrice, overwrite); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return Internalf(err, "commit stock assignment")
	}

	s.notifier.NewMerchandise(ctx, recipientID, ownerID, product.Name, quantity)
	return nil
}

// ── Tx-scoped operations ─────────────────────────────────────────────

func (s *inventoryService) LockProductTx(ctx context.Context, tx pgx.Tx, ownerID, productID int) (*Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1 AND owner_id = $2 FOR UPDATE",
		productID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("product %d not found", productID)
		}
		return nil, Internalf(err, "lock product %d", productID)
	}
	return p, nil
}

func (s *inventoryService) DebitStockTx(ctx context.Context, tx pgx.Tx, productID, quantity int) error {
	tag, err := tx.Exec(ctx,
		"UPDATE products SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2",
		productID, quantity)
	if err != nil {
		return Internalf(err, "debit product %d", productID)
	}
	if tag.RowsAffected() == 0 {
		// The caller locked the row and checked sufficiency, so this
		// only fires on a logic error upstream.
		return fmt.Errorf("debit of product %d would go negative", productID)
	}
	return nil
}

func (s *inventoryService) CreditStockTx(ctx context.Context, tx pgx.Tx, ownerID int, networkID *int, name string, quantity int, price decimal.Decimal, overwritePrice bool) error {
	// Locks the matching row before crediting so concurrent transfers
	// into the same product serialize instead of racing the insert.
	var existingID int
	err := tx.QueryRow(ctx, `
		SELECT id FROM products
		WHERE owner_id = $1 AND network_id IS NOT DISTINCT FROM $2 AND name = $3
		ORDER BY id
		LIMIT 1
		FOR UPDATE
	`, ownerID, networkID, name).Scan(&existingID)

	switch {
	case err == nil:
		sql := "UPDATE products SET quantity = quantity + $2 WHERE id = $1"
		args := []any{existingID, quantity}
		if overwritePrice {
			sql = "UPDATE products SET quantity = quantity + $2, price = $3 WHERE id = $1"
			args = append(args, price)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return Internalf(err, "credit product %d", existingID)
		}
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		_, err := tx.Exec(ctx, `
			INSERT INTO products (owner_id, network_id, name, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, ownerID, networkID, name, quantity, price)
		if err != nil {
			return Internalf(err, "insert credited product %s", name)
		}
		return nil
	default:
		return Internalf(err, "find product %s for credit", name)
	}
}
