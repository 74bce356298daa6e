package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SaleLineInput is one requested line of a new sale. UnitPrice is in
// the request currency and converted to the canonical currency before
// persisting.
type SaleLineInput struct {
	ProductID int
	Quantity  int
	UnitPrice decimal.Decimal
}

// SaleInput is a sale creation request. Exactly one of ClientID and
// BuyerID must be set, matching Kind.
type SaleInput struct {
	Kind       SaleKind
	Settlement SettlementKind
	ClientID   *int
	BuyerID    *int
	Items      []SaleLineInput
	Currency   string
	Term       *CreditTerm // nil on credit sales falls back to the seller's default
}

// SaleFilter narrows and pages a sale listing. Nil fields match all.
type SaleFilter struct {
	Kind       *SaleKind
	Status     *SaleStatus
	Settlement *SettlementKind
	ClientID   *int
	Limit      int
	Offset     int
}

// CollectionsSummary annotates the collections view.
type CollectionsSummary struct {
	Outstanding  decimal.Decimal `json:"outstanding"`
	CountPending int             `json:"count_pending"`
	CountOverdue int             `json:"count_overdue"`
}

// SaleService owns the sale lifecycle: creation with atomic stock
// movement, listing with the lazy overdue sweep, and the collections
// view over unpaid credit sales.
type SaleService interface {
	// CreateSale runs in two phases inside one transaction: every line
	// is locked and validated first, then all debits and the sale row
	// commit together. A failing line leaves no partial debit behind.
	CreateSale(ctx context.Context, sellerID int, input SaleInput) (*Sale, error)
	GetSale(ctx context.Context, sellerID, saleID int) (*Sale, error)
	ListSales(ctx context.Context, sellerID int, filter SaleFilter) ([]Sale, error)
	// Collections lists unpaid credit sales sorted by ascending due
	// date with an outstanding-balance summary.
	Collections(ctx context.Context, sellerID int) ([]Sale, CollectionsSummary, error)

	// SweepOverdue transitions pending credit sales past their due
	// date to overdue. Idempotent; invoked lazily from read paths.
	SweepOverdue(ctx context.Context, sellerID int) error
}

type saleService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
	rates     *RateSource
	notifier  Notifier
	now       func() time.Time
}

func NewSaleService(pool *pgxpool.Pool, inventory InventoryService, rates *RateSource, notifier Notifier) SaleService {
	return &saleService{pool: pool, inventory: inventory, rates: rates, notifier: notifier, now: time.Now}
}

func (s *saleService) CreateSale(ctx context.Context, sellerID int, input SaleInput) (*Sale, error) {
	if len(input.Items) == 0 {
		return nil, Validationf("sale must have at least one item")
	}
	switch input.Kind {
	case SaleRetail:
		if input.ClientID == nil || input.BuyerID != nil {
			return nil, Validationf("retail sale requires a client id and no counterpart account")
		}
	case SaleNetwork:
		if input.BuyerID == nil || input.ClientID != nil {
			return nil, Validationf("network sale requires a counterpart account id and no client")
		}
	default:
		return nil, Validationf("unknown sale kind %q", input.Kind)
	}
	if input.Settlement != SettlementCash && input.Settlement != SettlementCredit {
		return nil, Validationf("unknown settlement kind %q", input.Settlement)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, Internalf(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	var sellerNetwork *int
	var defaultUnit TermUnit
	var defaultCount int
	err = tx.QueryRow(ctx,
		"SELECT network_id, default_term_unit, default_term_count FROM accounts WHERE id = $1",
		sellerID).Scan(&sellerNetwork, &defaultUnit, &defaultCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("account %d not found", sellerID)
		}
		return nil, Internalf(err, "resolve seller %d", sellerID)
	}

	var buyerNetwork *int
	if input.Kind == SaleRetail {
		var clientID int
		err = tx.QueryRow(ctx,
			"SELECT id FROM clients WHERE id = $1 AND owner_id = $2",
			*input.ClientID, sellerID).Scan(&clientID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, NotFoundf("client %d not found", *input.ClientID)
			}
			return nil, Internalf(err, "resolve client %d", *input.ClientID)
		}
	} else {
		var buyerParent *int
		err = tx.QueryRow(ctx,
			"SELECT network_id, parent_id FROM accounts WHERE id = $1",
			*input.BuyerID).Scan(&buyerNetwork, &buyerParent)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, NotFoundf("account %d not found", *input.BuyerID)
			}
			return nil, Internalf(err, "resolve counterpart %d", *input.BuyerID)
		}
		// Counterparts outside the seller's network read as not found
		// so nothing about other organizations leaks.
		if sellerNetwork == nil || buyerNetwork == nil || *sellerNetwork != *buyerNetwork {
			return nil, NotFoundf("account %d not found", *input.BuyerID)
		}
	}

	// Phase one: lock and validate every line before any stock moves.
	type pricedLine struct {
		product   *Product
		quantity  int
		unitPrice decimal.Decimal // canonical
	}
	lines := make([]pricedLine, 0, len(input.Items))
	requested := make(map[int]int) // product id -> total qty across lines
	total := decimal.Zero
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return nil, Validationf("item quantity must be at least 1")
		}
		product, err := s.inventory.LockProductTx(ctx, tx, sellerID, item.ProductID)
		if err != nil {
			return nil, err
		}
		requested[product.ID] += item.Quantity
		if requested[product.ID] > product.Quantity {
			return nil, BusinessRule(CodeInsufficientStock,
				"insufficient stock of %s: have %d, requested %d",
				product.Name, product.Quantity, requested[product.ID])
		}
		unitPrice := s.rates.ToCanonical(ctx, item.UnitPrice, input.Currency)
		total = total.Add(unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lines = append(lines, pricedLine{product: product, quantity: item.Quantity, unitPrice: unitPrice})
	}

	createdAt := s.now()
	status := SalePending
	paid := decimal.Zero
	var term *CreditTerm
	if input.Settlement == SettlementCash {
		status = SaleSettled
		paid = total
	} else {
		unit, count := defaultUnit, defaultCount
		if input.Term != nil {
			unit, count = input.Term.Unit, input.Term.Count
		}
		due := DueDate(createdAt, unit, count)
		term = &CreditTerm{Unit: unit, Count: count, DueDate: &due}
	}

	var saleID int
	var termUnit *TermUnit
	var termCount *int
	var dueDate *time.Time
	if term != nil {
		termUnit, termCount, dueDate = &term.Unit, &term.Count, term.DueDate
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (seller_id, client_id, buyer_id, kind, settlement, status,
		                   total_amount, paid_amount, term_unit, term_count, due_date, network_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, sellerID, input.ClientID, input.BuyerID, input.Kind, input.Settlement, status,
		total, paid, termUnit, termCount, dueDate, sellerNetwork, createdAt).Scan(&saleID)
	if err != nil {
		return nil, Internalf(err, "insert sale")
	}

	// Phase two: persist frozen line snapshots and move stock.
	for _, line := range lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, saleID, line.product.ID, line.product.Name, line.quantity, line.unitPrice)
		if err != nil {
			return nil, Internalf(err, "insert sale item")
		}
		if err := s.inventory.DebitStockTx(ctx, tx, line.product.ID, line.quantity); err != nil {
			return nil, err
		}
		if input.Kind == SaleNetwork {
			err := s.inventory.CreditStockTx(ctx, tx, *input.BuyerID, buyerNetwork,
				line.product.Name, line.quantity, line.unitPrice, false)
			if err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, Internalf(err, "commit sale")
	}

	s.notifier.SaleRecorded(ctx, sellerID, saleID, total.StringFixed(2), input.Settlement)
	if input.Kind == SaleNetwork {
		for _, line := range lines {
			s.notifier.NewMerchandise(ctx, *input.BuyerID, sellerID, line.product.Name, line.quantity)
		}
	}

	return s.GetSale(ctx, sellerID, saleID)
}

const saleColumns = `
	s.id, s.seller_id, s.client_id, s.buyer_id,
	COALESCE(c.name, b.name, ''),
	s.kind, s.settlement, s.status, s.total_amount, s.paid_amount,
	s.term_unit, s.term_count, s.due_date, s.network_id, s.created_at`

const saleJoins = `
	LEFT JOIN clients c ON c.id = s.client_id
	LEFT JOIN accounts b ON b.id = s.buyer_id`

func scanSale(row pgx.Row) (*Sale, error) {
	var sale Sale
	var termUnit *TermUnit
	var termCount *int
	var dueDate *time.Time
	err := row.Scan(&sale.ID, &sale.SellerID, &sale.ClientID, &sale.BuyerID,
		&sale.CounterpartName, &sale.Kind, &sale.Settlement, &sale.Status,
		&sale.TotalAmount, &sale.PaidAmount, &termUnit, &termCount, &dueDate,
		&sale.NetworkID, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	if termUnit != nil {
		sale.Term = &CreditTerm{Unit: *termUnit, DueDate: dueDate}
		if termCount != nil {
			sale.Term.Count = *termCount
		}
	}
	return &sale, nil
}

func (s *saleService) GetSale(ctx context.Context, sellerID, saleID int) (*Sale, error) {
	if err := s.SweepOverdue(ctx, sellerID); err != nil {
		return nil, err
	}

	sale, err := scanSale(s.pool.QueryRow(ctx,
		"SELECT "+saleColumns+" FROM sales s"+saleJoins+" WHERE s.id = $1 AND s.seller_id = $2",
		saleID, sellerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("sale %d not found", saleID)
		}
		return nil, Internalf(err, "fetch sale %d", saleID)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price
		FROM sale_items WHERE sale_id = $1 ORDER BY id
	`, saleID)
	if err != nil {
		return nil, Internalf(err, "query sale items")
	}
	defer rows.Close()
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, Internalf(err, "scan sale item")
		}
		sale.Items = append(sale.Items, it)
	}
	return sale, rows.Err()
}

func (s *saleService) ListSales(ctx context.Context, sellerID int, filter SaleFilter) ([]Sale, error) {
	if err := s.SweepOverdue(ctx, sellerID); err != nil {
		return nil, err
	}

	sql := "SELECT " + saleColumns + " FROM sales s" + saleJoins + " WHERE s.seller_id = $1"
	args := []any{sellerID}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		sql += " AND s.kind = $" + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		sql += " AND s.status = $" + strconv.Itoa(len(args))
	}
	if filter.Settlement != nil {
		args = append(args, *filter.Settlement)
		sql += " AND s.settlement = $" + strconv.Itoa(len(args))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		sql += " AND s.client_id = $" + strconv.Itoa(len(args))
	}
	sql += " ORDER BY s.created_at DESC, s.id DESC"
	limit := filter.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	sql += " LIMIT $" + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sql += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, Internalf(err, "query sales")
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, Internalf(err, "scan sale")
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (s *saleService) Collections(ctx context.Context, sellerID int) ([]Sale, CollectionsSummary, error) {
	if err := s.SweepOverdue(ctx, sellerID); err != nil {
		return nil, CollectionsSummary{}, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+saleColumns+" FROM sales s"+saleJoins+`
		WHERE s.seller_id = $1 AND s.settlement = 'credit' AND s.status IN ('pending', 'overdue')
		ORDER BY s.due_date ASC, s.id ASC
	`, sellerID)
	if err != nil {
		return nil, CollectionsSummary{}, Internalf(err, "query collections")
	}
	defer rows.Close()

	var sales []Sale
	summary := CollectionsSummary{Outstanding: decimal.Zero}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, CollectionsSummary{}, Internalf(err, "scan sale")
		}
		sales = append(sales, *sale)
		summary.Outstanding = summary.Outstanding.Add(sale.Outstanding())
		switch sale.Status {
		case SalePending:
			summary.CountPending++
		case SaleOverdue:
			summary.CountOverdue++
		}
	}
	return sales, summary, rows.Err()
}

func (s *saleService) SweepOverdue(ctx context.Context, sellerID int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sales SET status = 'overdue'
		WHERE seller_id = $1 AND settlement = 'credit' AND status = 'pending' AND due_date < $2
	`, sellerID, s.now())
	if err != nil {
		return Internalf(err, "overdue sweep")
	}
	return nil
}
