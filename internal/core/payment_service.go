package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// paymentEpsilon absorbs rounding noise from currency conversion: a
// payment may exceed the remaining balance by up to this much, and a
// balance within this much of the total clamps to exactly the total.
var paymentEpsilon = decimal.RequireFromString("0.01")

// applyPaymentAmount computes the new paid amount after applying
// amount against a sale with the given total and paid balance. The
// bool reports whether the sale settles.
func applyPaymentAmount(total, paid, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	if !amount.IsPositive() {
		return paid, false, Validationf("payment amount must be positive")
	}
	remaining := total.Sub(paid)
	if amount.GreaterThan(remaining.Add(paymentEpsilon)) {
		return paid, false, BusinessRule(CodeOverpayment,
			"payment of %s exceeds remaining balance of %s",
			amount.StringFixed(2), remaining.StringFixed(2))
	}
	newPaid := paid.Add(amount)
	if newPaid.GreaterThanOrEqual(total.Sub(paymentEpsilon)) {
		return total, true, nil
	}
	return newPaid, false, nil
}

// PaymentService applies collections against credit sales. Each
// application is serialized per sale by locking the sale row, so two
// concurrent payments cannot both pass the overpayment check against
// a stale balance.
type PaymentService interface {
	ApplyPayment(ctx context.Context, registrarID, saleID int, amount decimal.Decimal, currency string) (*Payment, *Sale, error)
	ListPayments(ctx context.Context, sellerID, saleID int) ([]Payment, error)
	ListMyPayments(ctx context.Context, sellerID, limit, offset int) ([]Payment, error)
}

type paymentService struct {
	pool     *pgxpool.Pool
	rates    *RateSource
	notifier Notifier
	sales    SaleService
	now      func() time.Time
}

func NewPaymentService(pool *pgxpool.Pool, rates *RateSource, notifier Notifier, sales SaleService) PaymentService {
	return &paymentService{pool: pool, rates: rates, notifier: notifier, sales: sales, now: time.Now}
}

func (s *paymentService) ApplyPayment(ctx context.Context, registrarID, saleID int, amount decimal.Decimal, currency string) (*Payment, *Sale, error) {
	converted := s.rates.ToCanonical(ctx, amount, currency)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, Internalf(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	// The registrar must be a party to the sale: its seller, or the
	// counterpart account paying off its own debt.
	var sellerID int
	var clientID, buyerID *int
	var settlement SettlementKind
	var status SaleStatus
	var total, paid decimal.Decimal
	var dueDate *time.Time
	err = tx.QueryRow(ctx, `
		SELECT seller_id, client_id, buyer_id, settlement, status, total_amount, paid_amount, due_date
		FROM sales
		WHERE id = $1 AND (seller_id = $2 OR buyer_id = $2)
		FOR UPDATE
	`, saleID, registrarID).Scan(&sellerID, &clientID, &buyerID, &settlement, &status, &total, &paid, &dueDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, NotFoundf("sale %d not found", saleID)
		}
		return nil, nil, Internalf(err, "lock sale %d", saleID)
	}

	// Lazy overdue transition on the locked row.
	if settlement == SettlementCredit && status == SalePending && dueDate != nil && dueDate.Before(s.now()) {
		status = SaleOverdue
	}
	if status == SaleSettled {
		return nil, nil, BusinessRule(CodeOverpayment, "sale %d is already settled", saleID)
	}

	newPaid, settled, err := applyPaymentAmount(total, paid, converted)
	if err != nil {
		return nil, nil, err
	}
	if settled {
		status = SaleSettled
	}

	var payment Payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (sale_id, amount, payer_account_id, payer_client_id, registrar_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sale_id, amount, payer_account_id, payer_client_id, registrar_id, created_at
	`, saleID, converted, buyerID, clientID, registrarID).Scan(
		&payment.ID, &payment.SaleID, &payment.Amount,
		&payment.PayerAccountID, &payment.PayerClientID, &payment.RegistrarID, &payment.CreatedAt)
	if err != nil {
		return nil, nil, Internalf(err, "insert payment")
	}

	_, err = tx.Exec(ctx,
		"UPDATE sales SET paid_amount = $2, status = $3 WHERE id = $1",
		saleID, newPaid, status)
	if err != nil {
		return nil, nil, Internalf(err, "update sale %d balance", saleID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, Internalf(err, "commit payment")
	}

	if registrarID != sellerID {
		s.notifier.PaymentReceived(ctx, sellerID, saleID, converted.StringFixed(2), settled)
	}

	sale, err := s.sales.GetSale(ctx, sellerID, saleID)
	if err != nil {
		return nil, nil, err
	}
	return &payment, sale, nil
}

func (s *paymentService) ListPayments(ctx context.Context, sellerID, saleID int) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.sale_id, p.amount, p.payer_account_id, p.payer_client_id,
		       p.registrar_id, COALESCE(r.name, ''), p.created_at
		FROM payments p
		JOIN sales s ON s.id = p.sale_id
		LEFT JOIN accounts r ON r.id = p.registrar_id
		WHERE p.sale_id = $1 AND s.seller_id = $2
		ORDER BY p.created_at ASC, p.id ASC
	`, saleID, sellerID)
	if err != nil {
		return nil, Internalf(err, "query payments")
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.PayerAccountID,
			&p.PayerClientID, &p.RegistrarID, &p.RegistrarName, &p.CreatedAt); err != nil {
			return nil, Internalf(err, "scan payment")
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListMyPayments returns the caller's collection history across all of
// its sales, newest first.
func (s *paymentService) ListMyPayments(ctx context.Context, sellerID, limit, offset int) ([]Payment, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.sale_id, p.amount, p.payer_account_id, p.payer_client_id,
		       p.registrar_id, COALESCE(r.name, ''), p.created_at
		FROM payments p
		JOIN sales s ON s.id = p.sale_id
		LEFT JOIN accounts r ON r.id = p.registrar_id
		WHERE s.seller_id = $1
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		return nil, Internalf(err, "query payments")
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.PayerAccountID,
			&p.PayerClientID, &p.RegistrarID, &p.RegistrarName, &p.CreatedAt); err != nil {
			return nil, Internalf(err, "scan payment")
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
