package core_test

import (
	"context"
	"errors"
	"testing"

	"credired/internal/core"

	"github.com/shopspring/decimal"
)

func TestApplyPayment_ExactAmountSettles(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, payments, _ := newTestServices(pool)
	ctx := context.Background()

	seller := createAccount(t, pool, seedAccount{name: "seller"})
	client := createClient(t, pool, seller, "Alice")
	widget := createProduct(t, pool, seller, nil, "Widget", 10, "5")

	sale, err := sales.CreateSale(ctx, seller, core.SaleInput{
		Kind:       core.SaleRetail,
		Settlement: core.SettlementCredit,
		ClientID:   &client,
		Currency:   "USD",
		Term:       &core.CreditTerm{Unit: core.TermBiweekly, Count: 1},
		Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	payment, updated, err := payments.ApplyPayment(ctx, seller, sale.ID, decimal.NewFromInt(10), "USD")
	if err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if !payment.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("payment amount = %s, want 10", payment.Amount)
	}
	if updated.Status != core.SaleSettled || !updated.PaidAmount.Equal(updated.TotalAmount) {
		t.Errorf("sale after payment: status=%s paid=%s", updated.Status, updated.PaidAmount)
	}

	history, err := payments.ListPayments(ctx, seller, sale.ID)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d payments, want 1", len(history))
	}
}

func TestApplyPayment_OverpaymentLeavesSaleUntouched(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, payments, _ := newTestServices(pool)
	ctx := context.Background()

	seller := createAccount(t, pool, seedAccount{name: "seller"})
	client := createClient(t, pool, seller, "Alice")
	widget := createProduct(t, pool, seller, nil, "Widget", 10, "5")

	sale, err := sales.CreateSale(ctx, seller, core.SaleInput{
		Kind:       core.SaleRetail,
		Settlement: core.SettlementCredit,
		ClientID:   &client,
		Currency:   "USD",
		Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	_, _, err = payments.ApplyPayment(ctx, seller, sale.ID, decimal.RequireFromString("10.02"), "USD")
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Code != core.CodeOverpayment {
		t.Fatalf("expected overpayment rejection, got %v", err)
	}

	after, err := sales.GetSale(ctx, seller, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if !after.PaidAmount.IsZero() || after.Status != core.SalePending {
		t.Errorf("rejected payment mutated sale: paid=%s status=%s", after.PaidAmount, after.Status)
	}
	history, err := payments.ListPayments(ctx, seller, sale.ID)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("rejected payment left %d history rows", len(history))
	}
}

func TestApplyPayment_PartialsSumToPaidAmount(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, payments, _ := newTestServices(pool)
	ctx := context.Background()

	seller := createAccount(t, pool, seedAccount{name: "seller"})
	client := createClient(t, pool, seller, "Alice")
	widget := createProduct(t, pool, seller, nil, "Widget", 10, "5")

	sale, err := sales.CreateSale(ctx, seller, core.SaleInput{
		Kind:       core.SaleRetail,
		Settlement: core.SettlementCredit,
		ClientID:   &client,
		Currency:   "USD",
		Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 4, UnitPrice: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	for _, amount := range []string{"7", "5", "8"} {
		if _, _, err := payments.ApplyPayment(ctx, seller, sale.ID, decimal.RequireFromString(amount), "USD"); err != nil {
			t.Fatalf("ApplyPayment(%s) failed: %v", amount, err)
		}
	}

	after, err := sales.GetSale(ctx, seller, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	history, err := payments.ListPayments(ctx, seller, sale.ID)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	sum := decimal.Zero
	for _, p := range history {
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(after.PaidAmount) {
		t.Errorf("payment sum %s != paid amount %s", sum, after.PaidAmount)
	}
	if after.Status != core.SaleSettled || !after.PaidAmount.Equal(after.TotalAmount) {
		t.Errorf("fully paid sale: status=%s paid=%s total=%s", after.Status, after.PaidAmount, after.TotalAmount)
	}

	// A settled sale takes no further payments.
	if _, _, err := payments.ApplyPayment(ctx, seller, sale.ID, decimal.NewFromInt(1), "USD"); err == nil {
		t.Error("payment against a settled sale should fail")
	}
}

func TestApplyPayment_BuyerCanPayOwnDebt(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, payments, _ := newTestServices(pool)
	ctx := context.Background()

	founder := createAccount(t, pool, seedAccount{name: "founder"})
	networkID := createNetwork(t, pool, founder)
	buyer := createAccount(t, pool, seedAccount{name: "buyer", parentID: &founder, networkID: &networkID})
	widget := createProduct(t, pool, founder, &networkID, "Widget", 10, "5")

	sale, err := sales.CreateSale(ctx, founder, core.SaleInput{
		Kind:       core.SaleNetwork,
		Settlement: core.SettlementCredit,
		BuyerID:    &buyer,
		Currency:   "USD",
		Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	payment, updated, err := payments.ApplyPayment(ctx, buyer, sale.ID, decimal.NewFromInt(10), "USD")
	if err != nil {
		t.Fatalf("buyer payment failed: %v", err)
	}
	if payment.PayerAccountID == nil || *payment.PayerAccountID != buyer {
		t.Errorf("payer = %v, want buyer %d", payment.PayerAccountID, buyer)
	}
	if updated.Status != core.SaleSettled {
		t.Errorf("status = %s, want settled", updated.Status)
	}

	// The seller gets a notification because someone else registered
	// the collection.
	var count int
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE account_id = $1 AND type = 'payment_received'",
		founder).Scan(&count)
	if err != nil || count != 1 {
		t.Errorf("seller notifications = %d (err %v), want 1", count, err)
	}
}

func TestApplyPayment_StrangerCannotTouchSale(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, payments, _ := newTestServices(pool)
	ctx := context.Background()

	seller := createAccount(t, pool, seedAccount{name: "seller"})
	stranger := createAccount(t, pool, seedAccount{name: "stranger"})
	client := createClient(t, pool, seller, "Alice")
	widget := createProduct(t, pool, seller, nil, "Widget", 10, "5")

	sale, err := sales.CreateSale(ctx, seller, core.SaleInput{
		Kind:       core.SaleRetail,
		Settlement: core.SettlementCredit,
		ClientID:   &client,
		Currency:   "USD",
		Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	_, _, err = payments.ApplyPayment(ctx, stranger, sale.ID, decimal.NewFromInt(5), "USD")
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Kind != core.KindNotFound {
		t.Fatalf("expected not-found for non-party registrar, got %v", err)
	}
}

func TestListMyPayments_AcrossSalesNewestFirst(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, payments, _ := newTestServices(pool)
	ctx := context.Background()

	seller := createAccount(t, pool, seedAccount{name: "seller"})
	client := createClient(t, pool, seller, "Alice")
	widget := createProduct(t, pool, seller, nil, "Widget", 20, "5")

	var saleIDs []int
	for i := 0; i < 2; i++ {
		sale, err := sales.CreateSale(ctx, seller, core.SaleInput{
			Kind:       core.SaleRetail,
			Settlement: core.SettlementCredit,
			ClientID:   &client,
			Currency:   "USD",
			Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 4, UnitPrice: decimal.NewFromInt(5)}},
		})
		if err != nil {
			t.Fatalf("CreateSale failed: %v", err)
		}
		saleIDs = append(saleIDs, sale.ID)
	}
	for _, id := range saleIDs {
		if _, _, err := payments.ApplyPayment(ctx, seller, id, decimal.NewFromInt(3), "USD"); err != nil {
			t.Fatalf("ApplyPayment(sale %d) failed: %v", id, err)
		}
	}

	history, err := payments.ListMyPayments(ctx, seller, 50, 0)
	if err != nil {
		t.Fatalf("ListMyPayments failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d payments, want 2", len(history))
	}
	if history[0].SaleID != saleIDs[1] || history[1].SaleID != saleIDs[0] {
		t.Errorf("order = [%d %d], want newest first [%d %d]",
			history[0].SaleID, history[1].SaleID, saleIDs[1], saleIDs[0])
	}

	page, err := payments.ListMyPayments(ctx, seller, 1, 1)
	if err != nil {
		t.Fatalf("ListMyPayments page failed: %v", err)
	}
	if len(page) != 1 || page[0].SaleID != saleIDs[0] {
		t.Errorf("page = %+v, want the older payment only", page)
	}

	// Another account's history is empty.
	other := createAccount(t, pool, seedAccount{name: "other"})
	none, err := payments.ListMyPayments(ctx, other, 50, 0)
	if err != nil {
		t.Fatalf("ListMyPayments for other failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("other account sees %d payments, want 0", len(none))
	}
}
