package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"credired/internal/core"

	"github.com/shopspring/decimal"
)

func TestCreateClient_TrialLimit(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	clients := core.NewClientService(pool)
	ctx := context.Background()

	ownerID := createAccount(t, pool, seedAccount{name: "owner", status: core.StatusTrial})
	owner := &core.Account{ID: ownerID, Status: core.StatusTrial}

	for i := 0; i < 6; i++ {
		_, err := clients.CreateClient(ctx, owner, fmt.Sprintf("client %d", i), fmt.Sprintf("nid-%d", i), "")
		if err != nil {
			t.Fatalf("CreateClient %d failed: %v", i, err)
		}
	}

	_, err := clients.CreateClient(ctx, owner, "seventh", "nid-7", "")
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Code != core.CodeTrialLimit {
		t.Fatalf("expected trial client limit at 6, got %v", err)
	}

	// An active account has no cap.
	owner.Status = core.StatusActive
	if _, err := clients.CreateClient(ctx, owner, "seventh", "nid-7", ""); err != nil {
		t.Fatalf("active owner should pass the cap: %v", err)
	}
}

func TestCreateClient_DuplicateNationalIDPerOwner(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	clients := core.NewClientService(pool)
	ctx := context.Background()

	firstID := createAccount(t, pool, seedAccount{name: "first"})
	secondID := createAccount(t, pool, seedAccount{name: "second"})
	first := &core.Account{ID: firstID, Status: core.StatusActive}
	second := &core.Account{ID: secondID, Status: core.StatusActive}

	if _, err := clients.CreateClient(ctx, first, "Alice", "12345", ""); err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}

	_, err := clients.CreateClient(ctx, first, "Alice again", "12345", "")
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Code != core.CodeDuplicateClient {
		t.Fatalf("expected duplicate rejection for same owner, got %v", err)
	}

	// Uniqueness is per owner, not global.
	if _, err := clients.CreateClient(ctx, second, "Other Alice", "12345", ""); err != nil {
		t.Fatalf("same national id under another owner should pass: %v", err)
	}
}

func TestDeleteClient_BlockedWhileDebtsOpen(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, payments, _ := newTestServices(pool)
	clients := core.NewClientService(pool)
	ctx := context.Background()

	seller := createAccount(t, pool, seedAccount{name: "seller"})
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

	err = clients.DeleteClient(ctx, seller, client)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Code != core.CodeHasPendingDebts {
		t.Fatalf("expected pending-debt rejection, got %v", err)
	}

	if _, _, err := payments.ApplyPayment(ctx, seller, sale.ID, decimal.NewFromInt(5), "USD"); err != nil {
		t.Fatalf("ApplyPayment failed: %v", err)
	}
	if err := clients.DeleteClient(ctx, seller, client); err != nil {
		t.Fatalf("DeleteClient after settlement failed: %v", err)
	}

	// The settled sale survives as history with its counterpart nulled.
	var clientID *int
	var status core.SaleStatus
	if err := pool.QueryRow(ctx,
		"SELECT client_id, status FROM sales WHERE id = $1", sale.ID).Scan(&clientID, &status); err != nil {
		t.Fatalf("read sale after delete: %v", err)
	}
	if clientID != nil || status != core.SaleSettled {
		t.Errorf("sale after delete: client=%v status=%s, want nil/settled", clientID, status)
	}
}

func TestListClients_Search(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	clients := core.NewClientService(pool)
	ctx := context.Background()

	ownerID := createAccount(t, pool, seedAccount{name: "owner"})
	owner := &core.Account{ID: ownerID, Status: core.StatusActive}

	if _, err := clients.CreateClient(ctx, owner, "Maria Lopez", "V-1001", ""); err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}
	if _, err := clients.CreateClient(ctx, owner, "Juan Perez", "V-2002", ""); err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}

	byName, err := clients.ListClients(ctx, ownerID, "maria")
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if len(byName) != 1 || byName[0].Name != "Maria Lopez" {
		t.Errorf("name search returned %+v, want only Maria Lopez", byName)
	}

	byID, err := clients.ListClients(ctx, ownerID, "2002")
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if len(byID) != 1 || byID[0].NationalID != "V-2002" {
		t.Errorf("national-id search returned %+v, want only V-2002", byID)
	}

	all, err := clients.ListClients(ctx, ownerID, "")
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered list has %d clients, want 2", len(all))
	}
}
