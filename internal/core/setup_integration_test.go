package core_test

import (
	"context"
	"os"
	"testing"
	"time"

	"credired/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE notifications, payments, sale_items, sales, products, clients, networks, accounts
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return pool
}

// nopMailer suppresses outbound mail in tests.
type nopMailer struct{}

func (nopMailer) Send(context.Context, string, string, string) {}

func newTestServices(pool *pgxpool.Pool) (core.InventoryService, core.SaleService, core.PaymentService, core.NetworkService) {
	rates := core.NewRateSourceForTest(time.Now, nil, time.Hour)
	notifier := core.NewNotificationService(pool, nopMailer{})
	inventory := core.NewInventoryService(pool, notifier)
	sales := core.NewSaleService(pool, inventory, rates, notifier)
	payments := core.NewPaymentService(pool, rates, notifier, sales)
	network := core.NewNetworkService(pool)
	return inventory, sales, payments, network
}

type seedAccount struct {
	name      string
	role      core.Role
	status    core.AccountStatus
	parentID  *int
	networkID *int
}

func createAccount(t *testing.T, pool *pgxpool.Pool, seed seedAccount) int {
	t.Helper()
	if seed.status == "" {
		seed.status = core.StatusActive
	}
	if seed.role == "" {
		seed.role = core.RoleReseller
	}
	var id int
	err := pool.QueryRow(context.Background(), `
		INSERT INTO accounts (name, email, password_hash, role, status, parent_id, network_id, is_independent, invite_code)
		VALUES ($1, $2, 'x', $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, seed.name, seed.name+"@test.local", seed.role, seed.status,
		seed.parentID, seed.networkID, seed.networkID == nil, uuid.NewString()).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed account %s: %v", seed.name, err)
	}
	return id
}

func createNetwork(t *testing.T, pool *pgxpool.Pool, ownerID int) int {
	t.Helper()
	var id int
	err := pool.QueryRow(context.Background(),
		"INSERT INTO networks (name, owner_id) VALUES ('Test Network', $1) RETURNING id",
		ownerID).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed network: %v", err)
	}
	_, err = pool.Exec(context.Background(),
		"UPDATE accounts SET network_id = $2, is_independent = false, role = 'founder' WHERE id = $1",
		ownerID, id)
	if err != nil {
		t.Fatalf("Failed to attach network owner: %v", err)
	}
	return id
}

func createProduct(t *testing.T, pool *pgxpool.Pool, ownerID int, networkID *int, name string, qty int, price string) int {
	t.Helper()
	var id int
	err := pool.QueryRow(context.Background(), `
		INSERT INTO products (owner_id, network_id, name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, ownerID, networkID, name, qty, decimal.RequireFromString(price)).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed product %s: %v", name, err)
	}
	return id
}

func createClient(t *testing.T, pool *pgxpool.Pool, ownerID int, name string) int {
	t.Helper()
	var id int
	err := pool.QueryRow(context.Background(), `
		INSERT INTO clients (owner_id, name, national_id) VALUES ($1, $2, $3) RETURNING id
	`, ownerID, name, uuid.NewString()).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed client %s: %v", name, err)
	}
	return id
}

func productQty(t *testing.T, pool *pgxpool.Pool, productID int) int {
	t.Helper()
	var qty int
	err := pool.QueryRow(context.Background(),
		"SELECT quantity FROM products WHERE id = $1", productID).Scan(&qty)
	if err != nil {
		t.Fatalf("Failed to read product %d quantity: %v", productID, err)
	}
	return qty
}
