package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// trialClientLimit caps how many clients a trial account may register.
const trialClientLimit = 6

// ClientService manages an account's end customers. Clients belong to
// exactly one account; national id is unique per owner only.
type ClientService interface {
	// ListClients returns the owner's clients, optionally narrowed by
	// a case-insensitive name or national-id search.
	ListClients(ctx context.Context, ownerID int, search string) ([]Client, error)
	GetClient(ctx context.Context, ownerID, clientID int) (*Client, error)
	CreateClient(ctx context.Context, owner *Account, name, nationalID, phone string) (*Client, error)
	UpdateClient(ctx context.Context, ownerID, clientID int, name, nationalID, phone string) (*Client, error)
	// DeleteClient fails while the client has sales awaiting
	// collection.
	DeleteClient(ctx context.Context, ownerID, clientID int) error
}

type clientService struct {
	pool *pgxpool.Pool
}

func NewClientService(pool *pgxpool.Pool) ClientService {
	return &clientService{pool: pool}
}

const clientColumns = "id, owner_id, name, national_id, phone, created_at"

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.NationalID, &c.Phone, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *clientService) ListClients(ctx context.Context, ownerID int, search string) ([]Client, error) {
	sql := "SELECT " + clientColumns + " FROM clients WHERE owner_id = $1"
	args := []any{ownerID}
	if search != "" {
		args = append(args, "%"+search+"%")
		sql += " AND (name ILIKE $2 OR national_id ILIKE $2)"
	}
	sql += " ORDER BY name, id"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, Internalf(err, "query clients")
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, Internalf(err, "scan client")
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (s *clientService) GetClient(ctx context.Context, ownerID, clientID int) (*Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE id = $1 AND owner_id = $2",
		clientID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("client %d not found", clientID)
		}
		return nil, Internalf(err, "fetch client %d", clientID)
	}
	return c, nil
}

func (s *clientService) CreateClient(ctx context.Context, owner *Account, name, nationalID, phone string) (*Client, error) {
	if owner.Status == StatusTrial {
		var count int
		err := s.pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM clients WHERE owner_id = $1", owner.ID).Scan(&count)
		if err != nil {
			return nil, Internalf(err, "count clients")
		}
		if count >= trialClientLimit {
			return nil, BusinessRule(CodeTrialLimit,
				"trial accounts may register at most %d clients; upgrade to add more", trialClientLimit)
		}
	}

	c, err := scanClient(s.pool.QueryRow(ctx, `
		INSERT INTO clients (owner_id, name, national_id, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING `+clientColumns,
		owner.ID, name, nationalID, phone))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, Conflict(CodeDuplicateClient, "a client with national id %s already exists", nationalID)
		}
		return nil, Internalf(err, "insert client")
	}
	return c, nil
}

func (s *clientService) UpdateClient(ctx context.Context, ownerID, clientID int, name, nationalID, phone string) (*Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx, `
		UPDATE clients SET name = $3, national_id = $4, phone = $5
		WHERE id = $1 AND owner_id = $2
		RETURNING `+clientColumns,
		clientID, ownerID, name, nationalID, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("client %d not found", clientID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, Conflict(CodeDuplicateClient, "a client with national id %s already exists", nationalID)
		}
		return nil, Internalf(err, "update client %d", clientID)
	}
	return c, nil
}

func (s *clientService) DeleteClient(ctx context.Context, ownerID, clientID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Internalf(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	var debts int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM sales
		WHERE client_id = $1 AND status IN ('pending', 'overdue')
	`, clientID).Scan(&debts)
	if err != nil {
		return Internalf(err, "check client debts")
	}
	if debts > 0 {
		return BusinessRule(CodeHasPendingDebts,
			"client has %d unsettled sales and cannot be deleted", debts)
	}

	tag, err := tx.Exec(ctx,
		"DELETE FROM clients WHERE id = $1 AND owner_id = $2", clientID, ownerID)
	if err != nil {
		return Internalf(err, "delete client %d", clientID)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundf("client %d not found", clientID)
	}
	return tx.Commit(ctx)
}
