package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// trialPeriod is how long a fresh registration may operate before an
// admin grants a subscription.
const trialPeriod = 15 * 24 * time.Hour

// RegisterInput is a self-service registration request. InviteCode,
// when present, places the new account under the inviter.
type RegisterInput struct {
	Name              string
	Email             string
	Phone             string
	Password          string
	PreferredCurrency string
	InviteCode        string
}

// ProfileUpdate carries the fields an account may edit about itself.
type ProfileUpdate struct {
	Name              string
	Phone             string
	PreferredCurrency string
	DefaultTermUnit   TermUnit
	DefaultTermCount  int
}

// AccountService owns account identity and lifecycle: registration,
// authentication, profile edits, and the admin-driven status machine.
type AccountService interface {
	Register(ctx context.Context, input RegisterInput) (*Account, error)
	Authenticate(ctx context.Context, email, password string) (*Account, error)
	GetAccount(ctx context.Context, accountID int) (*Account, error)
	UpdateProfile(ctx context.Context, accountID int, update ProfileUpdate) (*Account, error)
	// ChangePassword verifies the current password before storing a
	// new hash.
	ChangePassword(ctx context.Context, accountID int, current, next string) error
	// PersistStatus writes back a status demoted lazily by the gate.
	PersistStatus(ctx context.Context, accountID int, status AccountStatus) error

	// Admin operations.
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
	SetBlocked(ctx context.Context, accountID int, blocked bool) (*Account, error)
	GrantSubscription(ctx context.Context, accountID, months int) (*Account, error)
	// DeleteAccount hard-deletes an account without outstanding debts
	// on either side of its sales.
	DeleteAccount(ctx context.Context, accountID int) error
}

type accountService struct {
	pool     *pgxpool.Pool
	network  NetworkService
	notifier Notifier
	now      func() time.Time
}

func NewAccountService(pool *pgxpool.Pool, network NetworkService, notifier Notifier) AccountService {
	return &accountService{pool: pool, network: network, notifier: notifier, now: time.Now}
}

const accountColumns = `id, name, email, phone, password_hash, role, status,
	parent_id, network_id, is_independent, invite_code, preferred_currency,
	default_term_unit, default_term_count,
	subscription_starts_at, subscription_ends_at, trial_ends_at, created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.PasswordHash, &a.Role, &a.Status,
		&a.ParentID, &a.NetworkID, &a.IsIndependent, &a.InviteCode, &a.PreferredCurrency,
		&a.DefaultTermUnit, &a.DefaultTermCount,
		&a.SubscriptionStart, &a.SubscriptionEnd, &a.TrialEndsAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *accountService) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Internalf(err, "hash password")
	}

	role := RoleReseller
	var parentID, networkID *int
	independent := true
	var inviter *Account
	if input.InviteCode != "" {
		inviter, err = scanAccount(s.pool.QueryRow(ctx,
			"SELECT "+accountColumns+" FROM accounts WHERE invite_code = $1", input.InviteCode))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, BusinessRule(CodeInvalidInvite, "invite code is not valid")
			}
			return nil, Internalf(err, "resolve invite code")
		}
		if err := s.network.CheckInviteLimit(ctx, inviter); err != nil {
			return nil, err
		}
		role = NextRole(inviter.Role)
		parentID = &inviter.ID
		// The hierarchy only counts inside a real network. An
		// independent inviter produces another independent account.
		if inviter.NetworkID != nil {
			networkID = inviter.NetworkID
			independent = false
		}
	}

	trialEnds := s.now().Add(trialPeriod)
	if input.PreferredCurrency == "" {
		input.PreferredCurrency = CanonicalCurrency
	}

	account, err := scanAccount(s.pool.QueryRow(ctx, `
		INSERT INTO accounts (name, email, phone, password_hash, role, status,
		                      parent_id, network_id, is_independent, invite_code,
		                      preferred_currency, trial_ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+accountColumns,
		input.Name, input.Email, input.Phone, string(hash), role, StatusTrial,
		parentID, networkID, independent, uuid.NewString(),
		input.PreferredCurrency, trialEnds))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, Conflict(CodeEmailTaken, "email %s is already registered", input.Email)
		}
		return nil, Internalf(err, "insert account")
	}

	if inviter != nil {
		s.notifier.NewMember(ctx, inviter.ID, account.ID, account.Name)
	}
	return account, nil
}

func (s *accountService) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Unauthorizedf("invalid email or password")
		}
		return nil, Internalf(err, "fetch account by email")
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, Unauthorizedf("invalid email or password")
	}
	return account, nil
}

func (s *accountService) GetAccount(ctx context.Context, accountID int) (*Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("account %d not found", accountID)
		}
		return nil, Internalf(err, "fetch account %d", accountID)
	}
	return account, nil
}

func (s *accountService) UpdateProfile(ctx context.Context, accountID int, update ProfileUpdate) (*Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET name = $2, phone = $3, preferred_currency = $4, default_term_unit = $5, default_term_count = $6
		WHERE id = $1
		RETURNING `+accountColumns,
		accountID, update.Name, update.Phone, update.PreferredCurrency,
		update.DefaultTermUnit, update.DefaultTermCount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("account %d not found", accountID)
		}
		return nil, Internalf(err, "update account %d", accountID)
	}
	return account, nil
}

func (s *accountService) ChangePassword(ctx context.Context, accountID int, current, next string) error {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)) != nil {
		return Validationf("current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return Internalf(err, "hash password")
	}
	if _, err := s.pool.Exec(ctx,
		"UPDATE accounts SET password_hash = $2 WHERE id = $1", accountID, string(hash)); err != nil {
		return Internalf(err, "update password of account %d", accountID)
	}
	return nil
}

func (s *accountService) PersistStatus(ctx context.Context, accountID int, status AccountStatus) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE accounts SET status = $2 WHERE id = $1", accountID, status)
	if err != nil {
		return Internalf(err, "persist status of account %d", accountID)
	}
	return nil
}

// AccountFilter narrows and pages the platform account listing. A nil
// status matches all.
type AccountFilter struct {
	Status *AccountStatus
	Limit  int
	Offset int
}

func (s *accountService) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	sql := "SELECT " + accountColumns + " FROM accounts"
	var args []any
	if filter.Status != nil {
		args = append(args, *filter.Status)
		sql += " WHERE status = $" + strconv.Itoa(len(args))
	}
	sql += " ORDER BY created_at DESC, id DESC"
	limit := filter.Limit
	if limit < 1 || limit > 200 {
		limit = 100
	}
	args = append(args, limit)
	sql += " LIMIT $" + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sql += " OFFSET $" + strconv.Itoa(len(args))
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, Internalf(err, "query accounts")
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, Internalf(err, "scan account")
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *accountService) SetBlocked(ctx context.Context, accountID int, blocked bool) (*Account, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Role == RoleAdmin {
		return nil, Forbidden(CodeForbidden, "admin accounts cannot be blocked")
	}

	status := StatusBlocked
	if !blocked {
		status = RestoredStatus(account, s.now())
	}
	if err := s.PersistStatus(ctx, accountID, status); err != nil {
		return nil, err
	}
	account.Status = status
	return account, nil
}

func (s *accountService) GrantSubscription(ctx context.Context, accountID, months int) (*Account, error) {
	if months < 1 {
		return nil, Validationf("subscription must be at least one month")
	}
	start := s.now()
	end := start.AddDate(0, months, 0)
	account, err := scanAccount(s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET status = $2, subscription_starts_at = $3, subscription_ends_at = $4
		WHERE id = $1
		RETURNING `+accountColumns,
		accountID, StatusActive, start, end))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("account %d not found", accountID)
		}
		return nil, Internalf(err, "grant subscription to account %d", accountID)
	}
	return account, nil
}

func (s *accountService) DeleteAccount(ctx context.Context, accountID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Internalf(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	var debts int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM sales
		WHERE (buyer_id = $1 OR seller_id = $1) AND status IN ('pending', 'overdue')
	`, accountID).Scan(&debts)
	if err != nil {
		return Internalf(err, "check account debts")
	}
	if debts > 0 {
		return BusinessRule(CodeHasPendingDebts,
			"account has %d unsettled sales and cannot be deleted", debts)
	}

	// Children flatten to independent roots first, same as a network
	// removal.
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET parent_id = NULL, network_id = NULL, is_independent = true
		WHERE parent_id = $1
	`, accountID)
	if err != nil {
		return Internalf(err, "detach children of account %d", accountID)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM accounts WHERE id = $1", accountID)
	if err != nil {
		return Internalf(err, "delete account %d", accountID)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundf("account %d not found", accountID)
	}
	return tx.Commit(ctx)
}
