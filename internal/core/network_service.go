package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// trialInviteLimit caps direct invitees while a supervisory inviter is
// still on trial.
const trialInviteLimit = 3

// NetworkMember is an account summary shaped for hierarchy listings.
type NetworkMember struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         Role            `json:"role"`
	Status       AccountStatus   `json:"status"`
	ParentID     *int            `json:"parent_id,omitempty"`
	Subordinates []NetworkMember `json:"subordinates,omitempty"`
}

// MemberDetail pairs a member summary with that member's activity
// counters for the member drill-down view.
type MemberDetail struct {
	Member       NetworkMember   `json:"member"`
	TotalSold    decimal.Decimal `json:"total_sold"`
	PendingSales int             `json:"pending_sales"`
	ClientCount  int             `json:"client_count"`
}

// NetworkService owns organizational structure: creation, downline
// traversal, invite limits, and member removal. Traversal is an
// explicit level-by-level worklist over the parent index, never
// unbounded recursion.
type NetworkService interface {
	CreateNetwork(ctx context.Context, ownerID int, name string, levelNames [5]string) (*Network, error)
	GetNetwork(ctx context.Context, networkID int) (*Network, error)
	UpdateLevelNames(ctx context.Context, ownerID, networkID int, levelNames [5]string) (*Network, error)

	// SubordinateIDs collects all descendants of the account through
	// the parent edge, unbounded depth. Never contains the root.
	SubordinateIDs(ctx context.Context, accountID int) ([]int, error)
	// SubordinateTree shapes the same traversal as nested summaries.
	SubordinateTree(ctx context.Context, accountID int) ([]NetworkMember, error)

	// CheckInviteLimit rejects with the trial-limit error when a
	// supervisory inviter on trial already has the maximum number of
	// direct invitees.
	CheckInviteLimit(ctx context.Context, inviter *Account) error

	// MemberDetail returns a downline member with its sales activity
	// summary. Accounts outside the requester's downline read as not
	// found rather than forbidden.
	MemberDetail(ctx context.Context, requesterID, memberID int) (*MemberDetail, error)

	// RemoveMember detaches a downline member: its direct children
	// flatten to independent roots (one level, not re-attachment to
	// the member's parent) and the member resets to an independent
	// leaf. Fails while the member owes money as a sale counterpart.
	RemoveMember(ctx context.Context, requesterID, memberID int) error
}

type networkService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewNetworkService(pool *pgxpool.Pool) NetworkService {
	return &networkService{pool: pool, now: time.Now}
}

const networkColumns = "id, name, owner_id, level_1, level_2, level_3, level_4, level_5, created_at"

func scanNetwork(row pgx.Row) (*Network, error) {
	var n Network
	err := row.Scan(&n.ID, &n.Name, &n.OwnerID,
		&n.LevelNames[0], &n.LevelNames[1], &n.LevelNames[2], &n.LevelNames[3], &n.LevelNames[4],
		&n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *networkService) CreateNetwork(ctx context.Context, ownerID int, name string, levelNames [5]string) (*Network, error) {
	defaults := [5]string{"Founder", "Manager", "Leader", "Distributor", "Reseller"}
	for i, ln := range levelNames {
		if ln == "" {
			levelNames[i] = defaults[i]
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, Internalf(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	var existing int
	err = tx.QueryRow(ctx, "SELECT id FROM networks WHERE owner_id = $1 FOR UPDATE", ownerID).Scan(&existing)
	switch {
	case err == nil:
		return nil, Conflict(CodeNetworkExists, "account %d already owns a network", ownerID)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, Internalf(err, "check existing network")
	}

	network, err := scanNetwork(tx.QueryRow(ctx, `
		INSERT INTO networks (name, owner_id, level_1, level_2, level_3, level_4, level_5)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+networkColumns,
		name, ownerID, levelNames[0], levelNames[1], levelNames[2], levelNames[3], levelNames[4]))
	if err != nil {
		return nil, Internalf(err, "insert network")
	}

	// Founding promotes the owner to the top tier and attaches it to
	// its own network.
	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET role = $2, network_id = $3, is_independent = false
		WHERE id = $1 AND role <> $4
	`, ownerID, RoleFounder, network.ID, RoleAdmin)
	if err != nil {
		return nil, Internalf(err, "promote network owner")
	}
	if tag.RowsAffected() == 0 {
		// Admin accounts keep their role but still attach.
		_, err = tx.Exec(ctx,
			"UPDATE accounts SET network_id = $2, is_independent = false WHERE id = $1",
			ownerID, network.ID)
		if err != nil {
			return nil, Internalf(err, "attach network owner")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, Internalf(err, "commit network creation")
	}
	return network, nil
}

func (s *networkService) GetNetwork(ctx context.Context, networkID int) (*Network, error) {
	n, err := scanNetwork(s.pool.QueryRow(ctx,
		"SELECT "+networkColumns+" FROM networks WHERE id = $1", networkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("network %d not found", networkID)
		}
		return nil, Internalf(err, "fetch network %d", networkID)
	}
	return n, nil
}

func (s *networkService) UpdateLevelNames(ctx context.Context, ownerID, networkID int, levelNames [5]string) (*Network, error) {
	n, err := scanNetwork(s.pool.QueryRow(ctx, `
		UPDATE networks SET level_1 = $3, level_2 = $4, level_3 = $5, level_4 = $6, level_5 = $7
		WHERE id = $1 AND owner_id = $2
		RETURNING `+networkColumns,
		networkID, ownerID, levelNames[0], levelNames[1], levelNames[2], levelNames[3], levelNames[4]))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("network %d not found", networkID)
		}
		return nil, Internalf(err, "update network %d", networkID)
	}
	return n, nil
}

// childRows loads all direct children of the given parents in one
// round trip.
func (s *networkService) childRows(ctx context.Context, parents []int) ([]NetworkMember, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, role, status, parent_id
		FROM accounts
		WHERE parent_id = ANY($1)
		ORDER BY id
	`, parents)
	if err != nil {
		return nil, Internalf(err, "query children")
	}
	defer rows.Close()

	var members []NetworkMember
	for rows.Next() {
		var m NetworkMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Role, &m.Status, &m.ParentID); err != nil {
			return nil, Internalf(err, "scan member")
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *networkService) SubordinateIDs(ctx context.Context, accountID int) ([]int, error) {
	var ids []int
	seen := map[int]bool{accountID: true}
	frontier := []int{accountID}
	for len(frontier) > 0 {
		children, err := s.childRows(ctx, frontier)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			ids = append(ids, c.ID)
			frontier = append(frontier, c.ID)
		}
	}
	return ids, nil
}

func (s *networkService) SubordinateTree(ctx context.Context, accountID int) ([]NetworkMember, error) {
	// Load the whole downline level by level, then stitch the tree in
	// memory from the parent index.
	byParent := map[int][]NetworkMember{}
	seen := map[int]bool{accountID: true}
	frontier := []int{accountID}
	for len(frontier) > 0 {
		children, err := s.childRows(ctx, frontier)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
			frontier = append(frontier, c.ID)
		}
	}

	var build func(parentID int) []NetworkMember
	build = func(parentID int) []NetworkMember {
		nodes := byParent[parentID]
		out := make([]NetworkMember, len(nodes))
		for i, n := range nodes {
			n.Subordinates = build(n.ID)
			out[i] = n
		}
		return out
	}
	return build(accountID), nil
}

func (s *networkService) CheckInviteLimit(ctx context.Context, inviter *Account) error {
	if inviter.Status != StatusTrial || !inviter.Role.Supervisory() {
		return nil
	}
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM accounts WHERE parent_id = $1", inviter.ID).Scan(&count)
	if err != nil {
		return Internalf(err, "count invitees")
	}
	if count >= trialInviteLimit {
		return BusinessRule(CodeTrialLimit,
			"trial accounts may invite at most %d members; upgrade to invite more", trialInviteLimit)
	}
	return nil
}

func (s *networkService) MemberDetail(ctx context.Context, requesterID, memberID int) (*MemberDetail, error) {
	downline, err := s.SubordinateIDs(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	inDownline := false
	for _, id := range downline {
		if id == memberID {
			inDownline = true
			break
		}
	}
	if !inDownline {
		return nil, NotFoundf("account %d not found", memberID)
	}

	var d MemberDetail
	err = s.pool.QueryRow(ctx, `
		SELECT id, name, email, role, status, parent_id
		FROM accounts WHERE id = $1
	`, memberID).Scan(&d.Member.ID, &d.Member.Name, &d.Member.Email,
		&d.Member.Role, &d.Member.Status, &d.Member.ParentID)
	if err != nil {
		return nil, Internalf(err, "load member %d", memberID)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0),
		       COUNT(*) FILTER (WHERE status IN ('pending', 'overdue'))
		FROM sales WHERE seller_id = $1
	`, memberID).Scan(&d.TotalSold, &d.PendingSales)
	if err != nil {
		return nil, Internalf(err, "member %d sales summary", memberID)
	}

	err = s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM clients WHERE owner_id = $1", memberID,
	).Scan(&d.ClientCount)
	if err != nil {
		return nil, Internalf(err, "member %d client count", memberID)
	}
	return &d, nil
}

func (s *networkService) RemoveMember(ctx context.Context, requesterID, memberID int) error {
	if requesterID == memberID {
		return Validationf("cannot remove yourself from your own network")
	}

	downline, err := s.SubordinateIDs(ctx, requesterID)
	if err != nil {
		return err
	}
	inDownline := false
	for _, id := range downline {
		if id == memberID {
			inDownline = true
			break
		}
	}
	if !inDownline {
		return NotFoundf("account %d not found", memberID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Internalf(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT id FROM accounts WHERE id = $1 FOR UPDATE", memberID); err != nil {
		return Internalf(err, "lock member %d", memberID)
	}

	var debts int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM sales
		WHERE buyer_id = $1 AND status IN ('pending', 'overdue')
	`, memberID).Scan(&debts)
	if err != nil {
		return Internalf(err, "check member debts")
	}
	if debts > 0 {
		return BusinessRule(CodeHasPendingDebts,
			"member has %d unsettled purchases and cannot be removed", debts)
	}

	// One-level flatten: the member's direct children become
	// independent roots rather than re-attaching upward.
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET parent_id = NULL, network_id = NULL, is_independent = true
		WHERE parent_id = $1
	`, memberID)
	if err != nil {
		return Internalf(err, "flatten member children")
	}

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET parent_id = NULL, network_id = NULL, is_independent = true, role = $2
		WHERE id = $1
	`, memberID, RoleReseller)
	if err != nil {
		return Internalf(err, "reset member %d", memberID)
	}

	if err := tx.Commit(ctx); err != nil {
		return Internalf(err, "commit member removal")
	}
	return nil
}
