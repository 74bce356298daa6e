package core_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"credired/internal/core"

	"github.com/shopspring/decimal"
)

func TestSubordinateIDs_CollectsAllDescendants(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, _, _, network := newTestServices(pool)
	ctx := context.Background()

	founder := createAccount(t, pool, seedAccount{name: "founder"})
	networkID := createNetwork(t, pool, founder)
	m1 := createAccount(t, pool, seedAccount{name: "m1", role: core.RoleManager, parentID: &founder, networkID: &networkID})
	m2 := createAccount(t, pool, seedAccount{name: "m2", role: core.RoleManager, parentID: &founder, networkID: &networkID})
	leaf := createAccount(t, pool, seedAccount{name: "leaf", parentID: &m1, networkID: &networkID})

	ids, err := network.SubordinateIDs(ctx, founder)
	if err != nil {
		t.Fatalf("SubordinateIDs failed: %v", err)
	}
	sort.Ints(ids)
	want := []int{m1, m2, leaf}
	sort.Ints(want)
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
	for _, id := range ids {
		if id == founder {
			t.Fatal("downline must never contain the root itself")
		}
	}

	tree, err := network.SubordinateTree(ctx, founder)
	if err != nil {
		t.Fatalf("SubordinateTree failed: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("founder has %d direct children in tree, want 2", len(tree))
	}
	for _, node := range tree {
		if node.ID == m1 && (len(node.Subordinates) != 1 || node.Subordinates[0].ID != leaf) {
			t.Errorf("m1 subtree = %+v, want single leaf %d", node.Subordinates, leaf)
		}
	}
}

func TestRemoveMember_FlattensOneLevel(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, _, _, network := newTestServices(pool)
	ctx := context.Background()

	founder := createAccount(t, pool, seedAccount{name: "founder"})
	networkID := createNetwork(t, pool, founder)
	member := createAccount(t, pool, seedAccount{name: "member", role: core.RoleManager, parentID: &founder, networkID: &networkID})
	child := createAccount(t, pool, seedAccount{name: "child", parentID: &member, networkID: &networkID})

	if err := network.RemoveMember(ctx, founder, member); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	check := func(id int, wantRole core.Role) {
		var parentID, netID *int
		var independent bool
		var role core.Role
		err := pool.QueryRow(ctx,
			"SELECT parent_id, network_id, is_independent, role FROM accounts WHERE id = $1", id).
			Scan(&parentID, &netID, &independent, &role)
		if err != nil {
			t.Fatalf("Failed to read account %d: %v", id, err)
		}
		if parentID != nil || netID != nil || !independent {
			t.Errorf("account %d not reset: parent=%v network=%v independent=%v", id, parentID, netID, independent)
		}
		if wantRole != "" && role != wantRole {
			t.Errorf("account %d role = %s, want %s", id, role, wantRole)
		}
	}
	// The member resets to an independent leaf; its child flattens to
	// an independent root keeping its own role.
	check(member, core.RoleReseller)
	check(child, "")
}

func TestRemoveMember_PendingDebtBlocks(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, _, network := newTestServices(pool)
	ctx := context.Background()

	founder := createAccount(t, pool, seedAccount{name: "founder"})
	networkID := createNetwork(t, pool, founder)
	member := createAccount(t, pool, seedAccount{name: "member", parentID: &founder, networkID: &networkID})
	widget := createProduct(t, pool, founder, &networkID, "Widget", 10, "5")

	_, err := sales.CreateSale(ctx, founder, core.SaleInput{
		Kind:       core.SaleNetwork,
		Settlement: core.SettlementCredit,
		BuyerID:    &member,
		Currency:   "USD",
		Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	err = network.RemoveMember(ctx, founder, member)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Code != core.CodeHasPendingDebts {
		t.Fatalf("expected pending-debt rejection, got %v", err)
	}

	var parentID *int
	if err := pool.QueryRow(ctx, "SELECT parent_id FROM accounts WHERE id = $1", member).Scan(&parentID); err != nil {
		t.Fatalf("Failed to read member: %v", err)
	}
	if parentID == nil || *parentID != founder {
		t.Error("blocked removal must leave the member attached")
	}
}

func TestRemoveMember_OutsideDownlineReadsAsNotFound(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, _, _, network := newTestServices(pool)
	ctx := context.Background()

	founder := createAccount(t, pool, seedAccount{name: "founder"})
	createNetwork(t, pool, founder)
	outsider := createAccount(t, pool, seedAccount{name: "outsider"})

	err := network.RemoveMember(ctx, founder, outsider)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Kind != core.KindNotFound {
		t.Fatalf("expected not-found for non-downline member, got %v", err)
	}
}

func TestCheckInviteLimit(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, _, _, network := newTestServices(pool)
	ctx := context.Background()

	founder := createAccount(t, pool, seedAccount{name: "founder", status: core.StatusTrial})
	networkID := createNetwork(t, pool, founder)
	for _, name := range []string{"a", "b", "c"} {
		createAccount(t, pool, seedAccount{name: name, parentID: &founder, networkID: &networkID})
	}

	inviter := &core.Account{ID: founder, Role: core.RoleFounder, Status: core.StatusTrial}
	err := network.CheckInviteLimit(ctx, inviter)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Code != core.CodeTrialLimit {
		t.Fatalf("expected trial limit rejection at 3 invitees, got %v", err)
	}

	// An active subscription lifts the cap.
	inviter.Status = core.StatusActive
	if err := network.CheckInviteLimit(ctx, inviter); err != nil {
		t.Fatalf("active inviter should pass: %v", err)
	}

	// Leaf-tier inviters on trial are not supervisory and never hit
	// the cap.
	leaf := &core.Account{ID: founder, Role: core.RoleReseller, Status: core.StatusTrial}
	if err := network.CheckInviteLimit(ctx, leaf); err != nil {
		t.Fatalf("leaf inviter should pass: %v", err)
	}
}

func TestCreateNetwork_PromotesOwnerOnce(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, _, _, network := newTestServices(pool)
	ctx := context.Background()

	owner := createAccount(t, pool, seedAccount{name: "owner"})

	created, err := network.CreateNetwork(ctx, owner, "Acme", [5]string{})
	if err != nil {
		t.Fatalf("CreateNetwork failed: %v", err)
	}
	if created.LevelNames[0] != "Founder" || created.LevelNames[4] != "Reseller" {
		t.Errorf("default level names not applied: %v", created.LevelNames)
	}

	var role core.Role
	var netID *int
	var independent bool
	err = pool.QueryRow(ctx,
		"SELECT role, network_id, is_independent FROM accounts WHERE id = $1", owner).
		Scan(&role, &netID, &independent)
	if err != nil {
		t.Fatalf("Failed to read owner: %v", err)
	}
	if role != core.RoleFounder || netID == nil || *netID != created.ID || independent {
		t.Errorf("owner not promoted: role=%s network=%v independent=%v", role, netID, independent)
	}

	_, err = network.CreateNetwork(ctx, owner, "Second", [5]string{})
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Code != core.CodeNetworkExists {
		t.Fatalf("expected duplicate network rejection, got %v", err)
	}
}

func TestMemberDetail_StatsAndDownlineScope(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	_, sales, _, network := newTestServices(pool)
	ctx := context.Background()

	founder := createAccount(t, pool, seedAccount{name: "founder", role: core.RoleFounder})
	networkID := createNetwork(t, pool, founder)
	member := createAccount(t, pool, seedAccount{name: "member", role: core.RoleReseller, parentID: &founder, networkID: &networkID})
	outsider := createAccount(t, pool, seedAccount{name: "outsider"})

	carla := createClient(t, pool, member, "Carla")
	createClient(t, pool, member, "Diego")
	widget := createProduct(t, pool, member, &networkID, "Widget", 10, "5")
	if _, err := sales.CreateSale(ctx, member, core.SaleInput{
		Kind:       core.SaleRetail,
		Settlement: core.SettlementCash,
		ClientID:   &carla,
		Currency:   "USD",
		Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}},
	}); err != nil {
		t.Fatalf("cash sale failed: %v", err)
	}
	if _, err := sales.CreateSale(ctx, member, core.SaleInput{
		Kind:       core.SaleRetail,
		Settlement: core.SettlementCredit,
		ClientID:   &carla,
		Currency:   "USD",
		Items:      []core.SaleLineInput{{ProductID: widget, Quantity: 3, UnitPrice: decimal.NewFromInt(5)}},
	}); err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}

	d, err := network.MemberDetail(ctx, founder, member)
	if err != nil {
		t.Fatalf("MemberDetail failed: %v", err)
	}
	if d.Member.ID != member || d.Member.Name != "member" {
		t.Errorf("member = %+v, want account %d", d.Member, member)
	}
	if !d.TotalSold.Equal(decimal.NewFromInt(25)) {
		t.Errorf("total sold = %s, want 25", d.TotalSold)
	}
	if d.PendingSales != 1 {
		t.Errorf("pending sales = %d, want 1", d.PendingSales)
	}
	if d.ClientCount != 2 {
		t.Errorf("client count = %d, want 2", d.ClientCount)
	}

	// Accounts outside the requester's downline read as not found.
	if _, err := network.MemberDetail(ctx, founder, outsider); core.AsError(err) == nil || core.AsError(err).Kind != core.KindNotFound {
		t.Errorf("outsider lookup error = %v, want not found", err)
	}
	if _, err := network.MemberDetail(ctx, member, founder); core.AsError(err) == nil || core.AsError(err).Kind != core.KindNotFound {
		t.Errorf("upward lookup error = %v, want not found", err)
	}
}
