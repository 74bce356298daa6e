package app

import (
	"context"
	"time"

	"credired/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// timeNow is swapped in tests that exercise the status gate.
var timeNow = time.Now

type appService struct {
	pool          *pgxpool.Pool
	accounts      core.AccountService
	clients       core.ClientService
	inventory     core.InventoryService
	sales         core.SaleService
	payments      core.PaymentService
	network       core.NetworkService
	notifications core.NotificationService
	reporting     core.ReportingService
	rates         *core.RateSource
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	accounts core.AccountService,
	clients core.ClientService,
	inventory core.InventoryService,
	sales core.SaleService,
	payments core.PaymentService,
	network core.NetworkService,
	notifications core.NotificationService,
	reporting core.ReportingService,
	rates *core.RateSource,
) ApplicationService {
	return &appService{
		pool:          pool,
		accounts:      accounts,
		clients:       clients,
		inventory:     inventory,
		sales:         sales,
		payments:      payments,
		network:       network,
		notifications: notifications,
		reporting:     reporting,
		rates:         rates,
	}
}

func (s *appService) Register(ctx context.Context, req RegisterRequest) (*core.Account, error) {
	return s.accounts.Register(ctx, core.RegisterInput{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Password:          req.Password,
		PreferredCurrency: req.PreferredCurrency,
		InviteCode:        req.InviteCode,
	})
}

func (s *appService) Login(ctx context.Context, email, password string) (*core.Account, error) {
	return s.accounts.Authenticate(ctx, email, password)
}

func (s *appService) Authorize(ctx context.Context, accountID int) (*core.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	demoted, gateErr := core.Authorize(account, timeNow())
	if demoted {
		// Persist the lazy trial expiry regardless of the gate outcome.
		if err := s.accounts.PersistStatus(ctx, account.ID, account.Status); err != nil {
			return nil, err
		}
	}
	if gateErr != nil {
		return nil, gateErr
	}
	return account, nil
}

func (s *appService) GetProfile(ctx context.Context, accountID int) (*core.Account, error) {
	return s.accounts.GetAccount(ctx, accountID)
}

func (s *appService) UpdateProfile(ctx context.Context, accountID int, req UpdateProfileRequest) (*core.Account, error) {
	return s.accounts.UpdateProfile(ctx, accountID, core.ProfileUpdate{
		Name:              req.Name,
		Phone:             req.Phone,
		PreferredCurrency: req.PreferredCurrency,
		DefaultTermUnit:   req.DefaultTermUnit,
		DefaultTermCount:  req.DefaultTermCount,
	})
}

func (s *appService) ChangePassword(ctx context.Context, accountID int, current, next string) error {
	return s.accounts.ChangePassword(ctx, accountID, current, next)
}

// ── Inventory ────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context, ownerID int) (*ProductListResult, error) {
	products, err := s.inventory.ListProducts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetProduct(ctx context.Context, ownerID, productID int) (*core.Product, error) {
	return s.inventory.GetProduct(ctx, ownerID, productID)
}

func (s *appService) CreateProduct(ctx context.Context, owner *core.Account, req ProductRequest) (*core.Product, error) {
	return s.inventory.CreateProduct(ctx, owner.ID, owner.NetworkID, req.Name, req.Quantity, req.Price)
}

func (s *appService) UpdateProduct(ctx context.Context, ownerID, productID int, req ProductRequest) (*core.Product, error) {
	return s.inventory.UpdateProduct(ctx, ownerID, productID, req.Name, req.Quantity, req.Price)
}

func (s *appService) DeleteProduct(ctx context.Context, ownerID, productID int) error {
	return s.inventory.DeleteProduct(ctx, ownerID, productID)
}

func (s *appService) AssignStock(ctx context.Context, ownerID int, req AssignStockRequest) error {
	return s.inventory.AssignStock(ctx, ownerID, req.ProductID, req.RecipientID, req.Quantity, req.Price)
}

// ── Clients ──────────────────────────────────────────────────────────

func (s *appService) ListClients(ctx context.Context, ownerID int, search string) (*ClientListResult, error) {
	clients, err := s.clients.ListClients(ctx, ownerID, search)
	if err != nil {
		return nil, err
	}
	return &ClientListResult{Clients: clients}, nil
}

func (s *appService) GetClient(ctx context.Context, ownerID, clientID int) (*core.Client, error) {
	return s.clients.GetClient(ctx, ownerID, clientID)
}

func (s *appService) CreateClient(ctx context.Context, owner *core.Account, req ClientRequest) (*core.Client, error) {
	return s.clients.CreateClient(ctx, owner, req.Name, req.NationalID, req.Phone)
}

func (s *appService) UpdateClient(ctx context.Context, ownerID, clientID int, req ClientRequest) (*core.Client, error) {
	return s.clients.UpdateClient(ctx, ownerID, clientID, req.Name, req.NationalID, req.Phone)
}

func (s *appService) DeleteClient(ctx context.Context, ownerID, clientID int) error {
	return s.clients.DeleteClient(ctx, ownerID, clientID)
}

// ── Sales ────────────────────────────────────────────────────────────

func (s *appService) CreateSale(ctx context.Context, sellerID int, req CreateSaleRequest) (*core.Sale, error) {
	input := core.SaleInput{
		Kind:       req.Kind,
		Settlement: req.Settlement,
		ClientID:   req.ClientID,
		BuyerID:    req.BuyerID,
		Currency:   req.Currency,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, core.SaleLineInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if req.TermUnit != "" {
		input.Term = &core.CreditTerm{Unit: req.TermUnit, Count: req.TermCount}
	}
	return s.sales.CreateSale(ctx, sellerID, input)
}

func (s *appService) GetSale(ctx context.Context, sellerID, saleID int) (*core.Sale, error) {
	return s.sales.GetSale(ctx, sellerID, saleID)
}

func (s *appService) ListSales(ctx context.Context, sellerID int, filter core.SaleFilter) (*SaleListResult, error) {
	sales, err := s.sales.ListSales(ctx, sellerID, filter)
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Sales: sales}, nil
}

func (s *appService) Collections(ctx context.Context, sellerID int) (*CollectionsResult, error) {
	sales, summary, err := s.sales.Collections(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return &CollectionsResult{Sales: sales, Summary: summary}, nil
}

// ── Payments ─────────────────────────────────────────────────────────

func (s *appService) ApplyPayment(ctx context.Context, registrarID int, req ApplyPaymentRequest) (*PaymentResult, error) {
	payment, sale, err := s.payments.ApplyPayment(ctx, registrarID, req.SaleID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment, Sale: sale}, nil
}

func (s *appService) ListPayments(ctx context.Context, sellerID, saleID int) ([]core.Payment, error) {
	return s.payments.ListPayments(ctx, sellerID, saleID)
}

func (s *appService) ListMyPayments(ctx context.Context, sellerID, limit, offset int) ([]core.Payment, error) {
	return s.payments.ListMyPayments(ctx, sellerID, limit, offset)
}

// ── Network ──────────────────────────────────────────────────────────

func (s *appService) CreateNetwork(ctx context.Context, ownerID int, req CreateNetworkRequest) (*core.Network, error) {
	return s.network.CreateNetwork(ctx, ownerID, req.Name, req.LevelNames)
}

func (s *appService) GetNetwork(ctx context.Context, networkID int) (*core.Network, error) {
	return s.network.GetNetwork(ctx, networkID)
}

func (s *appService) UpdateLevelNames(ctx context.Context, ownerID, networkID int, levelNames [5]string) (*core.Network, error) {
	return s.network.UpdateLevelNames(ctx, ownerID, networkID, levelNames)
}

func (s *appService) NetworkMembers(ctx context.Context, accountID int) ([]core.NetworkMember, error) {
	return s.network.SubordinateTree(ctx, accountID)
}

func (s *appService) NetworkMemberDetail(ctx context.Context, requesterID, memberID int) (*core.MemberDetail, error) {
	return s.network.MemberDetail(ctx, requesterID, memberID)
}

func (s *appService) RemoveMember(ctx context.Context, requesterID, memberID int) error {
	return s.network.RemoveMember(ctx, requesterID, memberID)
}

// ── Notifications ────────────────────────────────────────────────────

func (s *appService) ListNotifications(ctx context.Context, accountID int, unreadOnly bool) ([]core.Notification, error) {
	return s.notifications.List(ctx, accountID, unreadOnly)
}

func (s *appService) MarkNotificationRead(ctx context.Context, accountID, notificationID int) error {
	return s.notifications.MarkRead(ctx, accountID, notificationID)
}

func (s *appService) MarkAllNotificationsRead(ctx context.Context, accountID int) error {
	return s.notifications.MarkAllRead(ctx, accountID)
}

// ── Dashboards ───────────────────────────────────────────────────────

func (s *appService) PersonalDashboard(ctx context.Context, accountID int) (*core.PersonalDashboard, error) {
	return s.reporting.Personal(ctx, accountID)
}

func (s *appService) NetworkDashboard(ctx context.Context, accountID int) (*core.NetworkDashboard, error) {
	return s.reporting.Network(ctx, accountID)
}

func (s *appService) AdminDashboard(ctx context.Context) (*core.AdminDashboard, error) {
	return s.reporting.Admin(ctx)
}

func (s *appService) CurrentRates(ctx context.Context) map[string]decimal.Decimal {
	return s.rates.Rates(ctx)
}

// ── Admin account management ─────────────────────────────────────────

func (s *appService) ListAccounts(ctx context.Context, filter core.AccountFilter) ([]core.Account, error) {
	return s.accounts.ListAccounts(ctx, filter)
}

func (s *appService) SetAccountBlocked(ctx context.Context, accountID int, blocked bool) (*core.Account, error) {
	return s.accounts.SetBlocked(ctx, accountID, blocked)
}

func (s *appService) GrantSubscription(ctx context.Context, accountID, months int) (*core.Account, error) {
	return s.accounts.GrantSubscription(ctx, accountID, months)
}

func (s *appService) DeleteAccount(ctx context.Context, accountID int) error {
	return s.accounts.DeleteAccount(ctx, accountID)
}
