package app

import (
	"context"

	"credired/internal/core"

	"github.com/shopspring/decimal"
)

// ApplicationService is the single interface the web adapter calls. It
// decouples presentation from business logic: implementations contain
// no HTTP types and no display logic of any kind.
type ApplicationService interface {
	// Register creates an account, optionally under an invite code.
	Register(ctx context.Context, req RegisterRequest) (*core.Account, error)

	// Login verifies credentials and returns the account.
	Login(ctx context.Context, email, password string) (*core.Account, error)

	// Authorize loads an account and applies the status gate for a
	// mutating request. A lazily expired trial is persisted before the
	// gate error returns.
	Authorize(ctx context.Context, accountID int) (*core.Account, error)

	// GetProfile loads an account without gating, for read-only views.
	GetProfile(ctx context.Context, accountID int) (*core.Account, error)
	UpdateProfile(ctx context.Context, accountID int, req UpdateProfileRequest) (*core.Account, error)
	ChangePassword(ctx context.Context, accountID int, current, next string) error

	// Inventory.
	ListProducts(ctx context.Context, ownerID int) (*ProductListResult, error)
	GetProduct(ctx context.Context, ownerID, productID int) (*core.Product, error)
	CreateProduct(ctx context.Context, owner *core.Account, req ProductRequest) (*core.Product, error)
	UpdateProduct(ctx context.Context, ownerID, productID int, req ProductRequest) (*core.Product, error)
	DeleteProduct(ctx context.Context, ownerID, productID int) error
	AssignStock(ctx context.Context, ownerID int, req AssignStockRequest) error

	// Clients.
	ListClients(ctx context.Context, ownerID int, search string) (*ClientListResult, error)
	GetClient(ctx context.Context, ownerID, clientID int) (*core.Client, error)
	CreateClient(ctx context.Context, owner *core.Account, req ClientRequest) (*core.Client, error)
	UpdateClient(ctx context.Context, ownerID, clientID int, req ClientRequest) (*core.Client, error)
	DeleteClient(ctx context.Context, ownerID, clientID int) error

	// Sales and collections.
	CreateSale(ctx context.Context, sellerID int, req CreateSaleRequest) (*core.Sale, error)
	GetSale(ctx context.Context, sellerID, saleID int) (*core.Sale, error)
	ListSales(ctx context.Context, sellerID int, filter core.SaleFilter) (*SaleListResult, error)
	Collections(ctx context.Context, sellerID int) (*CollectionsResult, error)

	// Payments.
	ApplyPayment(ctx context.Context, registrarID int, req ApplyPaymentRequest) (*PaymentResult, error)
	ListPayments(ctx context.Context, sellerID, saleID int) ([]core.Payment, error)
	ListMyPayments(ctx context.Context, sellerID, limit, offset int) ([]core.Payment, error)

	// Network.
	CreateNetwork(ctx context.Context, ownerID int, req CreateNetworkRequest) (*core.Network, error)
	GetNetwork(ctx context.Context, networkID int) (*core.Network, error)
	UpdateLevelNames(ctx context.Context, ownerID, networkID int, levelNames [5]string) (*core.Network, error)
	NetworkMembers(ctx context.Context, accountID int) ([]core.NetworkMember, error)
	NetworkMemberDetail(ctx context.Context, requesterID, memberID int) (*core.MemberDetail, error)
	RemoveMember(ctx context.Context, requesterID, memberID int) error

	// Notifications.
	ListNotifications(ctx context.Context, accountID int, unreadOnly bool) ([]core.Notification, error)
	MarkNotificationRead(ctx context.Context, accountID, notificationID int) error
	MarkAllNotificationsRead(ctx context.Context, accountID int) error

	// Dashboards.
	PersonalDashboard(ctx context.Context, accountID int) (*core.PersonalDashboard, error)
	NetworkDashboard(ctx context.Context, accountID int) (*core.NetworkDashboard, error)
	AdminDashboard(ctx context.Context) (*core.AdminDashboard, error)

	// CurrentRates exposes the conversion table the mobile clients use
	// for input previews.
	CurrentRates(ctx context.Context) map[string]decimal.Decimal

	// Admin account management.
	ListAccounts(ctx context.Context, filter core.AccountFilter) ([]core.Account, error)
	SetAccountBlocked(ctx context.Context, accountID int, blocked bool) (*core.Account, error)
	GrantSubscription(ctx context.Context, accountID, months int) (*core.Account, error)
	DeleteAccount(ctx context.Context, accountID int) error
}
