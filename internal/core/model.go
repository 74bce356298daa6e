package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	// RoleAdmin is the platform operator. It sits outside the network
	// hierarchy and bypasses status gating.
	RoleAdmin Role = "admin"

	// The five network tiers, top to bottom. Founders own networks;
	// resellers are the leaf tier.
	RoleFounder     Role = "founder"
	RoleManager     Role = "manager"
	RoleLeader      Role = "leader"
	RoleDistributor Role = "distributor"
	RoleReseller    Role = "reseller"
)

type AccountStatus string

const (
	StatusActive  AccountStatus = "active"
	StatusTrial   AccountStatus = "trial"
	StatusExpired AccountStatus = "expired"
	StatusBlocked AccountStatus = "blocked"
)

// Account is a reseller, a network supervisor, or the platform admin.
// ParentID/NetworkID place it in a distribution hierarchy; independent
// accounts have neither.
type Account struct {
	ID                int            `json:"id"`
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	Phone             string         `json:"phone"`
	PasswordHash      string         `json:"-"`
	Role              Role           `json:"role"`
	Status            AccountStatus  `json:"status"`
	ParentID          *int           `json:"parent_id,omitempty"`
	NetworkID         *int           `json:"network_id,omitempty"`
	IsIndependent     bool           `json:"is_independent"`
	InviteCode        string         `json:"invite_code"`
	PreferredCurrency string         `json:"preferred_currency"`
	DefaultTermUnit   TermUnit       `json:"default_term_unit"`
	DefaultTermCount  int            `json:"default_term_count"`
	SubscriptionStart *time.Time     `json:"subscription_starts_at,omitempty"`
	SubscriptionEnd   *time.Time     `json:"subscription_ends_at,omitempty"`
	TrialEndsAt       *time.Time     `json:"trial_ends_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Network is an organizational grouping owned by exactly one founder.
// Level names are display labels for the five tiers, customizable by
// the owner.
type Network struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	OwnerID    int       `json:"owner_id"`
	LevelNames [5]string `json:"level_names"`
	CreatedAt  time.Time `json:"created_at"`
}

// Client is an end customer of one account (retail sales only). It is
// not itself an Account. NationalID is unique per owner, not globally.
type Client struct {
	ID         int       `json:"id"`
	OwnerID    int       `json:"owner_id"`
	Name       string    `json:"name"`
	NationalID string    `json:"national_id"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
}

// Product is a stock record scoped to one owner. The same name may
// appear under many owners; name is only a matching key during
// transfers, not a shared catalog identity.
type Product struct {
	ID        int             `json:"id"`
	OwnerID   int             `json:"owner_id"`
	NetworkID *int            `json:"network_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // canonical currency
	CreatedAt time.Time       `json:"created_at"`
}

type SaleKind string

const (
	SaleRetail  SaleKind = "retail"  // counterpart is a Client
	SaleNetwork SaleKind = "network" // counterpart is a downline Account
)

type SettlementKind string

const (
	SettlementCash   SettlementKind = "cash"
	SettlementCredit SettlementKind = "credit"
)

type SaleStatus string

const (
	SalePending SaleStatus = "pending"
	SaleSettled SaleStatus = "settled"
	SaleOverdue SaleStatus = "overdue"
)

// CreditTerm is the unit+count defining how far out a credit sale's
// due date lies.
type CreditTerm struct {
	Unit    TermUnit   `json:"unit"`
	Count   int        `json:"count"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// Sale is an immutable transaction with a mutable collection state.
// Line items are a frozen snapshot; later inventory edits never touch
// historical sales.
type Sale struct {
	ID              int             `json:"id"`
	SellerID        int             `json:"seller_id"`
	ClientID        *int            `json:"client_id,omitempty"`
	BuyerID         *int            `json:"buyer_id,omitempty"`
	CounterpartName string          `json:"counterpart_name,omitempty"` // joined
	Kind            SaleKind        `json:"kind"`
	Settlement      SettlementKind  `json:"settlement"`
	Status          SaleStatus      `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"` // canonical currency
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Term            *CreditTerm     `json:"credit_term,omitempty"`
	NetworkID       *int            `json:"network_id,omitempty"`
	Items           []SaleItem      `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Outstanding returns the unpaid remainder of the sale.
func (s *Sale) Outstanding() decimal.Decimal {
	return s.TotalAmount.Sub(s.PaidAmount)
}

// SaleItem is one frozen line of a sale.
type SaleItem struct {
	ID          int             `json:"id"`
	SaleID      int             `json:"sale_id"`
	ProductID   *int            `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"` // canonical currency
}

// Payment is an append-only record of a collection against one sale.
// PayerAccountID or PayerClientID mirrors the sale's counterpart. The
// references null out if the party is later deleted; the row and its
// amount survive as audit trail.
type Payment struct {
	ID             int             `json:"id"`
	SaleID         int             `json:"sale_id"`
	Amount         decimal.Decimal `json:"amount"` // canonical currency
	PayerAccountID *int            `json:"payer_account_id,omitempty"`
	PayerClientID  *int            `json:"payer_client_id,omitempty"`
	RegistrarID    *int            `json:"registrar_id,omitempty"`
	RegistrarName  string          `json:"registrar_name,omitempty"` // joined
	CreatedAt      time.Time       `json:"created_at"`
}

type NotificationType string

const (
	NotifNewMember       NotificationType = "new_member"
	NotifNewMerchandise  NotificationType = "new_merchandise"
	NotifPaymentReceived NotificationType = "payment_received"
)

// Notification is an informational side-channel record. Emitting one
// never blocks or rolls back the mutation that caused it.
type Notification struct {
	ID               int              `json:"id"`
	AccountID        int              `json:"account_id"`
	Type             NotificationType `json:"type"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	RelatedSaleID    *int             `json:"related_sale_id,omitempty"`
	RelatedAccountID *int             `json:"related_account_id,omitempty"`
	Read             bool             `json:"read"`
	CreatedAt        time.Time        `json:"created_at"`
}
