package app

import (
	"credired/internal/core"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the input for self-service registration.
type RegisterRequest struct {
	Name              string
	Email             string
	Phone             string
	Password          string
	PreferredCurrency string
	InviteCode        string
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	Name              string
	Phone             string
	PreferredCurrency string
	DefaultTermUnit   core.TermUnit
	DefaultTermCount  int
}

// ProductRequest is the input for creating or editing a product.
type ProductRequest struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// AssignStockRequest moves stock from the caller to a downline member.
// Price, when non-nil, overwrites the recipient's unit price.
type AssignStockRequest struct {
	ProductID   int
	RecipientID int
	Quantity    int
	Price       *decimal.Decimal
}

// ClientRequest is the input for creating or editing an end customer.
type ClientRequest struct {
	Name       string
	NationalID string
	Phone      string
}

// SaleItemRequest is one line of a CreateSaleRequest. UnitPrice is in
// the request currency.
type SaleItemRequest struct {
	ProductID int
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateSaleRequest is the input for recording a sale.
type CreateSaleRequest struct {
	Kind       core.SaleKind
	Settlement core.SettlementKind
	ClientID   *int
	BuyerID    *int
	Currency   string
	Items      []SaleItemRequest
	TermUnit   core.TermUnit // optional, with TermCount; empty falls back to seller default
	TermCount  int
}

// ApplyPaymentRequest is the input for registering a collection.
type ApplyPaymentRequest struct {
	SaleID   int
	Amount   decimal.Decimal
	Currency string
}

// CreateNetworkRequest is the input for founding a network.
type CreateNetworkRequest struct {
	Name       string
	LevelNames [5]string
}
