package app

import "credired/internal/core"

// ProductListResult wraps a product listing.
type ProductListResult struct {
	Products []core.Product `json:"products"`
}

// ClientListResult wraps a client listing.
type ClientListResult struct {
	Clients []core.Client `json:"clients"`
}

// SaleListResult wraps a sale listing.
type SaleListResult struct {
	Sales []core.Sale `json:"sales"`
}

// CollectionsResult is the unpaid-credit view with its summary line.
type CollectionsResult struct {
	Sales   []core.Sale             `json:"sales"`
	Summary core.CollectionsSummary `json:"summary"`
}

// PaymentResult pairs a registered payment with the updated sale.
type PaymentResult struct {
	Payment *core.Payment `json:"payment"`
	Sale    *core.Sale    `json:"sale"`
}
