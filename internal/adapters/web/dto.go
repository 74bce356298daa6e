package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Request bodies accepted by the API. Structural validation (required
// fields, enums, bounds) lives here as validator tags; business rules
// stay in the core services.

type registerRequest struct {
	Name              string `json:"name" validate:"required,min=1,max=120"`
	Email             string `json:"email" validate:"required,email,max=255"`
	Phone             string `json:"phone" validate:"omitempty,max=32"`
	Password          string `json:"password" validate:"required,min=8,max=128"`
	PreferredCurrency string `json:"preferred_currency" validate:"omitempty,oneof=USD COP VES"`
	InviteCode        string `json:"invite_code" validate:"omitempty,uuid4"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name              string `json:"name" validate:"required,min=1,max=120"`
	Phone             string `json:"phone" validate:"omitempty,max=32"`
	PreferredCurrency string `json:"preferred_currency" validate:"omitempty,oneof=USD COP VES"`
	DefaultTermUnit   string `json:"default_term_unit" validate:"omitempty,oneof=biweekly weekly"`
	DefaultTermCount  int    `json:"default_term_count" validate:"omitempty,min=1,max=36"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type productRequest struct {
	Name     string          `json:"name" validate:"required,min=1,max=200"`
	Quantity int             `json:"quantity" validate:"min=0"`
	Price    decimal.Decimal `json:"price"`
}

type assignStockRequest struct {
	RecipientID int              `json:"recipient_id" validate:"required,min=1"`
	Quantity    int              `json:"quantity" validate:"required,min=1"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

type clientRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=120"`
	NationalID string `json:"national_id" validate:"required,min=1,max=64"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
}

type saleItemRequest struct {
	ProductID int             `json:"product_id" validate:"required,min=1"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createSaleRequest struct {
	Kind       string            `json:"kind" validate:"required,oneof=retail network"`
	Settlement string            `json:"settlement" validate:"required,oneof=cash credit"`
	ClientID   *int              `json:"client_id,omitempty"`
	BuyerID    *int              `json:"buyer_id,omitempty"`
	Currency   string            `json:"currency" validate:"omitempty,oneof=USD COP VES"`
	Items      []saleItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	TermUnit   string            `json:"term_unit" validate:"omitempty,oneof=biweekly weekly"`
	TermCount  int               `json:"term_count" validate:"omitempty,min=1,max=36"`
}

type applyPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"omitempty,oneof=USD COP VES"`
}

type createNetworkRequest struct {
	Name       string    `json:"name" validate:"required,min=1,max=120"`
	LevelNames [5]string `json:"level_names"`
}

type levelNamesRequest struct {
	LevelNames [5]string `json:"level_names"`
}

type subscriptionRequest struct {
	Months int `json:"months" validate:"required,min=1,max=36"`
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeAndValidate decodes the body into v and runs struct validation.
// Writes a 400 with the first offending fields on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, r, validationMessage(err), "VALIDATION", http.StatusBadRequest)
		return false
	}
	return true
}

// validationMessage flattens validator errors into a readable one-liner.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fieldName(fe)))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", fieldName(fe)))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fieldName(fe), fe.Param()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s is below the minimum of %s", fieldName(fe), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s exceeds the maximum of %s", fieldName(fe), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fieldName(fe)))
		}
	}
	return strings.Join(parts, "; ")
}

func fieldName(fe validator.FieldError) string {
	// StructNamespace looks like "createSaleRequest.Items[0].Quantity";
	// drop the type prefix for client-facing messages.
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
