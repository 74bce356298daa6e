package web

import (
	"net/http"
	"strconv"

	"credired/internal/app"
	"credired/internal/core"
	"credired/internal/obs"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler holds the ApplicationService, the chi router, and the request
// validator.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	validate  *validator.Validate
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(obs.Instrument)
	r.Use(CORS(allowedOrigins))
	r.Use(RateLimit(20, 40))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Handle("/metrics", obs.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB
		r.Post("/api/auth/register", h.register)
		r.Post("/api/auth/login", h.login)
		r.Post("/api/auth/logout", h.logout)
	})

	// ── Protected API (401 JSON if unauthenticated) ──────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Auth and profile
		r.Get("/api/auth/me", h.me)
		r.Put("/api/profile", h.updateProfile)
		r.Put("/api/profile/password", h.changePassword)

		// Exchange rates (input previews on mobile clients)
		r.Get("/api/exchange-rates", h.exchangeRates)

		// Inventory
		r.Get("/api/products", h.listProducts)
		r.Post("/api/products", h.createProduct)
		r.Get("/api/products/{id}", h.getProduct)
		r.Put("/api/products/{id}", h.updateProduct)
		r.Delete("/api/products/{id}", h.deleteProduct)
		r.Post("/api/products/{id}/assign", h.assignStock)

		// Clients
		r.Get("/api/clients", h.listClients)
		r.Post("/api/clients", h.createClient)
		r.Get("/api/clients/{id}", h.getClient)
		r.Put("/api/clients/{id}", h.updateClient)
		r.Delete("/api/clients/{id}", h.deleteClient)

		// Sales and collections
		r.Get("/api/sales", h.listSales)
		r.Post("/api/sales", h.createSale)
		r.Get("/api/sales/{id}", h.getSale)
		r.Get("/api/sales/{id}/payments", h.listPayments)
		r.Post("/api/sales/{id}/payments", h.applyPayment)
		r.Get("/api/collections", h.collections)
		r.Get("/api/payments", h.listMyPayments)

		// Network
		r.Post("/api/network", h.createNetwork)
		r.Get("/api/network", h.getNetwork)
		r.Put("/api/network/levels", h.updateLevelNames)
		r.Get("/api/network/members", h.networkMembers)
		r.Get("/api/network/members/{id}", h.getNetworkMember)
		r.Delete("/api/network/members/{id}", h.removeMember)

		// Notifications
		r.Get("/api/notifications", h.listNotifications)
		r.Post("/api/notifications/{id}/read", h.markNotificationRead)
		r.Post("/api/notifications/read-all", h.markAllNotificationsRead)

		// Dashboards
		r.Get("/api/dashboard", h.personalDashboard)
		r.Get("/api/dashboard/network", h.networkDashboard)

		// ── Admin ─────────────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/api/admin/dashboard", h.adminDashboard)
			r.Get("/api/admin/accounts", h.adminListAccounts)
			r.Post("/api/admin/accounts/{id}/block", h.adminBlockAccount)
			r.Post("/api/admin/accounts/{id}/unblock", h.adminUnblockAccount)
			r.Post("/api/admin/accounts/{id}/subscription", h.adminGrantSubscription)
			r.Delete("/api/admin/accounts/{id}", h.adminDeleteAccount)
		})
	})

	h.router = r
	return r
}

// health returns service liveness.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// intParam extracts and parses the named integer URL parameter. Writes
// a 400 and returns false on garbage input.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v < 1 {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// ── Profile ───────────────────────────────────────────────────────────────────

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateProfile(r.Context(), account.ID, app.UpdateProfileRequest{
		Name:              req.Name,
		Phone:             req.Phone,
		PreferredCurrency: req.PreferredCurrency,
		DefaultTermUnit:   core.TermUnit(req.DefaultTermUnit),
		DefaultTermCount:  req.DefaultTermCount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, updated)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	var req changePasswordRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Exchange rates ────────────────────────────────────────────────────────────

func (h *Handler) exchangeRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.CurrentRates(r.Context()))
}

// ── Inventory ─────────────────────────────────────────────────────────────────

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	result, err := h.svc.ListProducts(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	product, err := h.svc.GetProduct(r.Context(), claims.AccountID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	var req productRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Price.IsNegative() {
		writeError(w, r, "price must not be negative", "VALIDATION", http.StatusBadRequest)
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), account, app.ProductRequest{
		Name:     req.Name,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req productRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Price.IsNegative() {
		writeError(w, r, "price must not be negative", "VALIDATION", http.StatusBadRequest)
		return
	}
	product, err := h.svc.UpdateProduct(r.Context(), account.ID, id, app.ProductRequest{
		Name:     req.Name,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), account.ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignStock(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req assignStockRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Price != nil && req.Price.IsNegative() {
		writeError(w, r, "price must not be negative", "VALIDATION", http.StatusBadRequest)
		return
	}
	err := h.svc.AssignStock(r.Context(), account.ID, app.AssignStockRequest{
		ProductID:   id,
		RecipientID: req.RecipientID,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Clients ───────────────────────────────────────────────────────────────────

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	result, err := h.svc.ListClients(r.Context(), claims.AccountID, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	var req clientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	client, err := h.svc.CreateClient(r.Context(), account, app.ClientRequest{
		Name:       req.Name,
		NationalID: req.NationalID,
		Phone:      req.Phone,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, client)
}

// getClient returns the client together with their sale history.
func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	client, err := h.svc.GetClient(r.Context(), claims.AccountID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sales, err := h.svc.ListSales(r.Context(), claims.AccountID, core.SaleFilter{ClientID: &id})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		Client *core.Client `json:"client"`
		Sales  []core.Sale  `json:"sales"`
	}
	writeJSON(w, response{Client: client, Sales: sales.Sales})
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req clientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	client, err := h.svc.UpdateClient(r.Context(), account.ID, id, app.ClientRequest{
		Name:       req.Name,
		NationalID: req.NationalID,
		Phone:      req.Phone,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, client)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteClient(r.Context(), account.ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Sales ─────────────────────────────────────────────────────────────────────

// saleFilterFromQuery builds a SaleFilter from the optional query
// parameters kind, status, settlement, limit, and offset. Unrecognized
// values are rejected rather than silently matched against nothing.
func saleFilterFromQuery(w http.ResponseWriter, r *http.Request) (core.SaleFilter, bool) {
	var filter core.SaleFilter
	q := r.URL.Query()

	if v := q.Get("kind"); v != "" {
		kind := core.SaleKind(v)
		if kind != core.SaleRetail && kind != core.SaleNetwork {
			writeError(w, r, "invalid kind filter", "BAD_REQUEST", http.StatusBadRequest)
			return filter, false
		}
		filter.Kind = &kind
	}
	if v := q.Get("status"); v != "" {
		status := core.SaleStatus(v)
		if status != core.SalePending && status != core.SaleSettled && status != core.SaleOverdue {
			writeError(w, r, "invalid status filter", "BAD_REQUEST", http.StatusBadRequest)
			return filter, false
		}
		filter.Status = &status
	}
	if v := q.Get("settlement"); v != "" {
		settlement := core.SettlementKind(v)
		if settlement != core.SettlementCash && settlement != core.SettlementCredit {
			writeError(w, r, "invalid settlement filter", "BAD_REQUEST", http.StatusBadRequest)
			return filter, false
		}
		filter.Settlement = &settlement
	}
	if v := q.Get("client_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, "invalid client_id parameter", "BAD_REQUEST", http.StatusBadRequest)
			return filter, false
		}
		filter.ClientID = &n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, "invalid limit parameter", "BAD_REQUEST", http.StatusBadRequest)
			return filter, false
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, "invalid offset parameter", "BAD_REQUEST", http.StatusBadRequest)
			return filter, false
		}
		filter.Offset = n
	}
	return filter, true
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	filter, ok := saleFilterFromQuery(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListSales(r.Context(), claims.AccountID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	sale, err := h.svc.GetSale(r.Context(), claims.AccountID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	var req createSaleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	items := make([]app.SaleItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		if it.UnitPrice.IsNegative() {
			writeError(w, r, "unit price must not be negative", "VALIDATION", http.StatusBadRequest)
			return
		}
		items = append(items, app.SaleItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	sale, err := h.svc.CreateSale(r.Context(), account.ID, app.CreateSaleRequest{
		Kind:       core.SaleKind(req.Kind),
		Settlement: core.SettlementKind(req.Settlement),
		ClientID:   req.ClientID,
		BuyerID:    req.BuyerID,
		Currency:   req.Currency,
		Items:      items,
		TermUnit:   core.TermUnit(req.TermUnit),
		TermCount:  req.TermCount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sale)
}

func (h *Handler) collections(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	result, err := h.svc.Collections(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.svc.ListPayments(r.Context(), claims.AccountID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		Payments []core.Payment `json:"payments"`
	}
	writeJSON(w, response{Payments: payments})
}

func (h *Handler) listMyPayments(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	payments, err := h.svc.ListMyPayments(r.Context(), claims.AccountID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		Payments []core.Payment `json:"payments"`
	}
	writeJSON(w, response{Payments: payments})
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req applyPaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.ApplyPayment(r.Context(), account.ID, app.ApplyPaymentRequest{
		SaleID:   id,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// ── Network ───────────────────────────────────────────────────────────────────

func (h *Handler) createNetwork(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	var req createNetworkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	network, err := h.svc.CreateNetwork(r.Context(), account.ID, app.CreateNetworkRequest{
		Name:       req.Name,
		LevelNames: req.LevelNames,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, network)
}

func (h *Handler) getNetwork(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	account, err := h.svc.GetProfile(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if account.NetworkID == nil {
		writeError(w, r, "account does not belong to a network", "NOT_FOUND", http.StatusNotFound)
		return
	}
	network, err := h.svc.GetNetwork(r.Context(), *account.NetworkID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, network)
}

func (h *Handler) updateLevelNames(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	if account.NetworkID == nil {
		writeError(w, r, "account does not belong to a network", "NOT_FOUND", http.StatusNotFound)
		return
	}
	var req levelNamesRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	network, err := h.svc.UpdateLevelNames(r.Context(), account.ID, *account.NetworkID, req.LevelNames)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, network)
}

func (h *Handler) networkMembers(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	members, err := h.svc.NetworkMembers(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		Members []core.NetworkMember `json:"members"`
	}
	writeJSON(w, response{Members: members})
}

// getNetworkMember returns one downline member with sales and client
// counters. Members outside the caller's downline read as not found.
func (h *Handler) getNetworkMember(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.svc.NetworkMemberDetail(r.Context(), claims.AccountID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, detail)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorized(w, r)
	if !ok {
		return
	}
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(r.Context(), account.ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Notifications ─────────────────────────────────────────────────────────────

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := h.svc.ListNotifications(r.Context(), claims.AccountID, unreadOnly)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}
	type response struct {
		Notifications []core.Notification `json:"notifications"`
		UnreadCount   int                 `json:"unread_count"`
	}
	writeJSON(w, response{Notifications: notifications, UnreadCount: unread})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.MarkNotificationRead(r.Context(), claims.AccountID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if err := h.svc.MarkAllNotificationsRead(r.Context(), claims.AccountID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Dashboards ────────────────────────────────────────────────────────────────

func (h *Handler) personalDashboard(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	dashboard, err := h.svc.PersonalDashboard(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, dashboard)
}

func (h *Handler) networkDashboard(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	dashboard, err := h.svc.NetworkDashboard(r.Context(), claims.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, dashboard)
}

// ── Admin ─────────────────────────────────────────────────────────────────────

func (h *Handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.svc.AdminDashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, dashboard)
}

func (h *Handler) adminListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter core.AccountFilter
	if v := q.Get("status"); v != "" {
		status := core.AccountStatus(v)
		switch status {
		case core.StatusActive, core.StatusTrial, core.StatusExpired, core.StatusBlocked:
			filter.Status = &status
		default:
			writeError(w, r, "invalid status filter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	accounts, err := h.svc.ListAccounts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		Accounts []core.Account `json:"accounts"`
	}
	writeJSON(w, response{Accounts: accounts})
}

func (h *Handler) adminBlockAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	account, err := h.svc.SetAccountBlocked(r.Context(), id, true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, account)
}

func (h *Handler) adminUnblockAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	account, err := h.svc.SetAccountBlocked(r.Context(), id, false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, account)
}

func (h *Handler) adminGrantSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var req subscriptionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	account, err := h.svc.GrantSubscription(r.Context(), id, req.Months)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, account)
}

func (h *Handler) adminDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteAccount(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
