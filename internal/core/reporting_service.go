package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PersonalDashboard aggregates one account's own activity.
type PersonalDashboard struct {
	TotalSales      int             `json:"total_sales"`
	SalesVolume     decimal.Decimal `json:"sales_volume"`
	MonthVolume     decimal.Decimal `json:"month_volume"`
	PrevMonthVolume decimal.Decimal `json:"prev_month_volume"`
	Collected       decimal.Decimal `json:"collected"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	CountPending    int             `json:"count_pending"`
	CountOverdue    int             `json:"count_overdue"`
	ProductCount    int             `json:"product_count"`
	StockValue      decimal.Decimal `json:"stock_value"`
	ClientCount     int             `json:"client_count"`
	DelinquentCount int             `json:"delinquent_count"`
	TopProduct      *TopProduct     `json:"top_product,omitempty"`
}

// TopProduct is the best-selling line by units across a seller's sales.
type TopProduct struct {
	Name      string `json:"name"`
	UnitsSold int    `json:"units_sold"`
}

// NetworkDashboard aggregates a supervisor's entire downline.
type NetworkDashboard struct {
	MemberCount    int             `json:"member_count"`
	MembersByState map[string]int  `json:"members_by_state"`
	SalesVolume    decimal.Decimal `json:"sales_volume"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	TotalSales     int             `json:"total_sales"`
	TopSeller      *TopSeller      `json:"top_seller,omitempty"`
	TopDelinquent  *TopDelinquent  `json:"top_delinquent,omitempty"`
}

// TopSeller is the downline member with the highest sales volume.
type TopSeller struct {
	AccountID int             `json:"account_id"`
	Name      string          `json:"name"`
	Volume    decimal.Decimal `json:"volume"`
}

// TopDelinquent is the downline member carrying the largest unsettled
// balance as a seller.
type TopDelinquent struct {
	AccountID   int             `json:"account_id"`
	Name        string          `json:"name"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// AdminDashboard is the platform operator's overview.
type AdminDashboard struct {
	AccountCount     int             `json:"account_count"`
	AccountsByStatus map[string]int  `json:"accounts_by_status"`
	NetworkCount     int             `json:"network_count"`
	SaleCount        int             `json:"sale_count"`
	CollectedVolume  decimal.Decimal `json:"collected_volume"`
}

// ReportingService computes the read-only dashboard aggregates. Each
// dashboard runs the caller's lazy overdue sweep first so the pending
// and overdue figures reflect the clock.
type ReportingService interface {
	Personal(ctx context.Context, accountID int) (*PersonalDashboard, error)
	Network(ctx context.Context, accountID int) (*NetworkDashboard, error)
	Admin(ctx context.Context) (*AdminDashboard, error)
}

type reportingService struct {
	pool    *pgxpool.Pool
	sales   SaleService
	network NetworkService
}

func NewReportingService(pool *pgxpool.Pool, sales SaleService, network NetworkService) ReportingService {
	return &reportingService{pool: pool, sales: sales, network: network}
}

func (s *reportingService) Personal(ctx context.Context, accountID int) (*PersonalDashboard, error) {
	if err := s.sales.SweepOverdue(ctx, accountID); err != nil {
		return nil, err
	}

	d := &PersonalDashboard{
		SalesVolume: decimal.Zero,
		Collected:   decimal.Zero,
		Outstanding: decimal.Zero,
		StockValue:  decimal.Zero,
	}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(total_amount) FILTER (WHERE created_at >= date_trunc('month', now())), 0),
		       COALESCE(SUM(total_amount) FILTER (WHERE created_at >= date_trunc('month', now()) - INTERVAL '1 month'
		                                            AND created_at < date_trunc('month', now())), 0),
		       COALESCE(SUM(paid_amount), 0),
		       COALESCE(SUM(total_amount - paid_amount) FILTER (WHERE status IN ('pending', 'overdue')), 0),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'overdue'),
		       COUNT(DISTINCT client_id) FILTER (WHERE status = 'overdue')
		FROM sales WHERE seller_id = $1
	`, accountID).Scan(&d.TotalSales, &d.SalesVolume, &d.MonthVolume, &d.PrevMonthVolume,
		&d.Collected, &d.Outstanding, &d.CountPending, &d.CountOverdue, &d.DelinquentCount)
	if err != nil {
		return nil, Internalf(err, "aggregate sales")
	}

	var top TopProduct
	err = s.pool.QueryRow(ctx, `
		SELECT si.product_name, SUM(si.quantity)::int
		FROM sale_items si JOIN sales s ON s.id = si.sale_id
		WHERE s.seller_id = $1
		GROUP BY si.product_name
		ORDER BY 2 DESC, 1 ASC
		LIMIT 1
	`, accountID).Scan(&top.Name, &top.UnitsSold)
	switch {
	case err == nil:
		d.TopProduct = &top
	case errors.Is(err, pgx.ErrNoRows):
		// no sales yet
	default:
		return nil, Internalf(err, "top product")
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(quantity * price), 0)
		FROM products WHERE owner_id = $1
	`, accountID).Scan(&d.ProductCount, &d.StockValue)
	if err != nil {
		return nil, Internalf(err, "aggregate stock")
	}

	err = s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM clients WHERE owner_id = $1", accountID).Scan(&d.ClientCount)
	if err != nil {
		return nil, Internalf(err, "count clients")
	}
	return d, nil
}

func (s *reportingService) Network(ctx context.Context, accountID int) (*NetworkDashboard, error) {
	memberIDs, err := s.network.SubordinateIDs(ctx, accountID)
	if err != nil {
		return nil, err
	}

	d := &NetworkDashboard{
		MemberCount:    len(memberIDs),
		MembersByState: map[string]int{},
		SalesVolume:    decimal.Zero,
		Outstanding:    decimal.Zero,
	}
	if len(memberIDs) == 0 {
		return d, nil
	}

	rows, err := s.pool.Query(ctx,
		"SELECT status, COUNT(*) FROM accounts WHERE id = ANY($1) GROUP BY status", memberIDs)
	if err != nil {
		return nil, Internalf(err, "count members by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, Internalf(err, "scan member count")
		}
		d.MembersByState[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterate member counts")
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(total_amount - paid_amount) FILTER (WHERE status IN ('pending', 'overdue')), 0)
		FROM sales WHERE seller_id = ANY($1)
	`, memberIDs).Scan(&d.TotalSales, &d.SalesVolume, &d.Outstanding)
	if err != nil {
		return nil, Internalf(err, "aggregate downline sales")
	}

	var top TopSeller
	err = s.pool.QueryRow(ctx, `
		SELECT s.seller_id, a.name, SUM(s.total_amount)
		FROM sales s JOIN accounts a ON a.id = s.seller_id
		WHERE s.seller_id = ANY($1)
		GROUP BY s.seller_id, a.name
		ORDER BY 3 DESC, 1 ASC
		LIMIT 1
	`, memberIDs).Scan(&top.AccountID, &top.Name, &top.Volume)
	switch {
	case err == nil:
		d.TopSeller = &top
	case errors.Is(err, pgx.ErrNoRows):
		// downline has no sales yet
	default:
		return nil, Internalf(err, "top seller")
	}

	var worst TopDelinquent
	err = s.pool.QueryRow(ctx, `
		SELECT s.seller_id, a.name, SUM(s.total_amount - s.paid_amount)
		FROM sales s JOIN accounts a ON a.id = s.seller_id
		WHERE s.seller_id = ANY($1) AND s.status IN ('pending', 'overdue')
		GROUP BY s.seller_id, a.name
		ORDER BY 3 DESC, 1 ASC
		LIMIT 1
	`, memberIDs).Scan(&worst.AccountID, &worst.Name, &worst.Outstanding)
	switch {
	case err == nil:
		d.TopDelinquent = &worst
	case errors.Is(err, pgx.ErrNoRows):
		// nobody owes anything
	default:
		return nil, Internalf(err, "top delinquent")
	}
	return d, nil
}

func (s *reportingService) Admin(ctx context.Context) (*AdminDashboard, error) {
	d := &AdminDashboard{AccountsByStatus: map[string]int{}}

	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM accounts),
		       (SELECT COUNT(*) FROM networks),
		       (SELECT COUNT(*) FROM sales),
		       (SELECT COALESCE(SUM(paid_amount), 0) FROM sales)
	`).Scan(&d.AccountCount, &d.NetworkCount, &d.SaleCount, &d.CollectedVolume)
	if err != nil {
		return nil, Internalf(err, "aggregate platform counts")
	}

	rows, err := s.pool.Query(ctx, "SELECT status, COUNT(*) FROM accounts GROUP BY status")
	if err != nil {
		return nil, Internalf(err, "count accounts by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, Internalf(err, "scan account count")
		}
		d.AccountsByStatus[status] = count
	}
	return d, rows.Err()
}
