package core

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Mailer delivers external notifications. Delivery is best effort:
// implementations log failures instead of returning them, so a dead
// mail provider never rolls back a sale or a payment.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string)
}

// LogMailer writes outbound mail to the process log. It stands in for
// a real provider in development and tests.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) {
	log.Printf("mail to=%s subject=%q", to, subject)
}

// Notifier emits semantic events toward an account: a stored
// in-app notification plus an optional email. All methods are
// fire-and-forget.
type Notifier interface {
	NewMember(ctx context.Context, recipientID, memberID int, memberName string)
	NewMerchandise(ctx context.Context, recipientID, senderID int, productName string, quantity int)
	PaymentReceived(ctx context.Context, recipientID, saleID int, amount string, settled bool)
	// SaleRecorded is the seller-facing confirmation. Email only, no
	// stored notification.
	SaleRecorded(ctx context.Context, sellerID, saleID int, total string, settlement SettlementKind)
}

// NotificationService stores and lists in-app notifications and, via
// the Mailer, mirrors them to email. It implements Notifier.
type NotificationService interface {
	Notifier
	List(ctx context.Context, accountID int, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, accountID, notificationID int) error
	MarkAllRead(ctx context.Context, accountID int) error
}

type notificationService struct {
	pool   *pgxpool.Pool
	mailer Mailer
}

func NewNotificationService(pool *pgxpool.Pool, mailer Mailer) NotificationService {
	return &notificationService{pool: pool, mailer: mailer}
}

func (s *notificationService) store(ctx context.Context, n Notification) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (account_id, type, title, message, related_sale_id, related_account_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AccountID, n.Type, n.Title, n.Message, n.RelatedSaleID, n.RelatedAccountID)
	if err != nil {
		log.Printf("notification store failed for account %d: %v", n.AccountID, err)
	}
}

func (s *notificationService) email(ctx context.Context, accountID int, subject, body string) {
	var email string
	err := s.pool.QueryRow(ctx, "SELECT email FROM accounts WHERE id = $1", accountID).Scan(&email)
	if err != nil {
		log.Printf("notification email lookup failed for account %d: %v", accountID, err)
		return
	}
	s.mailer.Send(ctx, email, subject, body)
}

func (s *notificationService) NewMember(ctx context.Context, recipientID, memberID int, memberName string) {
	msg := fmt.Sprintf("%s joined your network", memberName)
	s.store(ctx, Notification{
		AccountID:        recipientID,
		Type:             NotifNewMember,
		Title:            "New member",
		Message:          msg,
		RelatedAccountID: &memberID,
	})
	s.email(ctx, recipientID, "New member in your network", msg)
}

func (s *notificationService) NewMerchandise(ctx context.Context, recipientID, senderID int, productName string, quantity int) {
	msg := fmt.Sprintf("you received %d x %s", quantity, productName)
	s.store(ctx, Notification{
		AccountID:        recipientID,
		Type:             NotifNewMerchandise,
		Title:            "New merchandise",
		Message:          msg,
		RelatedAccountID: &senderID,
	})
	s.email(ctx, recipientID, "New merchandise assigned", msg)
}

func (s *notificationService) PaymentReceived(ctx context.Context, recipientID, saleID int, amount string, settled bool) {
	title := "Partial payment"
	msg := fmt.Sprintf("payment of %s received on sale %d", amount, saleID)
	if settled {
		title = "Debt settled"
		msg = fmt.Sprintf("sale %d is fully paid (last payment %s)", saleID, amount)
	}
	s.store(ctx, Notification{
		AccountID:     recipientID,
		Type:          NotifPaymentReceived,
		Title:         title,
		Message:       msg,
		RelatedSaleID: &saleID,
	})
	s.email(ctx, recipientID, title, msg)
}

func (s *notificationService) SaleRecorded(ctx context.Context, sellerID, saleID int, total string, settlement SettlementKind) {
	subject := "Sale recorded"
	body := fmt.Sprintf("cash sale %d for %s was recorded and settled", saleID, total)
	if settlement == SettlementCredit {
		body = fmt.Sprintf("credit sale %d for %s was recorded and is pending collection", saleID, total)
	}
	s.email(ctx, sellerID, subject, body)
}

func (s *notificationService) List(ctx context.Context, accountID int, unreadOnly bool) ([]Notification, error) {
	sql := `
		SELECT id, account_id, type, title, message, related_sale_id, related_account_id, read, created_at
		FROM notifications
		WHERE account_id = $1`
	if unreadOnly {
		sql += " AND read = false"
	}
	sql += " ORDER BY created_at DESC, id DESC LIMIT 100"

	rows, err := s.pool.Query(ctx, sql, accountID)
	if err != nil {
		return nil, Internalf(err, "query notifications")
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Type, &n.Title, &n.Message,
			&n.RelatedSaleID, &n.RelatedAccountID, &n.Read, &n.CreatedAt); err != nil {
			return nil, Internalf(err, "scan notification")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *notificationService) MarkRead(ctx context.Context, accountID, notificationID int) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE notifications SET read = true WHERE id = $1 AND account_id = $2",
		notificationID, accountID)
	if err != nil {
		return Internalf(err, "mark notification %d read", notificationID)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundf("notification %d not found", notificationID)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, accountID int) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE notifications SET read = true WHERE account_id = $1 AND read = false",
		accountID)
	if err != nil {
		return Internalf(err, "mark notifications read")
	}
	return nil
}
