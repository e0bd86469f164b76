package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Dan9191/loan-control/internal/config"
	"github.com/Dan9191/loan-control/internal/models"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Notifier delivers payment receipts and due-day reminders to users
type Notifier interface {
	SendPaymentReceipt(to, username string, client models.Client, payment models.Payment, balance decimal.Decimal) error
	SendDueReminder(to string, reminder models.Reminder) error
}

// New returns an SMTP mailer when SMTP is configured and a log-only
// notifier otherwise
func New(cfg *config.Config, logger *logrus.Logger) Notifier {
	if cfg.SMTPEnabled() {
		return NewMailer(cfg, logger)
	}
	return &LogNotifier{logger: logger}
}

// Mailer sends notifications via SMTP
type Mailer struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewMailer creates a new SMTP notifier
func NewMailer(cfg *config.Config, logger *logrus.Logger) *Mailer {
	m := &Mailer{cfg: cfg, logger: logger}
	m.send = func(e *email.Email) error {
		addr := fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort)
		var auth smtp.Auth
		if cfg.SMTPUsername != "" {
			auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
		}
		return e.Send(addr, auth)
	}
	return m
}

// SendPaymentReceipt emails a receipt for a recorded payment
func (m *Mailer) SendPaymentReceipt(to, username string, client models.Client, payment models.Payment, balance decimal.Decimal) error {
	e := email.NewEmail()
	e.From = m.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Pago registrado: %s", client.FullName())
	e.Text = []byte(ReceiptBody(username, client, payment, balance))

	if err := m.send(e); err != nil {
		m.logger.Errorf("Failed to send receipt to %s: %v", to, err)
		return fmt.Errorf("failed to send receipt: %w", err)
	}
	m.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

// SendDueReminder emails the list of clients whose payment is due
func (m *Mailer) SendDueReminder(to string, reminder models.Reminder) error {
	e := email.NewEmail()
	e.From = m.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Cobros del día %d", reminder.DueDay)
	e.Text = []byte(ReminderBody(reminder))

	if err := m.send(e); err != nil {
		m.logger.Errorf("Failed to send reminder to %s: %v", to, err)
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	m.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

// LogNotifier only logs what would have been sent
type LogNotifier struct {
	logger *logrus.Logger
}

// SendPaymentReceipt logs the receipt instead of mailing it
func (n *LogNotifier) SendPaymentReceipt(to, username string, client models.Client, payment models.Payment, balance decimal.Decimal) error {
	n.logger.WithFields(logrus.Fields{
		"user":      username,
		"client_id": client.ID,
		"amount":    payment.Amount.StringFixed(2),
		"balance":   balance.StringFixed(2),
	}).Info("Payment receipt (smtp disabled)")
	return nil
}

// SendDueReminder logs the reminder instead of mailing it
func (n *LogNotifier) SendDueReminder(to string, reminder models.Reminder) error {
	n.logger.WithFields(logrus.Fields{
		"user":    reminder.UserID,
		"due_day": reminder.DueDay,
		"clients": len(reminder.Clients),
	}).Info("Due reminder (smtp disabled)")
	return nil
}

// ReceiptBody formats the text of a payment receipt
func ReceiptBody(username string, client models.Client, payment models.Payment, balance decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", username)
	fmt.Fprintf(&b, "Se registró un pago de $%s del cliente %s.\n", payment.Amount.StringFixed(2), client.FullName())
	fmt.Fprintf(&b, "Fecha: %s\n", payment.PaidAt.Format("2006-01-02 15:04"))
	if balance.IsZero() {
		b.WriteString("El préstamo quedó liquidado.\n")
	} else {
		fmt.Fprintf(&b, "Saldo pendiente: $%s\n", balance.StringFixed(2))
	}
	b.WriteString("\nControl de Préstamos")
	return b.String()
}

// ReminderBody formats the text of a due-day reminder
func ReminderBody(reminder models.Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", reminder.UserID)
	fmt.Fprintf(&b, "Hoy vence el pago (día %d) de los siguientes clientes:\n\n", reminder.DueDay)
	for _, c := range reminder.Clients {
		fmt.Fprintf(&b, "- %s, tel. %s: saldo $%s\n", c.FullName(), c.Phone, c.Balance.StringFixed(2))
	}
	b.WriteString("\nControl de Préstamos")
	return b.String()
}
