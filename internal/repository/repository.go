package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/loan-control/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique key
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict is returned when a guarded update matches no row
	ErrConflict = errors.New("conflicting update")
)

// Repository provides database operations
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository initializes a new repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = r.now()
	query := r.db.Rebind(`
		INSERT INTO usuarios (id, contraseña, email, creado_en)
		VALUES (?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.PasswordHash, user.Email, user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByID retrieves a user by username
func (r *Repository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	query := r.db.Rebind(`
		SELECT id, contraseña, email, creado_en
		FROM usuarios
		WHERE id = ?`)
	err := r.db.GetContext(ctx, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

const clientColumns = `id, nombre, apellido, direccion, telefono, aval, telefono_aval,
	prestamo, monto_original, usuario_id, plazo_meses, dia_pago,
	credencial_cliente, credencial_aval, comprobante_domicilio, creado_en`

// CreateClient inserts a client and its document rows in one transaction
func (r *Repository) CreateClient(ctx context.Context, client *models.Client, docs []models.Document) error {
	client.CreatedAt = r.now()
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO clientes_oficial (nombre, apellido, direccion, telefono, aval, telefono_aval,
				prestamo, monto_original, usuario_id, credencial_cliente, credencial_aval,
				comprobante_domicilio, creado_en)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`)
		err := tx.QueryRowxContext(ctx, query,
			client.FirstName, client.LastName, client.Address, client.Phone,
			client.Guarantor, client.GuarantorPhone, client.Balance, client.Principal,
			client.UserID, client.ClientIDKey, client.GuarantorIDKey, client.ProofOfAddressKey,
			client.CreatedAt,
		).Scan(&client.ID)
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}

		docQuery := tx.Rebind(`
			INSERT INTO documentos (id_cliente, tipo, clave, nombre_original, content_type, tamano)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`)
		for i := range docs {
			docs[i].ClientID = client.ID
			err := tx.QueryRowxContext(ctx, docQuery,
				docs[i].ClientID, docs[i].Kind, docs[i].Key, docs[i].OriginalName,
				docs[i].ContentType, docs[i].Size,
			).Scan(&docs[i].ID)
			if err != nil {
				return fmt.Errorf("failed to create document %s: %w", docs[i].Kind, err)
			}
		}
		return nil
	})
}

// FindClient retrieves a client owned by the given user
func (r *Repository) FindClient(ctx context.Context, userID string, clientID int64) (*models.Client, error) {
	client := &models.Client{}
	query := r.db.Rebind(`SELECT ` + clientColumns + `
		FROM clientes_oficial
		WHERE id = ? AND usuario_id = ?`)
	err := r.db.GetContext(ctx, client, query, clientID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return client, nil
}

// ListDebtors lists the clients of a user that still owe money
func (r *Repository) ListDebtors(ctx context.Context, userID string) ([]models.Client, error) {
	clients := []models.Client{}
	query := r.db.Rebind(`SELECT ` + clientColumns + `
		FROM clientes_oficial
		WHERE prestamo > 0 AND usuario_id = ?
		ORDER BY id`)
	if err := r.db.SelectContext(ctx, &clients, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list debtors: %w", err)
	}
	return clients, nil
}

// CountClients counts every client of a user, settled ones included
func (r *Repository) CountClients(ctx context.Context, userID string) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM clientes_oficial WHERE usuario_id = ?`)
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return count, nil
}

// CountPayments counts the payments recorded for a client
func (r *Repository) CountPayments(ctx context.Context, clientID int64) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM pagos WHERE id_cliente = ?`)
	if err := r.db.GetContext(ctx, &count, query, clientID); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

// UpdatePlan stores the interest-adjusted balance, term and due day of a
// client. It returns ErrConflict once a payment exists for the client.
func (r *Repository) UpdatePlan(ctx context.Context, userID string, plan *models.PaymentPlan) error {
	query := r.db.Rebind(`
		UPDATE clientes_oficial
		SET prestamo = ?, plazo_meses = ?, dia_pago = ?
		WHERE id = ? AND usuario_id = ?
			AND NOT EXISTS (SELECT 1 FROM pagos WHERE id_cliente = ?)`)
	res, err := r.db.ExecContext(ctx, query,
		plan.Adjusted, plan.TermMonths, plan.DueDay, plan.ClientID, userID, plan.ClientID)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ApplyPayment debits the client's balance and records the payment in one
// transaction. The debit only happens while the balance covers the amount,
// otherwise ErrConflict is returned and nothing is written.
func (r *Repository) ApplyPayment(ctx context.Context, userID string, clientID int64, amount decimal.Decimal) (*models.PaymentResult, error) {
	result := &models.PaymentResult{}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		debit := tx.Rebind(`
			UPDATE clientes_oficial
			SET prestamo = ROUND(prestamo - ?, 2)
			WHERE id = ? AND usuario_id = ? AND prestamo >= ?`)
		res, err := tx.ExecContext(ctx, debit, amount, clientID, userID, amount)
		if err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		if n == 0 {
			return ErrConflict
		}

		payment := models.Payment{ClientID: clientID, Amount: amount, PaidAt: r.now()}
		insert := tx.Rebind(`
			INSERT INTO pagos (id_cliente, monto_pagado, pagado_en)
			VALUES (?, ?, ?)
			RETURNING id`)
		if err := tx.QueryRowxContext(ctx, insert, payment.ClientID, payment.Amount, payment.PaidAt).Scan(&payment.ID); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}

		balance := tx.Rebind(`SELECT prestamo FROM clientes_oficial WHERE id = ?`)
		if err := tx.GetContext(ctx, &result.NewBalance, balance, clientID); err != nil {
			return fmt.Errorf("failed to read balance: %w", err)
		}
		result.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListPayments lists the payments of a client owned by the user, newest first
func (r *Repository) ListPayments(ctx context.Context, userID string, clientID int64) ([]models.Payment, error) {
	payments := []models.Payment{}
	query := r.db.Rebind(`
		SELECT p.id, p.id_cliente, p.monto_pagado, p.pagado_en
		FROM pagos p
		JOIN clientes_oficial c ON c.id = p.id_cliente
		WHERE p.id_cliente = ? AND c.usuario_id = ?
		ORDER BY p.pagado_en DESC, p.id DESC`)
	if err := r.db.SelectContext(ctx, &payments, query, clientID, userID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// FindDocument retrieves a document whose client is owned by the user
func (r *Repository) FindDocument(ctx context.Context, userID string, documentID int64) (*models.Document, error) {
	doc := &models.Document{}
	query := r.db.Rebind(`
		SELECT d.id, d.id_cliente, d.tipo, d.clave, d.nombre_original, d.content_type, d.tamano
		FROM documentos d
		JOIN clientes_oficial c ON c.id = d.id_cliente
		WHERE d.id = ? AND c.usuario_id = ?`)
	err := r.db.GetContext(ctx, doc, query, documentID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return doc, nil
}

// ListDocuments lists the documents of a client owned by the user
func (r *Repository) ListDocuments(ctx context.Context, userID string, clientID int64) ([]models.Document, error) {
	docs := []models.Document{}
	query := r.db.Rebind(`
		SELECT d.id, d.id_cliente, d.tipo, d.clave, d.nombre_original, d.content_type, d.tamano
		FROM documentos d
		JOIN clientes_oficial c ON c.id = d.id_cliente
		WHERE d.id_cliente = ? AND c.usuario_id = ?
		ORDER BY d.id`)
	if err := r.db.SelectContext(ctx, &docs, query, clientID, userID); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// ListDueClients lists clients with debt whose due day is one of days
func (r *Repository) ListDueClients(ctx context.Context, days []int) ([]models.Client, error) {
	clients := []models.Client{}
	if len(days) == 0 {
		return clients, nil
	}
	query, args, err := sqlx.In(`SELECT `+clientColumns+`
		FROM clientes_oficial
		WHERE prestamo > 0 AND dia_pago IN (?)
		ORDER BY usuario_id, id`, days)
	if err != nil {
		return nil, fmt.Errorf("failed to build due clients query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &clients, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list due clients: %w", err)
	}
	return clients, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
