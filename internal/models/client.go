package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Client represents a borrower registered by a user
type Client struct {
	ID             int64  `json:"id" db:"id"`
	FirstName      string `json:"nombre" db:"nombre"`
	LastName       string `json:"apellido" db:"apellido"`
	Address        string `json:"direccion" db:"direccion"`
	Phone          string `json:"telefono" db:"telefono"`
	Guarantor      string `json:"aval" db:"aval"`
	GuarantorPhone string `json:"telefono_aval" db:"telefono_aval"`
	// Balance is the outstanding amount owed. It is inflated once a plan is
	// selected and decremented by every payment.
	Balance   decimal.Decimal `json:"prestamo" db:"prestamo"`
	Principal decimal.Decimal `json:"monto_original" db:"monto_original"`
	UserID    string          `json:"usuario_id" db:"usuario_id"`
	// TermMonths and DueDay stay null until a payment plan is selected.
	TermMonths sql.NullInt64 `json:"plazo_meses" db:"plazo_meses"`
	DueDay     sql.NullInt64 `json:"dia_pago" db:"dia_pago"`
	// Storage keys of the three identity documents
	ClientIDKey       string    `json:"credencial_cliente" db:"credencial_cliente"`
	GuarantorIDKey    string    `json:"credencial_aval" db:"credencial_aval"`
	ProofOfAddressKey string    `json:"comprobante_domicilio" db:"comprobante_domicilio"`
	CreatedAt         time.Time `json:"creado_en" db:"creado_en"`
}

// FullName returns the client's name followed by the surname
func (c Client) FullName() string {
	return c.FirstName + " " + c.LastName
}

// HasPlan reports whether a payment plan was already selected
func (c Client) HasPlan() bool {
	return c.TermMonths.Valid
}
