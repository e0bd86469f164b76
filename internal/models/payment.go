package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment represents an amount paid by a client against its balance
type Payment struct {
	ID       int64           `json:"id" db:"id"`
	ClientID int64           `json:"id_cliente" db:"id_cliente"`
	Amount   decimal.Decimal `json:"monto_pagado" db:"monto_pagado"`
	PaidAt   time.Time       `json:"pagado_en" db:"pagado_en"`
}

// PaymentResult is returned after a payment has been applied
type PaymentResult struct {
	Payment    Payment         `json:"payment"`
	NewBalance decimal.Decimal `json:"new_balance"`
}
