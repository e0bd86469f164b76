package models

import "github.com/shopspring/decimal"

// PaymentPlan represents the repayment term chosen for a client
type PaymentPlan struct {
	ClientID     int64           `json:"client_id"`
	TermMonths   int             `json:"term_months"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Principal    decimal.Decimal `json:"principal"`
	Adjusted     decimal.Decimal `json:"adjusted"`
	DueDay       int             `json:"due_day"`
}
