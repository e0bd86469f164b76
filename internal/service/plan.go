package service

import (
	"context"
	"errors"

	"github.com/Dan9191/loan-control/internal/models"
	"github.com/Dan9191/loan-control/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// interestRates maps a term in months to the interest charged over it
var interestRates = map[int]decimal.Decimal{
	3:  decimal.RequireFromString("0.05"),
	6:  decimal.RequireFromString("0.10"),
	9:  decimal.RequireFromString("0.20"),
	12: decimal.RequireFromString("0.25"),
}

// Terms lists the accepted terms in months, shortest first
func Terms() []int {
	return []int{3, 6, 9, 12}
}

// InterestRate returns the rate for a term
func InterestRate(term int) (decimal.Decimal, bool) {
	rate, ok := interestRates[term]
	return rate, ok
}

// AdjustedBalance applies the term's interest to the principal
func AdjustedBalance(principal decimal.Decimal, term int) (decimal.Decimal, error) {
	rate, ok := InterestRate(term)
	if !ok {
		return decimal.Zero, ErrInvalidTerm
	}
	return principal.Mul(decimal.NewFromInt(1).Add(rate)).Round(2), nil
}

// SelectPlan sets the term and due day of a client and inflates its balance.
// Interest is always computed from the registered principal, so choosing
// again before the first payment does not compound.
func (s *Service) SelectPlan(ctx context.Context, userID string, clientID int64, term, dueDay int) (*models.PaymentPlan, error) {
	rate, ok := InterestRate(term)
	if !ok {
		return nil, ErrInvalidTerm
	}
	if dueDay < 1 || dueDay > 31 {
		return nil, ErrInvalidDueDay
	}

	client, err := s.Client(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.CountPayments(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if payments > 0 {
		return nil, ErrPlanLocked
	}

	adjusted, err := AdjustedBalance(client.Principal, term)
	if err != nil {
		return nil, err
	}
	plan := &models.PaymentPlan{
		ClientID:     clientID,
		TermMonths:   term,
		InterestRate: rate,
		Principal:    client.Principal,
		Adjusted:     adjusted,
		DueDay:       dueDay,
	}
	if err := s.repo.UpdatePlan(ctx, userID, plan); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrPlanLocked
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user":      userID,
		"client_id": clientID,
		"term":      term,
		"adjusted":  adjusted.StringFixed(2),
	}).Info("Payment plan selected")
	return plan, nil
}
