package service

import (
	"context"
	"errors"

	"github.com/Dan9191/loan-control/internal/models"
	"github.com/Dan9191/loan-control/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var minPayment = decimal.NewFromInt(1)

// RecordPayment debits a payment from a client's balance. Amounts above the
// balance or below the minimum payment are rejected.
func (s *Service) RecordPayment(ctx context.Context, userID string, clientID int64, rawAmount string) (*models.PaymentResult, error) {
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	client, err := s.Client(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}

	if amount.GreaterThan(client.Balance) {
		return nil, ErrExceedsDebt
	}
	if amount.LessThan(minPayment) {
		return nil, ErrBelowMinimum
	}

	result, err := s.repo.ApplyPayment(ctx, userID, clientID, amount)
	if err != nil {
		// The balance changed between the read and the debit
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrExceedsDebt
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user":      userID,
		"client_id": clientID,
		"amount":    amount.StringFixed(2),
		"balance":   result.NewBalance.StringFixed(2),
	}).Info("Payment recorded")

	s.sendReceipt(ctx, userID, *client, result)
	return result, nil
}

func (s *Service) sendReceipt(ctx context.Context, userID string, client models.Client, result *models.PaymentResult) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		s.log.Errorf("Failed to load user %s for receipt: %v", userID, err)
		return
	}
	if user.Email == "" {
		return
	}
	if err := s.notifier.SendPaymentReceipt(user.Email, user.ID, client, result.Payment, result.NewBalance); err != nil {
		s.log.Warnf("Receipt for payment %d not delivered: %v", result.Payment.ID, err)
	}
}

// Payments lists the payments of a client owned by the user
func (s *Service) Payments(ctx context.Context, userID string, clientID int64) ([]models.Payment, error) {
	return s.repo.ListPayments(ctx, userID, clientID)
}
