package service

import (
	"context"
	"io"

	"github.com/Dan9191/loan-control/internal/models"
	"github.com/Dan9191/loan-control/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockStore) CreateClient(ctx context.Context, client *models.Client, docs []models.Document) error {
	return m.Called(ctx, client, docs).Error(0)
}

func (m *MockStore) FindClient(ctx context.Context, userID string, clientID int64) (*models.Client, error) {
	args := m.Called(ctx, userID, clientID)
	client, _ := args.Get(0).(*models.Client)
	return client, args.Error(1)
}

func (m *MockStore) ListDebtors(ctx context.Context, userID string) ([]models.Client, error) {
	args := m.Called(ctx, userID)
	clients, _ := args.Get(0).([]models.Client)
	return clients, args.Error(1)
}

func (m *MockStore) CountClients(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) CountPayments(ctx context.Context, clientID int64) (int, error) {
	args := m.Called(ctx, clientID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) UpdatePlan(ctx context.Context, userID string, plan *models.PaymentPlan) error {
	return m.Called(ctx, userID, plan).Error(0)
}

func (m *MockStore) ApplyPayment(ctx context.Context, userID string, clientID int64, amount decimal.Decimal) (*models.PaymentResult, error) {
	args := m.Called(ctx, userID, clientID, amount)
	res, _ := args.Get(0).(*models.PaymentResult)
	return res, args.Error(1)
}

func (m *MockStore) ListPayments(ctx context.Context, userID string, clientID int64) ([]models.Payment, error) {
	args := m.Called(ctx, userID, clientID)
	payments, _ := args.Get(0).([]models.Payment)
	return payments, args.Error(1)
}

func (m *MockStore) FindDocument(ctx context.Context, userID string, documentID int64) (*models.Document, error) {
	args := m.Called(ctx, userID, documentID)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *MockStore) ListDocuments(ctx context.Context, userID string, clientID int64) ([]models.Document, error) {
	args := m.Called(ctx, userID, clientID)
	docs, _ := args.Get(0).([]models.Document)
	return docs, args.Error(1)
}

func (m *MockStore) ListDueClients(ctx context.Context, days []int) ([]models.Client, error) {
	args := m.Called(ctx, days)
	clients, _ := args.Get(0).([]models.Client)
	return clients, args.Error(1)
}

type MockFiles struct {
	mock.Mock
}

func (m *MockFiles) Save(r io.Reader, originalName, contentType string) (*storage.StoredFile, error) {
	args := m.Called(r, originalName, contentType)
	f, _ := args.Get(0).(*storage.StoredFile)
	return f, args.Error(1)
}

func (m *MockFiles) Open(key string) (io.ReadSeekCloser, error) {
	args := m.Called(key)
	f, _ := args.Get(0).(io.ReadSeekCloser)
	return f, args.Error(1)
}

func (m *MockFiles) Remove(key string) error {
	return m.Called(key).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendPaymentReceipt(to, username string, client models.Client, payment models.Payment, balance decimal.Decimal) error {
	return m.Called(to, username, client, payment, balance).Error(0)
}

func (m *MockNotifier) SendDueReminder(to string, reminder models.Reminder) error {
	return m.Called(to, reminder).Error(0)
}
