package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/loan-control/internal/config"
	"github.com/Dan9191/loan-control/internal/models"
	"github.com/Dan9191/loan-control/internal/repository"
	"github.com/Dan9191/loan-control/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (*Service, *MockStore, *MockFiles, *MockNotifier) {
	t.Helper()
	store := &MockStore{}
	files := &MockFiles{}
	notifier := &MockNotifier{}
	cfg := config.Defaults()
	cfg.SessionSecret = "test-secret"

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := NewService(store, files, notifier, logger, cfg)
	svc.bcryptCost = bcrypt.MinCost
	t.Cleanup(func() {
		store.AssertExpectations(t)
		files.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})
	return svc, store, files, notifier
}

func decEq(s string) interface{} {
	want := decimal.RequireFromString(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("first registration succeeds and hashes password", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindUserByID", ctx, "ana").Return(nil, repository.ErrNotFound)
		store.On("CreateUser", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.ID == "ana" && u.Email == "ana@example.com" &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secreto1")) == nil
		})).Return(nil)

		user, err := svc.Register(ctx, "  ana ", "secreto1", "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, "ana", user.ID)
		assert.NotEqual(t, "secreto1", user.PasswordHash)
	})

	t.Run("existing username is rejected", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindUserByID", ctx, "ana").Return(&models.User{ID: "ana"}, nil)

		_, err := svc.Register(ctx, "ana", "secreto1", "")
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("insert race maps to taken", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindUserByID", ctx, "ana").Return(nil, repository.ErrNotFound)
		store.On("CreateUser", ctx, mock.Anything).Return(repository.ErrDuplicate)

		_, err := svc.Register(ctx, "ana", "secreto1", "")
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	tests := []struct {
		name     string
		username string
		password string
		email    string
		wantErr  error
	}{
		{name: "empty username", username: "  ", password: "secreto1", wantErr: ErrInvalidInput},
		{name: "empty password", username: "ana", password: "", wantErr: ErrInvalidInput},
		{name: "short password", username: "ana", password: "123", wantErr: ErrWeakPassword},
		{name: "long username", username: strings.Repeat("a", 65), password: "secreto1", wantErr: ErrInvalidInput},
		{name: "bad email", username: "ana", password: "secreto1", email: "not-an-email", wantErr: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestService(t)
			_, err := svc.Register(ctx, tt.username, tt.password, tt.email)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secreto1"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("valid credentials issue a token for the user", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindUserByID", ctx, "ana").Return(&models.User{ID: "ana", PasswordHash: string(hash)}, nil)

		tokenString, err := svc.Login(ctx, "ana", "secreto1")
		require.NoError(t, err)

		claims := &jwt.RegisteredClaims{}
		_, err = jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ana", claims.Subject)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindUserByID", ctx, "ana").Return(&models.User{ID: "ana", PasswordHash: string(hash)}, nil)

		_, err := svc.Login(ctx, "ana", "otro")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindUserByID", ctx, "nadie").Return(nil, repository.ErrNotFound)

		_, err := svc.Login(ctx, "nadie", "secreto1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("database failure is not reported as bad credentials", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindUserByID", ctx, "ana").Return(nil, errors.New("connection reset"))

		_, err := svc.Login(ctx, "ana", "secreto1")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestService(t)
	debtors := []models.Client{{ID: 1, UserID: "ana", Balance: decimal.NewFromInt(100)}}
	store.On("ListDebtors", ctx, "ana").Return(debtors, nil)
	store.On("CountClients", ctx, "ana").Return(3, nil)

	dash, err := svc.Dashboard(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, "ana", dash.Username)
	assert.Equal(t, debtors, dash.Debtors)
	assert.Equal(t, 3, dash.TotalClients)
}

func validInput() ClientInput {
	return ClientInput{
		FirstName:      "Juan",
		LastName:       "Pérez",
		Address:        "Calle 1",
		Phone:          "5550000",
		Guarantor:      "Rosa",
		GuarantorPhone: "5551111",
		Principal:      "2000",
	}
}

func imageUploads(contentTypes ...string) []Upload {
	uploads := make([]Upload, len(models.DocumentKinds))
	for i, kind := range models.DocumentKinds {
		ct := "image/png"
		if i < len(contentTypes) {
			ct = contentTypes[i]
		}
		uploads[i] = Upload{Kind: kind, Filename: kind + ".png", ContentType: ct, Body: bytes.NewReader([]byte("img"))}
	}
	return uploads
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "2000", want: "2000"},
		{raw: " 500.5 ", want: "500.5"},
		{raw: "0.99", want: "0.99"},
		{raw: "-10", want: "-10"},
		{raw: "1000000000", want: "1000000000"},
		{raw: "1000000000.01", wantErr: true},
		{raw: "0.995", wantErr: true},
		{raw: "1e999999999", wantErr: true},
		{raw: "1e-999999999", wantErr: true},
		{raw: "1E3", wantErr: true},
		{raw: "12345678901", wantErr: true},
		{raw: ".5", wantErr: true},
		{raw: "+5", wantErr: true},
		{raw: "1,000", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			done := make(chan struct{})
			var (
				got decimal.Decimal
				err error
			)
			go func() {
				defer close(done)
				got, err = ParseAmount(tt.raw)
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("ParseAmount(%q) did not return", tt.raw)
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), got.String())
		})
	}
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("lists documents of own client", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		docs := []models.Document{{ID: 1, ClientID: 7, Kind: models.DocClientID}}
		store.On("FindClient", ctx, "ana", int64(7)).Return(&models.Client{ID: 7, UserID: "ana"}, nil)
		store.On("ListDocuments", ctx, "ana", int64(7)).Return(docs, nil)

		got, err := svc.Documents(ctx, "ana", 7)
		require.NoError(t, err)
		assert.Equal(t, docs, got)
	})

	t.Run("unknown client", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindClient", ctx, "luis", int64(7)).Return(nil, repository.ErrNotFound)

		_, err := svc.Documents(ctx, "luis", 7)
		assert.ErrorIs(t, err, ErrClientNotFound)
	})
}

func TestRegisterClient(t *testing.T) {
	ctx := context.Background()

	t.Run("stores documents then inserts client", func(t *testing.T) {
		svc, store, files, _ := newTestService(t)
		for _, kind := range models.DocumentKinds {
			files.On("Save", mock.Anything, kind+".png", "image/png").
				Return(&storage.StoredFile{Key: kind + "-key.png", OriginalName: kind + ".png", ContentType: "image/png", Size: 3}, nil).Once()
		}
		store.On("CreateClient", ctx, mock.MatchedBy(func(c *models.Client) bool {
			return c.UserID == "ana" && c.Balance.Equal(decimal.NewFromInt(2000)) &&
				c.Principal.Equal(decimal.NewFromInt(2000)) &&
				c.ClientIDKey == models.DocClientID+"-key.png" &&
				c.ProofOfAddressKey == models.DocProofOfAddress+"-key.png"
		}), mock.MatchedBy(func(docs []models.Document) bool { return len(docs) == 3 })).
			Run(func(args mock.Arguments) { args.Get(1).(*models.Client).ID = 42 }).
			Return(nil)

		client, err := svc.RegisterClient(ctx, "ana", validInput(), imageUploads())
		require.NoError(t, err)
		assert.Equal(t, int64(42), client.ID)
	})

	t.Run("non-image document stores nothing", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		_, err := svc.RegisterClient(ctx, "ana", validInput(), imageUploads("image/png", "application/pdf"))
		assert.ErrorIs(t, err, ErrNotImageDocument)
	})

	t.Run("missing document", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		_, err := svc.RegisterClient(ctx, "ana", validInput(), imageUploads()[:2])
		assert.ErrorIs(t, err, ErrMissingDocument)
	})

	t.Run("invalid principal", func(t *testing.T) {
		for _, raw := range []string{"abc", "", "0", "-5", "1,000", "1e999999999", "2000.999"} {
			svc, _, _, _ := newTestService(t)
			in := validInput()
			in.Principal = raw
			_, err := svc.RegisterClient(ctx, "ana", in, imageUploads())
			assert.ErrorIs(t, err, ErrInvalidAmount, raw)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		in := validInput()
		in.GuarantorPhone = " "
		_, err := svc.RegisterClient(ctx, "ana", in, imageUploads())
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("insert failure removes stored files", func(t *testing.T) {
		svc, store, files, _ := newTestService(t)
		for _, kind := range models.DocumentKinds {
			files.On("Save", mock.Anything, kind+".png", "image/png").
				Return(&storage.StoredFile{Key: kind + "-key.png"}, nil).Once()
			files.On("Remove", kind+"-key.png").Return(nil).Once()
		}
		store.On("CreateClient", ctx, mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, err := svc.RegisterClient(ctx, "ana", validInput(), imageUploads())
		assert.ErrorContains(t, err, "disk full")
	})

	t.Run("save failure removes earlier files", func(t *testing.T) {
		svc, _, files, _ := newTestService(t)
		files.On("Save", mock.Anything, models.DocClientID+".png", "image/png").
			Return(&storage.StoredFile{Key: "first.png"}, nil).Once()
		files.On("Save", mock.Anything, models.DocGuarantorID+".png", "image/png").
			Return(nil, errors.New("permission denied")).Once()
		files.On("Remove", "first.png").Return(nil).Once()

		_, err := svc.RegisterClient(ctx, "ana", validInput(), imageUploads())
		assert.ErrorContains(t, err, "permission denied")
	})
}

func TestAdjustedBalance(t *testing.T) {
	tests := []struct {
		principal string
		term      int
		want      string
	}{
		{principal: "1000", term: 3, want: "1050"},
		{principal: "1000", term: 6, want: "1100"},
		{principal: "1000", term: 9, want: "1200"},
		{principal: "1000", term: 12, want: "1250"},
		{principal: "2000", term: 12, want: "2500"},
		{principal: "333.33", term: 3, want: "350"},
	}
	for _, tt := range tests {
		got, err := AdjustedBalance(decimal.RequireFromString(tt.principal), tt.term)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s x %d = %s", tt.principal, tt.term, got)
	}

	for _, term := range []int{0, 1, 4, 24, -3} {
		_, err := AdjustedBalance(decimal.NewFromInt(1000), term)
		assert.ErrorIs(t, err, ErrInvalidTerm, term)
	}
}

func TestSelectPlan(t *testing.T) {
	ctx := context.Background()
	client := &models.Client{ID: 7, UserID: "ana", Principal: decimal.NewFromInt(2000), Balance: decimal.NewFromInt(2000)}

	t.Run("inflates from principal", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindClient", ctx, "ana", int64(7)).Return(client, nil)
		store.On("CountPayments", ctx, int64(7)).Return(0, nil)
		store.On("UpdatePlan", ctx, "ana", mock.MatchedBy(func(p *models.PaymentPlan) bool {
			return p.Adjusted.Equal(decimal.NewFromInt(2500)) && p.TermMonths == 12 && p.DueDay == 15
		})).Return(nil)

		plan, err := svc.SelectPlan(ctx, "ana", 7, 12, 15)
		require.NoError(t, err)
		assert.True(t, plan.InterestRate.Equal(decimal.RequireFromString("0.25")))
	})

	t.Run("unknown term rejected before touching the store", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		_, err := svc.SelectPlan(ctx, "ana", 7, 5, 15)
		assert.ErrorIs(t, err, ErrInvalidTerm)
	})

	t.Run("bad due day", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		for _, day := range []int{0, 32, -1} {
			_, err := svc.SelectPlan(ctx, "ana", 7, 3, day)
			assert.ErrorIs(t, err, ErrInvalidDueDay)
		}
	})

	t.Run("other user's client", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindClient", ctx, "luis", int64(7)).Return(nil, repository.ErrNotFound)
		_, err := svc.SelectPlan(ctx, "luis", 7, 3, 1)
		assert.ErrorIs(t, err, ErrClientNotFound)
	})

	t.Run("locked after payments", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindClient", ctx, "ana", int64(7)).Return(client, nil)
		store.On("CountPayments", ctx, int64(7)).Return(1, nil)
		_, err := svc.SelectPlan(ctx, "ana", 7, 3, 1)
		assert.ErrorIs(t, err, ErrPlanLocked)
	})

	t.Run("payment raced the update", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindClient", ctx, "ana", int64(7)).Return(client, nil)
		store.On("CountPayments", ctx, int64(7)).Return(0, nil)
		store.On("UpdatePlan", ctx, "ana", mock.Anything).Return(repository.ErrConflict)
		_, err := svc.SelectPlan(ctx, "ana", 7, 3, 1)
		assert.ErrorIs(t, err, ErrPlanLocked)
	})
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	owing := func() *models.Client {
		return &models.Client{ID: 7, UserID: "ana", FirstName: "Juan", Balance: decimal.NewFromInt(2500)}
	}

	t.Run("debits and sends receipt", func(t *testing.T) {
		svc, store, _, notifier := newTestService(t)
		result := &models.PaymentResult{
			Payment:    models.Payment{ID: 1, ClientID: 7, Amount: decimal.NewFromInt(500)},
			NewBalance: decimal.NewFromInt(2000),
		}
		store.On("FindClient", ctx, "ana", int64(7)).Return(owing(), nil)
		store.On("ApplyPayment", ctx, "ana", int64(7), decEq("500")).Return(result, nil)
		store.On("FindUserByID", ctx, "ana").Return(&models.User{ID: "ana", Email: "ana@example.com"}, nil)
		notifier.On("SendPaymentReceipt", "ana@example.com", "ana", *owing(), result.Payment, result.NewBalance).Return(nil)

		got, err := svc.RecordPayment(ctx, "ana", 7, "500")
		require.NoError(t, err)
		assert.True(t, got.NewBalance.Equal(decimal.NewFromInt(2000)))
	})

	t.Run("receipt failure does not fail the payment", func(t *testing.T) {
		svc, store, _, notifier := newTestService(t)
		result := &models.PaymentResult{NewBalance: decimal.NewFromInt(2400)}
		store.On("FindClient", ctx, "ana", int64(7)).Return(owing(), nil)
		store.On("ApplyPayment", ctx, "ana", int64(7), decEq("100")).Return(result, nil)
		store.On("FindUserByID", ctx, "ana").Return(&models.User{ID: "ana", Email: "ana@example.com"}, nil)
		notifier.On("SendPaymentReceipt", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("smtp down"))

		_, err := svc.RecordPayment(ctx, "ana", 7, "100")
		assert.NoError(t, err)
	})

	t.Run("no email no receipt", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindClient", ctx, "ana", int64(7)).Return(owing(), nil)
		store.On("ApplyPayment", ctx, "ana", int64(7), decEq("2500")).
			Return(&models.PaymentResult{NewBalance: decimal.Zero}, nil)
		store.On("FindUserByID", ctx, "ana").Return(&models.User{ID: "ana"}, nil)

		got, err := svc.RecordPayment(ctx, "ana", 7, "2500")
		require.NoError(t, err)
		assert.True(t, got.NewBalance.IsZero())
	})

	tests := []struct {
		name    string
		amount  string
		balance int64
		wantErr error
	}{
		{name: "exceeds debt", amount: "3000", balance: 2000, wantErr: ErrExceedsDebt},
		{name: "below minimum", amount: "0.50", balance: 2000, wantErr: ErrBelowMinimum},
		{name: "zero", amount: "0", balance: 2000, wantErr: ErrBelowMinimum},
		{name: "negative", amount: "-10", balance: 2000, wantErr: ErrBelowMinimum},
		{name: "exceeds checked before minimum", amount: "0.50", balance: 0, wantErr: ErrExceedsDebt},
		{name: "three decimals are not rounded up to the minimum", amount: "0.995", balance: 2000, wantErr: ErrInvalidAmount},
		{name: "three decimals are not rounded down to the balance", amount: "2000.004", balance: 2000, wantErr: ErrInvalidAmount},
		{name: "huge exponent", amount: "1e999999999", balance: 2000, wantErr: ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := newTestService(t)
			store.On("FindClient", ctx, "ana", int64(7)).
				Return(&models.Client{ID: 7, UserID: "ana", Balance: decimal.NewFromInt(tt.balance)}, nil).Maybe()
			_, err := svc.RecordPayment(ctx, "ana", 7, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("invalid amount", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		_, err := svc.RecordPayment(ctx, "ana", 7, "mil")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("concurrent payment drained the balance", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindClient", ctx, "ana", int64(7)).Return(owing(), nil)
		store.On("ApplyPayment", ctx, "ana", int64(7), decEq("2000")).Return(nil, repository.ErrConflict)

		_, err := svc.RecordPayment(ctx, "ana", 7, "2000")
		assert.ErrorIs(t, err, ErrExceedsDebt)
	})

	t.Run("other user's client", func(t *testing.T) {
		svc, store, _, _ := newTestService(t)
		store.On("FindClient", ctx, "luis", int64(7)).Return(nil, repository.ErrNotFound)
		_, err := svc.RecordPayment(ctx, "luis", 7, "10")
		assert.ErrorIs(t, err, ErrClientNotFound)
	})
}

func TestDueDays(t *testing.T) {
	tests := []struct {
		date time.Time
		want []int
	}{
		{date: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), want: []int{15}},
		{date: time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC), want: []int{31}},
		{date: time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC), want: []int{30, 31}},
		{date: time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), want: []int{28, 29, 30, 31}},
		{date: time.Date(2028, 2, 28, 9, 0, 0, 0, time.UTC), want: []int{28}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dueDays(tt.date), tt.date.Format("2006-01-02"))
	}
}

func TestSendDueReminders(t *testing.T) {
	ctx := context.Background()
	svc, store, _, notifier := newTestService(t)
	date := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	clients := []models.Client{
		{ID: 1, UserID: "ana", FirstName: "Juan"},
		{ID: 2, UserID: "ana", FirstName: "María"},
		{ID: 3, UserID: "luis", FirstName: "Pedro"},
		{ID: 4, UserID: "eva", FirstName: "Rosa"},
	}
	store.On("ListDueClients", ctx, []int{15}).Return(clients, nil)
	store.On("FindUserByID", ctx, "ana").Return(&models.User{ID: "ana", Email: "ana@example.com"}, nil)
	store.On("FindUserByID", ctx, "luis").Return(&models.User{ID: "luis"}, nil)
	store.On("FindUserByID", ctx, "eva").Return(&models.User{ID: "eva", Email: "eva@example.com"}, nil)
	notifier.On("SendDueReminder", "ana@example.com", mock.MatchedBy(func(r models.Reminder) bool {
		return r.UserID == "ana" && r.DueDay == 15 && len(r.Clients) == 2
	})).Return(nil)
	notifier.On("SendDueReminder", "eva@example.com", mock.Anything).Return(errors.New("mailbox full"))

	sent, err := svc.SendDueReminders(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}
