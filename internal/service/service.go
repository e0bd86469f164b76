package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/Dan9191/loan-control/internal/config"
	"github.com/Dan9191/loan-control/internal/models"
	"github.com/Dan9191/loan-control/internal/notify"
	"github.com/Dan9191/loan-control/internal/repository"
	"github.com/Dan9191/loan-control/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingDocument    = errors.New("missing document")
	ErrNotImageDocument   = errors.New("document is not an image")
	ErrClientNotFound     = errors.New("client not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidTerm        = errors.New("invalid term")
	ErrInvalidDueDay      = errors.New("invalid due day")
	ErrPlanLocked         = errors.New("plan cannot change after payments")
	ErrExceedsDebt        = errors.New("payment exceeds debt")
	ErrBelowMinimum       = errors.New("payment below minimum")
)

const (
	maxUsernameLen    = 64
	minPasswordLen    = 6
	defaultBcryptCost = bcrypt.DefaultCost
)

// Store is the persistence used by the service
type Store interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	CreateClient(ctx context.Context, client *models.Client, docs []models.Document) error
	FindClient(ctx context.Context, userID string, clientID int64) (*models.Client, error)
	ListDebtors(ctx context.Context, userID string) ([]models.Client, error)
	CountClients(ctx context.Context, userID string) (int, error)
	CountPayments(ctx context.Context, clientID int64) (int, error)
	UpdatePlan(ctx context.Context, userID string, plan *models.PaymentPlan) error
	ApplyPayment(ctx context.Context, userID string, clientID int64, amount decimal.Decimal) (*models.PaymentResult, error)
	ListPayments(ctx context.Context, userID string, clientID int64) ([]models.Payment, error)
	FindDocument(ctx context.Context, userID string, documentID int64) (*models.Document, error)
	ListDocuments(ctx context.Context, userID string, clientID int64) ([]models.Document, error)
	ListDueClients(ctx context.Context, days []int) ([]models.Client, error)
}

// FileStore keeps uploaded documents
type FileStore interface {
	Save(r io.Reader, originalName, contentType string) (*storage.StoredFile, error)
	Open(key string) (io.ReadSeekCloser, error)
	Remove(key string) error
}

// Service handles business logic
type Service struct {
	repo       Store
	files      FileStore
	notifier   notify.Notifier
	log        *logrus.Logger
	config     *config.Config
	bcryptCost int
	now        func() time.Time
}

// NewService initializes a new service
func NewService(repo Store, files FileStore, notifier notify.Notifier, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		repo:       repo,
		files:      files,
		notifier:   notifier,
		log:        log,
		config:     cfg,
		bcryptCost: defaultBcryptCost,
		now:        time.Now,
	}
}

// Ping reports whether the database is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Register creates a new user with hashed password
func (s *Service) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if len(username) > maxUsernameLen {
		return nil, fmt.Errorf("%w: username longer than %d characters", ErrInvalidInput, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: email", ErrInvalidInput)
		}
	}

	_, err := s.repo.FindUserByID(ctx, username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.log.Infof("User registered: %s", user.ID)
	return user, nil
}

// Login authenticates a user and returns a signed session token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repo.FindUserByID(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Errorf("Failed to look up user %s: %v", username, err)
			return "", err
		}
		return "", ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(s.now().Add(s.config.SessionTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.SessionSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.ID)
	return tokenString, nil
}

// Dashboard lists the clients of a user that still owe money, together with
// the number of all clients of that user
func (s *Service) Dashboard(ctx context.Context, userID string) (*models.Dashboard, error) {
	debtors, err := s.repo.ListDebtors(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountClients(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Dashboard{Username: userID, Debtors: debtors, TotalClients: total}, nil
}
