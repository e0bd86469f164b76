package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/Dan9191/loan-control/internal/models"
	"github.com/Dan9191/loan-control/internal/repository"
	"github.com/Dan9191/loan-control/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	maxAmount = decimal.NewFromInt(1_000_000_000)
	// Plain decimal notation with at most two decimal places
	amountPattern = regexp.MustCompile(`^-?[0-9]{1,10}(\.[0-9]{1,2})?$`)
)

// ClientInput holds the raw client form fields
type ClientInput struct {
	FirstName      string
	LastName       string
	Address        string
	Phone          string
	Guarantor      string
	GuarantorPhone string
	Principal      string
}

// Upload is one document received with the client form
type Upload struct {
	Kind        string
	Filename    string
	ContentType string
	Body        io.Reader
}

// ParseAmount parses a money amount from a form value. Only plain decimal
// notation with up to two decimal places is accepted, amounts are never
// rounded.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

func (in *ClientInput) normalize() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"nombre", &in.FirstName},
		{"apellido", &in.LastName},
		{"direccion", &in.Address},
		{"telefono", &in.Phone},
		{"aval", &in.Guarantor},
		{"telefono_aval", &in.GuarantorPhone},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, f.name)
		}
	}
	return nil
}

// checkUploads makes sure every required document is present and is an
// image, before anything is written
func checkUploads(uploads []Upload) (map[string]Upload, error) {
	byKind := make(map[string]Upload, len(uploads))
	for _, u := range uploads {
		if u.Body != nil && u.Filename != "" {
			byKind[u.Kind] = u
		}
	}
	for _, kind := range models.DocumentKinds {
		u, ok := byKind[kind]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingDocument, kind)
		}
		if !strings.HasPrefix(strings.ToLower(u.ContentType), "image/") {
			return nil, fmt.Errorf("%w: %s", ErrNotImageDocument, kind)
		}
	}
	return byKind, nil
}

// RegisterClient stores the three documents and inserts the client with its
// principal as the initial balance
func (s *Service) RegisterClient(ctx context.Context, userID string, input ClientInput, uploads []Upload) (*models.Client, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	principal, err := ParseAmount(input.Principal)
	if err != nil {
		return nil, err
	}
	if !principal.IsPositive() {
		return nil, ErrInvalidAmount
	}
	byKind, err := checkUploads(uploads)
	if err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(models.DocumentKinds))
	for _, kind := range models.DocumentKinds {
		u := byKind[kind]
		stored, err := s.files.Save(u.Body, u.Filename, u.ContentType)
		if err != nil {
			s.removeDocuments(docs)
			return nil, err
		}
		docs = append(docs, documentFrom(kind, stored))
	}

	client := &models.Client{
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		Address:           input.Address,
		Phone:             input.Phone,
		Guarantor:         input.Guarantor,
		GuarantorPhone:    input.GuarantorPhone,
		Balance:           principal,
		Principal:         principal,
		UserID:            userID,
		ClientIDKey:       docs[0].Key,
		GuarantorIDKey:    docs[1].Key,
		ProofOfAddressKey: docs[2].Key,
	}
	if err := s.repo.CreateClient(ctx, client, docs); err != nil {
		s.removeDocuments(docs)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user":      userID,
		"client_id": client.ID,
		"principal": principal.StringFixed(2),
	}).Info("Client registered")
	return client, nil
}

func documentFrom(kind string, stored *storage.StoredFile) models.Document {
	return models.Document{
		Kind:         kind,
		Key:          stored.Key,
		OriginalName: stored.OriginalName,
		ContentType:  stored.ContentType,
		Size:         stored.Size,
	}
}

func (s *Service) removeDocuments(docs []models.Document) {
	for _, d := range docs {
		if err := s.files.Remove(d.Key); err != nil {
			s.log.Errorf("Failed to remove orphaned upload %s: %v", d.Key, err)
		}
	}
}

// Client retrieves a client owned by the user
func (s *Service) Client(ctx context.Context, userID string, clientID int64) (*models.Client, error) {
	client, err := s.repo.FindClient(ctx, userID, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	return client, err
}

// Documents lists the document metadata of a client owned by the user
func (s *Service) Documents(ctx context.Context, userID string, clientID int64) ([]models.Document, error) {
	if _, err := s.Client(ctx, userID, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListDocuments(ctx, userID, clientID)
}

// Document opens a stored document whose client is owned by the user. The
// caller closes the returned reader.
func (s *Service) Document(ctx context.Context, userID string, documentID int64) (*models.Document, io.ReadSeekCloser, error) {
	doc, err := s.repo.FindDocument(ctx, userID, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(doc.Key)
	if err != nil {
		return nil, nil, err
	}
	return doc, f, nil
}
