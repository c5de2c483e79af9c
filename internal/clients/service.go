package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/facturo/facturo/internal/platform/httpx"
)

// RepositoryPort defines data access methods for clients.
type RepositoryPort interface {
	Create(ctx context.Context, c Client) (*Client, error)
	Get(ctx context.Context, ownerID, id int64) (*Client, error)
	List(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
	Update(ctx context.Context, ownerID, id int64, req UpdateClientRequest) (*Client, error)
	Archive(ctx context.Context, ownerID, id int64) error
}

// Service handles client business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new client for the owner.
func (s *Service) Create(ctx context.Context, ownerID int64, req CreateClientRequest) (*Client, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("%w: owner required", httpx.ErrValidation)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, Client{
		OwnerID:          ownerID,
		Name:             strings.TrimSpace(req.Name),
		Email:            req.Email,
		Phone:            req.Phone,
		VATNumber:        req.VATNumber,
		TaxExempt:        req.TaxExempt,
		Currency:         strings.ToUpper(req.Currency),
		PaymentTermsDays: req.PaymentTermsDays,
		AddressLine1:     req.AddressLine1,
		AddressLine2:     req.AddressLine2,
		City:             req.City,
		Country:          req.Country,
		Notes:            req.Notes,
	})
}

// Get loads one client.
func (s *Service) Get(ctx context.Context, ownerID, id int64) (*Client, error) {
	c, err := s.repo.Get(ctx, ownerID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, httpx.ErrNotFound
	}
	return c, err
}

// List returns clients matching the filters.
func (s *Service) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	return s.repo.List(ctx, req)
}

// Update patches client fields.
func (s *Service) Update(ctx context.Context, ownerID, id int64, req UpdateClientRequest) (*Client, error) {
	c, err := s.repo.Update(ctx, ownerID, id, req)
	if errors.Is(err, ErrNotFound) {
		return nil, httpx.ErrNotFound
	}
	return c, err
}

// Archive soft-deletes a client.
func (s *Service) Archive(ctx context.Context, ownerID, id int64) error {
	err := s.repo.Archive(ctx, ownerID, id)
	if errors.Is(err, ErrNotFound) {
		return httpx.ErrNotFound
	}
	return err
}
