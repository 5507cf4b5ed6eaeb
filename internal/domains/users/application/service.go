package application

import (
	"context"
	"errors"
	"strings"

	"github.com/Apurer/go-commerce-api-server/internal/domains/users/domain"
	"github.com/Apurer/go-commerce-api-server/internal/domains/users/ports"
)

// Service exposes user bounded context use cases.
type Service struct {
	repo   ports.Repository
	tokens ports.TokenIssuer
}

func NewService(repo ports.Repository, tokens ports.TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates an account; duplicate emails fail with ErrEmailTaken.
func (s *Service) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	user, err := domain.NewUser(name, email, password)
	if err != nil {
		return nil, err
	}
	if existing, err := s.repo.GetByEmail(ctx, user.Email); err == nil && existing != nil {
		return nil, ports.ErrEmailTaken
	} else if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}
	return s.repo.Save(ctx, user)
}

// Authenticate verifies credentials and issues an access token carrying the
// user's role set.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, "", ports.ErrInvalidCredentials
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, "", ports.ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !user.CheckPassword(password) {
		return nil, "", ports.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID, user.Roles)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetByID loads a user.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all users, an admin-only view.
func (s *Service) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

var _ ports.Service = (*Service)(nil)
