package auth

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort abstracts badge lookups for the service.
type RepositoryPort interface {
	FindAdmin(ctx context.Context, badgeID string) (Account, error)
	FindOperator(ctx context.Context, badgeID string) (Account, error)
	ListOperators(ctx context.Context) ([]Operator, error)
}

// Service resolves scanned badges. There are no passwords: possession of the
// badge is the credential, matching how the weigh floor actually operates.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Login resolves a badge, preferring the admin table so supervisors who also
// appear as operators keep their admin role.
func (s *Service) Login(ctx context.Context, badgeID string) (Account, error) {
	badgeID = strings.TrimSpace(badgeID)
	if badgeID == "" {
		return Account{}, ErrUnknownBadge
	}
	account, err := s.repo.FindAdmin(ctx, badgeID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrUnknownBadge) {
		return Account{}, err
	}
	return s.repo.FindOperator(ctx, badgeID)
}

// CheckRole returns the role for an already-resolved account id.
func (s *Service) CheckRole(ctx context.Context, userID string) (string, error) {
	account, err := s.Login(ctx, userID)
	if err != nil {
		return "", err
	}
	return account.Role, nil
}

// ListOperators serves the operator dump for handheld sync.
func (s *Service) ListOperators(ctx context.Context) ([]Operator, error) {
	return s.repo.ListOperators(ctx)
}
