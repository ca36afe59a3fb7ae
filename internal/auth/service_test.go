package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	admins    map[string]Account
	operators map[string]Account
}

func (s *stubRepo) FindAdmin(ctx context.Context, badgeID string) (Account, error) {
	account, ok := s.admins[badgeID]
	if !ok {
		return Account{}, ErrUnknownBadge
	}
	return account, nil
}

func (s *stubRepo) FindOperator(ctx context.Context, badgeID string) (Account, error) {
	account, ok := s.operators[badgeID]
	if !ok {
		return Account{}, ErrUnknownBadge
	}
	return account, nil
}

func (s *stubRepo) ListOperators(ctx context.Context) ([]Operator, error) {
	operators := []Operator{}
	for _, account := range s.operators {
		operators = append(operators, Operator{ID: account.ID, Name: account.Name})
	}
	return operators, nil
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		admins: map[string]Account{
			"A001": {ID: "A001", Name: "Supervisor", Role: RoleAdmin},
		},
		operators: map[string]Account{
			"OP01": {ID: "OP01", Name: "Operator One", Role: RoleUser},
			"A001": {ID: "A001", Name: "Supervisor", Role: RoleUser},
		},
	}
}

func TestLoginAdminWinsOverOperator(t *testing.T) {
	svc := NewService(newStubRepo())

	account, err := svc.Login(context.Background(), "A001")
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, account.Role)
}

func TestLoginFallsBackToOperators(t *testing.T) {
	svc := NewService(newStubRepo())

	account, err := svc.Login(context.Background(), "OP01")
	require.NoError(t, err)
	require.Equal(t, RoleUser, account.Role)
	require.Equal(t, "Operator One", account.Name)
}

func TestLoginUnknownBadge(t *testing.T) {
	svc := NewService(newStubRepo())

	_, err := svc.Login(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrUnknownBadge)

	_, err = svc.Login(context.Background(), "  ")
	require.ErrorIs(t, err, ErrUnknownBadge)
}

func TestCheckRole(t *testing.T) {
	svc := NewService(newStubRepo())

	role, err := svc.CheckRole(context.Background(), "OP01")
	require.NoError(t, err)
	require.Equal(t, RoleUser, role)

	role, err = svc.CheckRole(context.Background(), "A001")
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, role)
}
