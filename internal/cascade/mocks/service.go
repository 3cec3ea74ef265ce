// Package mocks provides a testify mock of the cascade coordinator for
// packages that delegate deletes and cancels to it.
package mocks

import (
	"context"

	"github.com/railzwaylabs/agencyops/internal/cascade/domain"
	"github.com/stretchr/testify/mock"
)

type Service struct {
	mock.Mock
}

var _ domain.Service = (*Service)(nil)

func (m *Service) Plan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	args := m.Called(ctx, req)
	plan, _ := args.Get(0).(*domain.Plan)
	return plan, args.Error(1)
}

func (m *Service) Execute(ctx context.Context, plan *domain.Plan, decision domain.Decision) (*domain.Result, error) {
	args := m.Called(ctx, plan, decision)
	result, _ := args.Get(0).(*domain.Result)
	return result, args.Error(1)
}

func (m *Service) LoadPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	args := m.Called(ctx, planID)
	plan, _ := args.Get(0).(*domain.Plan)
	return plan, args.Error(1)
}

func (m *Service) Run(ctx context.Context, req domain.PlanRequest, cascade bool) (*domain.Result, error) {
	args := m.Called(ctx, req, cascade)
	result, _ := args.Get(0).(*domain.Result)
	return result, args.Error(1)
}
