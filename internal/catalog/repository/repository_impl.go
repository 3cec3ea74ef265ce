package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindPlanByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Plan, error) {
	var p domain.Plan
	err := db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) FindServiceByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Service, error) {
	var s domain.Service
	err := db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) FindPlanByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*domain.Plan, error) {
	var p domain.Plan
	err := db.WithContext(ctx).Where("org_id = ? AND code = ?", orgID, code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) FindServiceByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*domain.Service, error) {
	var s domain.Service
	err := db.WithContext(ctx).Where("org_id = ? AND code = ?", orgID, code).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) ListPlans(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Plan, error) {
	var items []domain.Plan
	err := db.WithContext(ctx).
		Where("org_id = ? AND active = ?", orgID, true).
		Order("name ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListServices(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Service, error) {
	var items []domain.Service
	err := db.WithContext(ctx).
		Where("org_id = ? AND active = ?", orgID, true).
		Order("name ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SavePlan(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	if plan == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(plan).Error
}

func (r *repo) SaveService(ctx context.Context, db *gorm.DB, service *domain.Service) error {
	if service == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(service).Error
}
