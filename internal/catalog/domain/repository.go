package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindPlanByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Plan, error)
	FindServiceByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Service, error)
	FindPlanByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*Plan, error)
	FindServiceByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*Service, error)
	ListPlans(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Plan, error)
	ListServices(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Service, error)
	SavePlan(ctx context.Context, db *gorm.DB, plan *Plan) error
	SaveService(ctx context.Context, db *gorm.DB, service *Service) error
}
