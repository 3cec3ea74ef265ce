// Package seed loads the agency's starting catalog.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PlanSeed struct {
	Name             string
	DefaultValue     string
	RecurrenceMonths int
}

type ServiceSeed struct {
	Name         string
	DefaultValue string
}

type Catalog struct {
	Plans    []PlanSeed
	Services []ServiceSeed
}

// DefaultCatalog is the catalog a new agency starts from.
var DefaultCatalog = Catalog{
	Plans: []PlanSeed{
		{Name: "Social Media Essencial", DefaultValue: "1500.00", RecurrenceMonths: 1},
		{Name: "Social Media Completo", DefaultValue: "2800.00", RecurrenceMonths: 1},
		{Name: "Tráfego Pago", DefaultValue: "2000.00", RecurrenceMonths: 1},
		{Name: "Gestão de Marca Trimestral", DefaultValue: "5400.00", RecurrenceMonths: 3},
		{Name: "Consultoria Anual", DefaultValue: "18000.00", RecurrenceMonths: 12},
	},
	Services: []ServiceSeed{
		{Name: "Site Institucional", DefaultValue: "4500.00"},
		{Name: "Identidade Visual", DefaultValue: "3200.00"},
		{Name: "Landing Page", DefaultValue: "1800.00"},
		{Name: "Sessão de Fotos", DefaultValue: "1200.00"},
	},
}

type Summary struct {
	PlansCreated    int
	PlansUpdated    int
	ServicesCreated int
	ServicesUpdated int
}

type Seeder struct {
	db       *gorm.DB
	repo     catalogdomain.Repository
	node     *snowflake.Node
	log      *zap.Logger
	currency string
	now      func() time.Time
}

func NewSeeder(db *gorm.DB, repo catalogdomain.Repository, node *snowflake.Node, log *zap.Logger, currency string) *Seeder {
	return &Seeder{
		db:       db,
		repo:     repo,
		node:     node,
		log:      log.Named("seed"),
		currency: strings.ToUpper(strings.TrimSpace(currency)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// EnsureCatalog upserts catalog entries by code, the slug of their name.
// Running it again only refreshes names, values and recurrences.
func (s *Seeder) EnsureCatalog(ctx context.Context, orgID snowflake.ID, catalog Catalog) (Summary, error) {
	if orgID == 0 {
		return Summary{}, errors.New("seed org id is required")
	}

	var summary Summary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range catalog.Plans {
			created, err := s.ensurePlan(ctx, tx, orgID, p)
			if err != nil {
				return err
			}
			if created {
				summary.PlansCreated++
			} else {
				summary.PlansUpdated++
			}
		}
		for _, sv := range catalog.Services {
			created, err := s.ensureService(ctx, tx, orgID, sv)
			if err != nil {
				return err
			}
			if created {
				summary.ServicesCreated++
			} else {
				summary.ServicesUpdated++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	s.log.Info("catalog seeded",
		zap.String("org_id", orgID.String()),
		zap.Int("plans_created", summary.PlansCreated),
		zap.Int("services_created", summary.ServicesCreated),
	)
	return summary, nil
}

func (s *Seeder) ensurePlan(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, seed PlanSeed) (bool, error) {
	code, value, err := prepare(seed.Name, seed.DefaultValue)
	if err != nil {
		return false, err
	}
	if seed.RecurrenceMonths < 0 {
		return false, fmt.Errorf("plan %s: recurrence must not be negative", code)
	}

	plan, err := s.repo.FindPlanByCode(ctx, tx, orgID, code)
	if err != nil {
		return false, fmt.Errorf("find plan %s: %w", code, err)
	}
	created := plan == nil
	now := s.now()
	if created {
		plan = &catalogdomain.Plan{
			ID:        s.node.Generate(),
			OrgID:     orgID,
			Code:      code,
			Currency:  s.currency,
			Active:    true,
			CreatedAt: now,
		}
	}
	plan.Name = strings.TrimSpace(seed.Name)
	plan.DefaultValue = value
	plan.RecurrenceMonths = seed.RecurrenceMonths
	plan.UpdatedAt = now

	if err := s.repo.SavePlan(ctx, tx, plan); err != nil {
		return false, fmt.Errorf("save plan %s: %w", code, err)
	}
	return created, nil
}

func (s *Seeder) ensureService(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, seed ServiceSeed) (bool, error) {
	code, value, err := prepare(seed.Name, seed.DefaultValue)
	if err != nil {
		return false, err
	}

	service, err := s.repo.FindServiceByCode(ctx, tx, orgID, code)
	if err != nil {
		return false, fmt.Errorf("find service %s: %w", code, err)
	}
	created := service == nil
	now := s.now()
	if created {
		service = &catalogdomain.Service{
			ID:        s.node.Generate(),
			OrgID:     orgID,
			Code:      code,
			Currency:  s.currency,
			Active:    true,
			CreatedAt: now,
		}
	}
	service.Name = strings.TrimSpace(seed.Name)
	service.DefaultValue = value
	service.UpdatedAt = now

	if err := s.repo.SaveService(ctx, tx, service); err != nil {
		return false, fmt.Errorf("save service %s: %w", code, err)
	}
	return created, nil
}

func prepare(name, rawValue string) (string, decimal.Decimal, error) {
	code := slug.Make(strings.TrimSpace(name))
	if code == "" {
		return "", decimal.Zero, errors.New("catalog entry name is required")
	}
	value, err := decimal.NewFromString(strings.TrimSpace(rawValue))
	if err != nil || value.IsNegative() {
		return "", decimal.Zero, fmt.Errorf("catalog entry %s: invalid default value %q", code, rawValue)
	}
	return code, value, nil
}
