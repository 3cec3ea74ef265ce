// Package authorization resolves per-request capabilities from the caller's
// role with a casbin enforcer whose policies live in the database.
package authorization

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/railzwaylabs/agencyops/internal/config"
	subscriptiondomain "github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ObjectSubscription = "subscription"
	ActionEditBilling  = "edit_billing"

	policyTable = "casbin_rules"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

type Authorizer struct {
	enforcer    *casbin.SyncedEnforcer
	defaultRole string
	log         *zap.Logger
}

func NewAuthorizer(db *gorm.DB, cfg config.Config, log *zap.Logger) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", policyTable)
	if err != nil {
		return nil, fmt.Errorf("init casbin adapter: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init casbin enforcer: %w", err)
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policy: %w", err)
	}

	a := &Authorizer{
		enforcer:    enforcer,
		defaultRole: normalizeRole(cfg.Authorization.DefaultRole),
		log:         log.Named("authorization"),
	}
	if err := a.seed(cfg.Authorization.BillingRoles); err != nil {
		return nil, err
	}
	return a, nil
}

// seed grants billing edits to the configured roles. Existing rules are kept,
// so roles granted through the table survive restarts.
func (a *Authorizer) seed(roles []string) error {
	for _, role := range roles {
		role = normalizeRole(role)
		if role == "" {
			continue
		}
		added, err := a.enforcer.AddPolicy(role, ObjectSubscription, ActionEditBilling)
		if err != nil {
			return fmt.Errorf("seed policy for %s: %w", role, err)
		}
		if added {
			a.log.Info("billing edit granted", zap.String("role", role))
		}
	}
	return nil
}

func (a *Authorizer) Grant(role, obj, act string) error {
	_, err := a.enforcer.AddPolicy(normalizeRole(role), obj, act)
	return err
}

func (a *Authorizer) Revoke(role, obj, act string) error {
	_, err := a.enforcer.RemovePolicy(normalizeRole(role), obj, act)
	return err
}

// Capabilities resolves what role may do to subscriptions. An empty role
// falls back to the configured default role. Enforcer errors deny.
func (a *Authorizer) Capabilities(role string) subscriptiondomain.Capabilities {
	role = normalizeRole(role)
	if role == "" {
		role = a.defaultRole
	}
	allowed, err := a.enforcer.Enforce(role, ObjectSubscription, ActionEditBilling)
	if err != nil {
		a.log.Warn("authorization check failed", zap.String("role", role), zap.Error(err))
		return subscriptiondomain.Capabilities{}
	}
	return subscriptiondomain.Capabilities{CanEditBillingFields: allowed}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
