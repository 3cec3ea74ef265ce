package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/railzwaylabs/agencyops/internal/audit/domain"
	auditrepository "github.com/railzwaylabs/agencyops/internal/audit/repository"
	auditservice "github.com/railzwaylabs/agencyops/internal/audit/service"
	"github.com/railzwaylabs/agencyops/internal/authorization"
	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
	cascadeservice "github.com/railzwaylabs/agencyops/internal/cascade/service"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	catalogrepository "github.com/railzwaylabs/agencyops/internal/catalog/repository"
	catalogservice "github.com/railzwaylabs/agencyops/internal/catalog/service"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/config"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
	contractrepository "github.com/railzwaylabs/agencyops/internal/contract/repository"
	contractservice "github.com/railzwaylabs/agencyops/internal/contract/service"
	installmentdomain "github.com/railzwaylabs/agencyops/internal/installment/domain"
	installmentrepository "github.com/railzwaylabs/agencyops/internal/installment/repository"
	installmentservice "github.com/railzwaylabs/agencyops/internal/installment/service"
	subscriptiondomain "github.com/railzwaylabs/agencyops/internal/subscription/domain"
	subscriptionrepository "github.com/railzwaylabs/agencyops/internal/subscription/repository"
	subscriptionservice "github.com/railzwaylabs/agencyops/internal/subscription/service"
	"github.com/railzwaylabs/agencyops/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type apiFixture struct {
	t        *testing.T
	db       *gorm.DB
	handler  http.Handler
	planID   snowflake.ID
	clientID snowflake.ID
}

type envelope struct {
	Data     json.RawMessage  `json:"data"`
	Error    *APIError        `json:"error"`
	Warnings []map[string]any `json:"warnings"`
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t,
		&catalogdomain.Plan{},
		&catalogdomain.Service{},
		&contractdomain.Contract{},
		&subscriptiondomain.Subscription{},
		&installmentdomain.Installment{},
		&auditdomain.AuditLog{},
	)
	node := testutil.NewNode(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var cfg config.Config
	cfg.DefaultOrgID = 1
	cfg.Billing.DefaultCurrency = "BRL"
	cfg.Billing.CascadePlanTTL = time.Hour
	cfg.Authorization.BillingRoles = []string{"admin", "financeiro"}
	cfg.Authorization.DefaultRole = "operador"

	log := zap.NewNop()
	clk := clock.SystemClock{}

	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepository.Provide()})
	catalogSvc := catalogservice.New(catalogservice.Params{DB: db, Log: log, Repo: catalogrepository.Provide()})
	installmentSvc := installmentservice.New(installmentservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: installmentrepository.Provide()})
	cascadeSvc := cascadeservice.New(cascadeservice.Params{
		DB:            db,
		Log:           log,
		Cfg:           cfg,
		Clock:         clk,
		Store:         cascadeservice.NewRedisStore(client),
		Contracts:     contractrepository.Provide(),
		Subscriptions: subscriptionrepository.Provide(),
		Installments:  installmentSvc,
		AuditSvc:      auditSvc,
	})
	contractSvc := contractservice.New(contractservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: contractrepository.Provide(), Cascade: cascadeSvc,
	})
	subscriptionSvc := subscriptionservice.New(subscriptionservice.Params{
		DB:           db,
		Log:          log,
		Cfg:          cfg,
		GenID:        node,
		Clock:        clk,
		Repo:         subscriptionrepository.Provide(),
		Contracts:    contractrepository.Provide(),
		Catalog:      catalogSvc,
		Installments: installmentSvc,
		Cascade:      cascadeSvc,
	})
	authorizer, err := authorization.NewAuthorizer(db, cfg, log)
	require.NoError(t, err)

	srv := NewServer(Params{
		Cfg:             cfg,
		Log:             log,
		DB:              db,
		Catalog:         catalogSvc,
		ContractSvc:     contractSvc,
		SubscriptionSvc: subscriptionSvc,
		InstallmentSvc:  installmentSvc,
		CascadeSvc:      cascadeSvc,
		AuditSvc:        auditSvc,
		Authorizer:      authorizer,
	})

	now := time.Now().UTC()
	plan := catalogdomain.Plan{
		ID:               node.Generate(),
		OrgID:            snowflake.ID(cfg.DefaultOrgID),
		Code:             "gestao-de-marca",
		Name:             "Gestão de Marca",
		DefaultValue:     decimal.NewFromInt(900),
		Currency:         "BRL",
		RecurrenceMonths: 2,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.Create(&plan).Error)

	return &apiFixture{t: t, db: db, handler: srv.Handler(), planID: plan.ID, clientID: node.Generate()}
}

func (f *apiFixture) do(method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "agencyops-test")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (f *apiFixture) createContract(start string) contractdomain.Contract {
	f.t.Helper()
	rec, env := f.do(http.MethodPost, "/api/contracts", map[string]any{
		"client_id":  f.clientID.String(),
		"name":       "Contrato 2025",
		"start_date": start,
	}, nil)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[contractdomain.Contract](f.t, env.Data)
}

func (f *apiFixture) createSubscription(contractID string) subscriptiondomain.CreateResult {
	f.t.Helper()
	rec, env := f.do(http.MethodPost, "/api/subscriptions", map[string]any{
		"kind":        "plan",
		"client_id":   f.clientID.String(),
		"catalog_ref": f.planID.String(),
		"contract_id": contractID,
		"start_date":  "2025-01-15",
		"end_date":    "2025-07-15",
	}, nil)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[subscriptiondomain.CreateResult](f.t, env.Data)
}

func TestSubscriptionLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	contract := f.createContract("2025-01-15")
	created := f.createSubscription(contract.ID.String())
	assert.Equal(t, 4, created.InstallmentCount)
	require.NotNil(t, created.EndDateProposal)
	assert.Equal(t, subscriptiondomain.ProposalPropose, created.EndDateProposal.Mode)

	rec, env := f.do(http.MethodGet, "/api/clients/"+f.clientID.String()+"/installments", nil, map[string]string{
		headerSimulatedDate: "2025-04-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]installmentdomain.Installment](t, env.Data)
	require.Len(t, items, 4)
	statuses := make([]installmentdomain.Status, 0, len(items))
	for _, item := range items {
		statuses = append(statuses, item.Status)
	}
	assert.Equal(t, []installmentdomain.Status{
		installmentdomain.StatusVencido,
		installmentdomain.StatusVencido,
		installmentdomain.StatusPendente,
		installmentdomain.StatusPendente,
	}, statuses)

	rec, env = f.do(http.MethodPost, "/api/subscriptions/"+created.Subscription.ID.String()+"/propagate-end-date", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[contractdomain.Contract](t, env.Data)
	require.NotNil(t, updated.EndDate)
}

func TestBillingFieldsNeedBillingRole(t *testing.T) {
	f := newAPIFixture(t)
	created := f.createSubscription("")
	path := "/api/subscriptions/" + created.Subscription.ID.String()

	rec, env := f.do(http.MethodPatch, path, map[string]any{"value": "1500.00"}, map[string]string{headerRole: "operador"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "billing_fields_restricted", env.Error.Code)

	rec, _ = f.do(http.MethodPatch, path, map[string]any{"value": "1500.00"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "default role is restricted")

	rec, _ = f.do(http.MethodPatch, path, map[string]any{"status": "pausado", "signing_state": "assinado"}, map[string]string{headerRole: "operador"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stored subscriptiondomain.Subscription
	require.NoError(t, f.db.First(&stored, "id = ?", created.Subscription.ID).Error)
	assert.Nil(t, stored.SignedAt, "restricted callers never write signing dates")

	rec, env = f.do(http.MethodPatch, path, map[string]any{"value": "1500.00"}, map[string]string{headerRole: "Financeiro"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[subscriptiondomain.UpdateResult](t, env.Data)
	assert.True(t, result.Subscription.Value.Equal(decimal.NewFromInt(1500)))
}

func TestCascadePlanAndExecute(t *testing.T) {
	f := newAPIFixture(t)
	contract := f.createContract("2025-01-15")
	f.createSubscription(contract.ID.String())

	rec, env := f.do(http.MethodPost, "/api/cascades/plan", map[string]any{
		"target_kind": "contract",
		"target_id":   contract.ID.String(),
		"action":      "delete",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decode[cascadedomain.Plan](t, env.Data)
	assert.ElementsMatch(t, []cascadedomain.Decision{
		cascadedomain.DecisionCascade, cascadedomain.DecisionShallow, cascadedomain.DecisionAbort,
	}, plan.Options)
	require.Len(t, plan.Subscriptions, 1)

	rec, env = f.do(http.MethodPost, "/api/cascades/execute", map[string]any{"plan_id": plan.ID, "decision": "proceed"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "decision_not_offered", env.Error.Code)

	rec, env = f.do(http.MethodPost, "/api/cascades/execute", map[string]any{"plan_id": plan.ID, "decision": "cascade"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[cascadedomain.Result](t, env.Data)
	assert.Equal(t, int64(1), result.ContractsDeleted)
	assert.Equal(t, int64(1), result.SubscriptionsDeleted)
	assert.Equal(t, int64(4), result.InstallmentsCancelled)

	rec, _ = f.do(http.MethodGet, "/api/contracts/"+contract.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var remaining int64
	require.NoError(t, f.db.Model(&installmentdomain.Installment{}).Count(&remaining).Error)
	assert.Equal(t, int64(4), remaining, "installments are cancelled, never deleted")

	rec, env = f.do(http.MethodPost, "/api/cascades/execute", map[string]any{"plan_id": plan.ID, "decision": "cascade"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "plans are forgotten once executed")
	assert.Equal(t, "cascade_plan_not_found", env.Error.Code)
}

func TestShallowDeleteKeepsSubscriptions(t *testing.T) {
	f := newAPIFixture(t)
	contract := f.createContract("2025-01-15")
	created := f.createSubscription(contract.ID.String())

	rec, env := f.do(http.MethodDelete, "/api/contracts/"+contract.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[cascadedomain.Result](t, env.Data)
	assert.Equal(t, cascadedomain.DecisionShallow, result.Decision)
	assert.Equal(t, int64(1), result.SubscriptionsUnlinked)

	rec, env = f.do(http.MethodGet, "/api/subscriptions/"+created.Subscription.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decode[subscriptiondomain.Subscription](t, env.Data)
	assert.Nil(t, sub.ContractID)
}

func TestErrorEnvelopes(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(http.MethodPost, "/api/contracts", map[string]any{"client_id": "nope"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "client_id", env.Error.Field)

	rec, env = f.do(http.MethodPost, "/api/contracts", map[string]any{
		"client_id":  f.clientID.String(),
		"start_date": "15/01/2025",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "start_date", env.Error.Field)

	rec, env = f.do(http.MethodGet, "/api/contracts/1234567", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "contract_not_found", env.Error.Code)

	rec, _ = f.do(http.MethodGet, "/api/contracts/abc", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = f.do(http.MethodGet, "/api/contracts/1234567", nil, map[string]string{headerOrgID: "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateContractIdempotencyKey(t *testing.T) {
	f := newAPIFixture(t)
	body := map[string]any{"client_id": f.clientID.String(), "start_date": "2025-02-01"}
	headers := map[string]string{"Idempotency-Key": "contract-abc"}

	rec, first := f.do(http.MethodPost, "/api/contracts", body, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, second := f.do(http.MethodPost, "/api/contracts", body, headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	a := decode[contractdomain.Contract](t, first.Data)
	b := decode[contractdomain.Contract](t, second.Data)
	assert.Equal(t, a.ID, b.ID)

	var count int64
	require.NoError(t, f.db.Model(&contractdomain.Contract{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAuditTrailAndExport(t *testing.T) {
	f := newAPIFixture(t)
	contract := f.createContract("2025-01-15")

	rec, env := f.do(http.MethodGet, "/api/audit/contract/"+contract.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]auditdomain.AuditLog](t, env.Data)
	require.Len(t, logs, 1)
	assert.Equal(t, "contract.create", logs[0].Action)
	require.NotNil(t, logs[0].UserAgent)

	today := time.Now().UTC().Format("2006-01-02")
	rec, _ = f.do(http.MethodGet, "/api/audit/export?start_date="+today+"&end_date="+today, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Audit-Export-Count"))
	assert.Len(t, rec.Header().Get("X-Audit-Export-Checksum"), 64)

	rec, _ = f.do(http.MethodGet, "/api/audit/export?start_date=2025-01-01&end_date=2025-12-31", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(http.MethodGet, "/api/catalog/plans", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get(headerRequestID), 26)

	rec, _ = f.do(http.MethodGet, "/api/catalog/plans", nil, map[string]string{headerRequestID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"})
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", rec.Header().Get(headerRequestID))
}
