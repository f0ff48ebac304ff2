package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"academy/internal/billing"
	"academy/internal/handler"
	"academy/internal/middleware"
	"academy/internal/model"
	"academy/internal/repository"
	"academy/internal/service"
	"academy/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "handler-test-secret"

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Reference string          `json:"reference"`
	Data      json.RawMessage `json:"data"`
	Errors    []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type testServer struct {
	router   *gin.Engine
	statuses repository.FinancialStatusRepository
	settings service.SettingsService
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	log := zap.NewNop()
	auth := middleware.NewAuthenticator(secret)
	txManager := repository.NewTransactionManager(db)
	statuses := repository.NewFinancialStatusRepository(db)

	activity := service.NewActivityService(repository.NewActivityRepository(db), log)
	settings := service.NewSettingsService(repository.NewSettingsRepository(db), repository.NewPenaltySettingRepository(db), activity)
	payments := service.NewPaymentService(service.PaymentDeps{
		ClaimRepo:        repository.NewClaimRepository(db),
		RegistrationRepo: repository.NewRegistrationRepository(db),
		StatusRepo:       statuses,
		TxManager:        txManager,
		Activity:         activity,
		Logger:           log,
	})
	financial := service.NewFinancialService(statuses, txManager, settings, activity, nil, log)

	r := gin.New()
	root := r.Group("")
	handler.NewSettingsHandler(settings, auth).RegisterRoutes(root)
	handler.NewTaxHandler(service.NewTaxService(settings), auth).RegisterRoutes(root)
	handler.NewPaymentHandler(payments, auth).RegisterRoutes(root)
	handler.NewFinancialHandler(financial, auth).RegisterRoutes(root)
	handler.NewActivityHandler(activity, auth).RegisterRoutes(root)

	return &testServer{router: r, statuses: statuses, settings: settings}
}

func token(t *testing.T, sub uint, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  float64(sub),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, req *http.Request, tok string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func form(method, path string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonBody(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSettingsHandler_SaveAndGetTax(t *testing.T) {
	s := newServer(t)
	admin := token(t, 1, "admin")

	w, env := s.do(t, form(http.MethodPost, "/api/admin/settings", url.Values{
		"action":        {handler.ActionSaveTax},
		"tax_enabled":   {"on"},
		"tax_name":      {"VAT"},
		"tax_rate":      {"7.5"},
		"tax_inclusive": {"1"},
		"tax_items":     {`[{"name":"books","taxable":true,"rate":"10"}]`},
	}), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/settings/tax", nil), admin)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg billing.TaxConfig
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.Inclusive)
	require.Len(t, cfg.Items, 1)
	assert.Equal(t, "books", cfg.Items[0].Name)
}

func TestSettingsHandler_RejectsInvalidForms(t *testing.T) {
	s := newServer(t)
	admin := token(t, 1, "admin")

	w, env := s.do(t, form(http.MethodPost, "/api/admin/settings", url.Values{
		"action":   {handler.ActionSaveTax},
		"tax_rate": {"150"},
	}), admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotEmpty(t, env.Errors)
	assert.Equal(t, "rate", env.Errors[0].Field)

	w, _ = s.do(t, form(http.MethodPost, "/api/admin/settings", url.Values{"action": {"save_everything"}}), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, form(http.MethodPost, "/api/admin/settings", url.Values{"action": {handler.ActionSaveTax}}), token(t, 42, "student"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSettingsHandler_SavePenaltyAndAutomation(t *testing.T) {
	s := newServer(t)
	admin := token(t, 1, "admin")

	w, _ := s.do(t, form(http.MethodPost, "/api/admin/settings", url.Values{
		"action":                     {handler.ActionSavePenalty},
		"online_grace_period_days":   {"3"},
		"online_late_fee_percentage": {"2.5"},
		"online_min_late_fee":        {"100"},
		"online_max_late_fee":        {"1000"},
		"online_suspension_days":     {"14"},
		"online_is_active":           {"on"},
	}), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	policy, err := s.settings.GetPenaltyPolicy(context.Background(), billing.ProgramOnline)
	require.NoError(t, err)
	assert.Equal(t, 3, policy.GracePeriodDays)
	assert.Equal(t, "2.50", policy.LateFeePercentage.StringFixed(2))
	assert.True(t, policy.IsActive)

	w, _ = s.do(t, form(http.MethodPost, "/api/admin/settings", url.Values{
		"action":         {handler.ActionSaveAutomation},
		"auto_reminders": {"on"},
		"reminder_days":  {"7,1", "3"},
		"auto_late_fees": {"on"},
	}), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rules, err := s.settings.GetAutomationRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 7}, rules.ReminderDays)
	assert.True(t, rules.AutoLateFees)
	assert.False(t, rules.AutoSuspension)

	w, env := s.do(t, form(http.MethodPost, "/api/admin/settings", url.Values{
		"action":        {handler.ActionSaveAutomation},
		"reminder_days": {"soon"},
	}), admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotEmpty(t, env.Errors)
	assert.Equal(t, "reminder_days", env.Errors[0].Field)
}

func TestTaxHandler_Quote(t *testing.T) {
	s := newServer(t)

	cfg := billing.DefaultTaxConfig()
	cfg.Enabled = true
	cfg.Inclusive = true
	_, err := s.settings.SaveTaxSettings(context.Background(), cfg, service.Actor{ID: 1, Role: "admin"})
	require.NoError(t, err)

	w, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/tax/quote?amount=100000", nil), token(t, 42, "student"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var quote service.QuoteResponse
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.Equal(t, "6976.74", quote.TaxAmount)
	assert.Equal(t, "93023.26", quote.NetAmount)

	w, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/tax/quote?amount=abc", nil), token(t, 42, "student"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/tax/quote?amount=1", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_RecordVerifyFlow(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	student := token(t, 42, "student")
	admin := token(t, 1, "admin")

	account := model.NewFinancialStatus(42, billing.ProgramOnline, decimal.NewFromInt(100000))
	classID := uint(7)
	account.ClassID = &classID
	require.NoError(t, s.statuses.Create(ctx, account))

	w, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/payments/reference?kind=course", nil), student)
	require.Equal(t, http.StatusOK, w.Code)
	var ref struct {
		Reference string `json:"reference"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ref))
	require.True(t, strings.HasPrefix(ref.Reference, "COURSE"), ref.Reference)

	values := url.Values{
		"payment_reference": {ref.Reference},
		"payment_type":      {"course"},
		"class_id":          {"7"},
		"amount":            {"30000"},
	}
	w, env = s.do(t, form(http.MethodPost, "/api/payments/record", values), student)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, ref.Reference, env.Reference)

	var claim service.ClaimResponse
	require.NoError(t, json.Unmarshal(env.Data, &claim))
	assert.Equal(t, uint(42), claim.StudentID)

	w, _ = s.do(t, form(http.MethodPost, "/api/payments/record", values), student)
	assert.Equal(t, http.StatusConflict, w.Code)

	verifyPath := "/api/admin/payments/" + itoa(claim.ID) + "/verify"
	w, _ = s.do(t, httptest.NewRequest(http.MethodPut, verifyPath, nil), student)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, httptest.NewRequest(http.MethodPut, verifyPath, nil), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(t, httptest.NewRequest(http.MethodPut, verifyPath, nil), admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/me/financial-status", nil), student)
	require.Equal(t, http.StatusOK, w.Code)
	var accounts []service.FinancialStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "70000.00", accounts[0].Balance)

	w, _ = s.do(t, httptest.NewRequest(http.MethodPut, "/api/admin/payments/999/verify", nil), admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, httptest.NewRequest(http.MethodPut, "/api/admin/payments/abc/verify", nil), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_RecordValidation(t *testing.T) {
	s := newServer(t)

	w, env := s.do(t, jsonBody(http.MethodPost, "/api/payments/record",
		`{"payment_reference":"COURSE2026030900042100","payment_type":"course","amount":"-5"}`), token(t, 42, "student"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var fields []string
	for _, fe := range env.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"amount", "class_id"}, fields)
}

func TestPaymentHandler_RecordAcceptsNumericAmount(t *testing.T) {
	s := newServer(t)
	student := token(t, 42, "student")

	tests := []struct {
		name   string
		ref    string
		amount string
		want   string
	}{
		{"integer", "COURSE2026030900042101", `40000`, "40000.00"},
		{"fraction", "COURSE2026030900042102", `1250.5`, "1250.50"},
		{"string", "COURSE2026030900042103", `"700.25"`, "700.25"},
		{"trailing zero", "COURSE2026030900042104", `"100.500"`, "100.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"payment_reference":"` + tt.ref + `","payment_type":"course","class_id":7,"amount":` + tt.amount + `}`
			w, env := s.do(t, jsonBody(http.MethodPost, "/api/payments/record", body), student)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

			var claim service.ClaimResponse
			require.NoError(t, json.Unmarshal(env.Data, &claim))
			assert.Equal(t, tt.want, claim.Amount)
			assert.Equal(t, uint(42), claim.StudentID)
		})
	}

	w, env := s.do(t, jsonBody(http.MethodPost, "/api/payments/record",
		`{"payment_reference":"COURSE2026030900042105","payment_type":"course","class_id":7,"amount":10.005}`), student)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "amount", env.Errors[0].Field)
}

func TestPaymentHandler_RejectAndList(t *testing.T) {
	s := newServer(t)
	student := token(t, 42, "student")
	admin := token(t, 1, "admin")

	w, env := s.do(t, jsonBody(http.MethodPost, "/api/payments/record",
		`{"payment_reference":"COURSE2026030900042555","payment_type":"course","class_id":7,"amount":"500"}`), student)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var claim service.ClaimResponse
	require.NoError(t, json.Unmarshal(env.Data, &claim))

	rejectPath := "/api/admin/payments/" + itoa(claim.ID) + "/reject"
	w, _ = s.do(t, jsonBody(http.MethodPut, rejectPath, `{"reason":""}`), admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(t, jsonBody(http.MethodPut, rejectPath, `{"reason":"no matching transfer"}`), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/payments?status=rejected", nil), admin)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []service.ClaimResponse `json:"items"`
		Total int64                   `json:"total"`
		Page  int                     `json:"page"`
		Limit int                     `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "no matching transfer", page.Items[0].RejectionReason)

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/activity-logs?action="+model.ActionRejectPayment, nil), admin)
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Items []service.ActivityLogResponse `json:"items"`
		Total int64                         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	assert.EqualValues(t, 1, logs.Total)
	require.Len(t, logs.Items, 1)
	assert.Equal(t, itoa(claim.ID), logs.Items[0].EntityID)
}

func TestFinancialHandler_OpenAndPenalty(t *testing.T) {
	s := newServer(t)
	admin := token(t, 1, "admin")

	w, env := s.do(t, jsonBody(http.MethodPost, "/api/admin/financial-status",
		`{"student_id":42,"class_id":7,"program_type":"online","total_fee":"100000","next_payment_due":"2026-01-10"}`), admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var account service.FinancialStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &account))

	w, _ = s.do(t, jsonBody(http.MethodPost, "/api/admin/financial-status",
		`{"student_id":42,"class_id":7,"program_type":"online","total_fee":"100000"}`), admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	penaltyPath := "/api/admin/financial-status/" + itoa(account.ID) + "/penalty?as_of=2026-01-25"
	w, env = s.do(t, httptest.NewRequest(http.MethodPost, penaltyPath, nil), admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result service.PenaltyResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.FeeApplied)
	assert.Equal(t, "5000.00", result.LateFee)

	w, env = s.do(t, httptest.NewRequest(http.MethodPost, penaltyPath, nil), admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.FeeApplied)

	w, _ = s.do(t, httptest.NewRequest(http.MethodPost, "/api/admin/financial-status/"+itoa(account.ID)+"/penalty?as_of=25-01-2026", nil), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/students/42/financial-status", nil), admin)
	require.Equal(t, http.StatusOK, w.Code)
	var accounts []service.FinancialStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "105000.00", accounts[0].Balance)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
