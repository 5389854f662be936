package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/samda/internal/audit/domain"
	auditrepository "github.com/smallbiznis/samda/internal/audit/repository"
	auditservice "github.com/smallbiznis/samda/internal/audit/service"
	"github.com/smallbiznis/samda/internal/clock"
	"github.com/smallbiznis/samda/internal/config"
	customerrepository "github.com/smallbiznis/samda/internal/customer/repository"
	customerservice "github.com/smallbiznis/samda/internal/customer/service"
	invoicerepository "github.com/smallbiznis/samda/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/samda/internal/invoice/service"
	"github.com/smallbiznis/samda/internal/migration"
	"github.com/smallbiznis/samda/internal/observability"
	paymentrepository "github.com/smallbiznis/samda/internal/payment/repository"
	paymentservice "github.com/smallbiznis/samda/internal/payment/service"
	sequencerepository "github.com/smallbiznis/samda/internal/sequence/repository"
	sequenceservice "github.com/smallbiznis/samda/internal/sequence/service"
	taxrepository "github.com/smallbiznis/samda/internal/tax/repository"
	taxservice "github.com/smallbiznis/samda/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(migration.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	taxRepo := taxrepository.Provide()
	resolver := taxservice.NewResolver(taxservice.ResolverParams{Repo: taxRepo})
	customerRepo := customerrepository.Provide()
	invoiceRepo := invoicerepository.Provide()
	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})
	sequences := sequenceservice.NewAllocator(sequenceservice.Params{
		DB:      conn,
		Log:     log,
		Clock:   fake,
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Repo:    sequencerepository.Provide(),
	})
	ledger := invoiceservice.NewLedger(invoiceservice.LedgerParams{
		Log:      log,
		Clock:    fake,
		Repo:     invoiceRepo,
		Resolver: resolver,
	})

	engine := NewEngine(EngineParams{
		ObsCfg: observability.Config{Environment: "test"},
		Log:    log,
	})
	NewServer(ServerParams{
		Gin: engine,
		CustomerSvc: customerservice.New(customerservice.Params{
			DB:       conn,
			Log:      log,
			GenID:    node,
			Clock:    fake,
			Repo:     customerRepo,
			AuditSvc: audit,
		}),
		TaxSvc: taxservice.NewService(taxservice.ServiceParams{
			DB:       conn,
			Log:      log,
			GenID:    node,
			Clock:    fake,
			Repo:     taxRepo,
			Resolver: resolver,
		}),
		InvoiceSvc: invoiceservice.NewService(invoiceservice.ServiceParam{
			DB:        conn,
			Log:       log,
			GenID:     node,
			Clock:     fake,
			Repo:      invoiceRepo,
			Ledger:    ledger,
			Sequences: sequences,
			Resolver:  resolver,
			Customers: customerRepo,
			AuditSvc:  audit,
		}),
		PaymentSvc: paymentservice.NewService(paymentservice.Params{
			DB:        conn,
			Log:       log,
			GenID:     node,
			Clock:     fake,
			Repo:      paymentrepository.Provide(),
			Ledger:    ledger,
			Sequences: sequences,
			Customers: customerRepo,
			AuditSvc:  audit,
		}),
	})
	return engine, conn
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func dataField(t *testing.T, body map[string]any, field string) any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data in %v", body)
	return data[field]
}

func idField(t *testing.T, body map[string]any) string {
	t.Helper()
	id, ok := dataField(t, body, "id").(string)
	require.True(t, ok, "id is not a string in %v", body)
	return id
}

func TestHealth(t *testing.T) {
	engine, _ := newTestServer(t)

	code, body := doJSON(t, engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	engine, _ := newTestServer(t)

	code, body := doJSON(t, engine, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["type"])
}

func TestBillingFlowOverHTTP(t *testing.T) {
	engine, conn := newTestServer(t)

	code, body := doJSON(t, engine, http.MethodPost, "/api/tax-profiles", map[string]any{
		"name":           "Ghana VAT Standard",
		"vat_rate":       "0.15",
		"nhil_rate":      "0.025",
		"getfund_rate":   "0.025",
		"effective_from": "2026-01-01",
	})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = doJSON(t, engine, http.MethodPost, "/api/customers", map[string]any{"name": "Kofi Traders"})
	require.Equal(t, http.StatusCreated, code, body)
	customerID := idField(t, body)

	code, body = doJSON(t, engine, http.MethodPost, "/api/invoices", map[string]any{
		"customer_id":  customerID,
		"invoice_type": "VAT",
		"lines": []map[string]any{
			{"description": "Consulting", "quantity": "2", "unit_price": "50.00"},
			{"description": "Travel", "quantity": "1", "unit_price": "25.00"},
		},
	})
	require.Equal(t, http.StatusCreated, code, body)
	invoiceID := idField(t, body)
	assert.Equal(t, "150.01", dataField(t, body, "total"))

	code, body = doJSON(t, engine, http.MethodPost, "/api/invoices/"+invoiceID+"/issue", nil, "X-Actor", "ama")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "SAMDA/VAT/000001", dataField(t, body, "invoice_no"))
	assert.Equal(t, "ISSUED", dataField(t, body, "status"))

	code, body = doJSON(t, engine, http.MethodPost, "/api/payments", map[string]any{
		"customer_id": customerID,
		"payer_name":  "Kofi",
		"method":      "MOMO",
		"amount":      "100.00",
	})
	require.Equal(t, http.StatusCreated, code, body)
	paymentID := idField(t, body)

	code, body = doJSON(t, engine, http.MethodPost, "/api/payments/"+paymentID+"/allocations", map[string]any{
		"invoice_id": invoiceID,
		"amount":     "100.01",
	})
	require.Equal(t, http.StatusUnprocessableEntity, code, body)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "allocation_exceeds_remaining_payment", errBody["reason"])
	assert.Equal(t, "100.01", errBody["requested"])
	assert.Equal(t, "100.00", errBody["limit"])

	code, body = doJSON(t, engine, http.MethodPost, "/api/payments/"+paymentID+"/allocations", map[string]any{
		"invoice_id": invoiceID,
		"amount":     "100.00",
	})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = doJSON(t, engine, http.MethodGet, "/api/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "PART_PAID", dataField(t, body, "status"))
	assert.Equal(t, "50.01", dataField(t, body, "balance_due"))

	code, body = doJSON(t, engine, http.MethodPost, "/api/payments/"+paymentID+"/receipt", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "SAMDA/RCT/000001", dataField(t, body, "receipt_no"))
	receiptID := idField(t, body)

	code, body = doJSON(t, engine, http.MethodGet, "/api/receipts/"+receiptID, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, dataField(t, body, "allocations"), 1)

	code, body = doJSON(t, engine, http.MethodDelete, "/api/invoices/"+invoiceID, nil)
	assert.Equal(t, http.StatusConflict, code, body)

	code, body = doJSON(t, engine, http.MethodDelete, "/api/customers/"+customerID, nil)
	assert.Equal(t, http.StatusConflict, code, body)

	code, body = doJSON(t, engine, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, dataField(t, body, "outstanding_invoices"), 1)
	assert.Len(t, dataField(t, body, "recent_payments"), 1)

	var issued auditdomain.AuditLog
	require.NoError(t, conn.Where("action = ?", auditdomain.ActionInvoiceIssued).Take(&issued).Error)
	assert.Equal(t, "ama", issued.Actor)
	assert.NotEmpty(t, issued.RequestID)
}

func TestDeleteCustomerIsAudited(t *testing.T) {
	engine, conn := newTestServer(t)

	code, body := doJSON(t, engine, http.MethodPost, "/api/customers", map[string]any{
		"name": "Esi Provisions",
		"tin":  "C0009876543",
	})
	require.Equal(t, http.StatusCreated, code, body)
	customerID := idField(t, body)

	code, _ = doJSON(t, engine, http.MethodDelete, "/api/customers/"+customerID, nil)
	require.Equal(t, http.StatusNoContent, code)

	code, _ = doJSON(t, engine, http.MethodGet, "/api/customers/"+customerID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	var entry auditdomain.AuditLog
	require.NoError(t, conn.Where("action = ?", auditdomain.ActionCustomerDeleted).Take(&entry).Error)
	assert.Equal(t, customerID, entry.ObjectID)
	assert.Equal(t, "****6543", entry.Metadata["tin"])
}

func TestValidationErrorsAreBadRequest(t *testing.T) {
	engine, _ := newTestServer(t)

	code, body := doJSON(t, engine, http.MethodPost, "/api/payments", map[string]any{
		"payer_name": "Kofi",
		"method":     "CARD",
		"amount":     "10",
	})
	require.Equal(t, http.StatusBadRequest, code)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "validation_error", errBody["type"])
	errs := errBody["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "method", errs[0].(map[string]any)["field"])

	code, _ = doJSON(t, engine, http.MethodGet, "/api/invoices/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, engine, http.MethodGet, "/api/tax-profiles/active", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
