package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/provider"
	"github.com/wallet-portfolio/internal/service"
	"github.com/wallet-portfolio/internal/storage"
	"github.com/wallet-portfolio/internal/types"
)

var errStoreDown = apperrors.NewUnavailableError("postgres", errors.New("dial tcp 127.0.0.1:5432: connection refused"))

// Mock services for testing
type mockUserService struct {
	err       error
	linked    map[string][]string
	deleted   []string
	unlinked  []string
	registers []string
}

func newMockUserService() *mockUserService {
	return &mockUserService{linked: make(map[string][]string)}
}

func (m *mockUserService) RegisterUser(ctx context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	if strings.TrimSpace(userID) == "" {
		return apperrors.NewInvalidParameterError("userId", "must not be empty")
	}
	m.registers = append(m.registers, userID)
	return nil
}

func (m *mockUserService) DeleteUser(ctx context.Context, userID string) error {
	m.deleted = append(m.deleted, userID)
	return m.err
}

func (m *mockUserService) ListUsers(ctx context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.registers, nil
}

func (m *mockUserService) LinkAddress(ctx context.Context, userID, address string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if types.DetectChainFamily(address) == types.FamilyUnknown {
		return "", apperrors.NewInvalidAddressError(address)
	}
	norm := types.NormalizeAddress(address)
	m.linked[userID] = append(m.linked[userID], norm)
	return norm, nil
}

func (m *mockUserService) UnlinkAddress(ctx context.Context, userID, address string) error {
	m.unlinked = append(m.unlinked, userID+"/"+address)
	return m.err
}

func (m *mockUserService) ListAddresses(ctx context.Context, userID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.linked[userID], nil
}

type mockPortfolioService struct {
	err        error
	lastFilter models.TokenFilter
	lastNames  []string
	lastLimit  int
	excludes   bool
}

func (m *mockPortfolioService) Recompute(ctx context.Context, userID string) (*storage.RecomputeResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &storage.RecomputeResult{Removed: 1, Upserted: 2}, nil
}

func (m *mockPortfolioService) ChainBreakdown(ctx context.Context, userID string) ([]models.ChainBreakdownRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []models.ChainBreakdownRow{{
		WalletAddress:    "0xaaa",
		ChainID:          "eth",
		ReportedUSDValue: decimal.NewNullDecimal(decimal.RequireFromString("3000")),
		ComputedUSDValue: decimal.RequireFromString("3010"),
		Difference:       decimal.RequireFromString("-10"),
	}}, nil
}

func (m *mockPortfolioService) TokenBreakdown(ctx context.Context, userID string, filter models.TokenFilter) ([]models.TokenBreakdownRow, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return nil, nil
}

func (m *mockPortfolioService) TokenNames(ctx context.Context, userID string, excludeSpam bool) ([]string, error) {
	m.excludes = excludeSpam
	return []string{"ETH"}, m.err
}

func (m *mockPortfolioService) SpamTokens(ctx context.Context, userID string) ([]string, error) {
	return nil, m.err
}

func (m *mockPortfolioService) SetSpamTokens(ctx context.Context, userID string, names []string) ([]string, error) {
	m.lastNames = names
	for _, n := range names {
		if n == "UNKNOWN" {
			return nil, apperrors.NewValidationFailedError("set spam tokens", errors.New("unknown token name"))
		}
	}
	return names, m.err
}

func (m *mockPortfolioService) WalletChainTotals(ctx context.Context, userID, address string) ([]models.WalletChainTotal, error) {
	return []models.WalletChainTotal{{Chain: "eth", TotalUSDValue: decimal.NewFromInt(5), TokenCount: 1}}, m.err
}

func (m *mockPortfolioService) DumpTable(ctx context.Context, table string, limit int) (*models.TableDump, error) {
	m.lastLimit = limit
	if _, ok := types.ParseTable(table); !ok {
		return nil, apperrors.NewInvalidParameterError("table", "unknown table "+table)
	}
	return &models.TableDump{Table: table, Columns: []string{"id"}}, nil
}

func (m *mockPortfolioService) History(ctx context.Context, userID string, limit int) ([]storage.SnapshotTotal, error) {
	m.lastLimit = limit
	return []storage.SnapshotTotal{}, m.err
}

type mockRefreshService struct {
	payloads *provider.Payloads
	err      error
}

func (m *mockRefreshService) RefreshWallet(ctx context.Context, address string, payloads *provider.Payloads) (*service.RefreshResult, error) {
	m.payloads = payloads
	if m.err != nil {
		return nil, m.err
	}
	return &service.RefreshResult{
		Address: address,
		Family:  types.FamilyEVM,
		Entities: map[string]*service.EntityCount{
			service.EntityWallet: {Written: 1},
			service.EntityToken:  {Written: 2, Failed: 1},
		},
	}, nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

type testServer struct {
	*Server
	users     *mockUserService
	portfolio *mockPortfolioService
	refresh   *mockRefreshService
	pinger    *mockPinger
}

// Helper function to create test server
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		users:     newMockUserService(),
		portfolio: &mockPortfolioService{},
		refresh:   &mockRefreshService{},
		pinger:    &mockPinger{},
	}
	ts.Server = NewServer(&ServerConfig{
		Host:              "localhost",
		Port:              "0",
		RequestsPerSecond: 1000,
		Burst:             1000,
	}, ts.users, ts.portfolio, ts.refresh, ts.pinger)
	return ts
}

func (ts *testServer) do(method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	ts.pinger.err = errors.New("connection refused")
	rec = ts.do("GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do("GET", "/api/users", "")

	rec := ts.do("GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wallet_portfolio_http_requests_total")
}

func TestUserRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/users", `{"userId": "alice"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do("POST", "/api/users", `{"userId": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidParameter, errorCode(t, rec))

	rec = ts.do("POST", "/api/users", `{"email": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = ts.do("GET", "/api/users", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"alice"}, decodeBody(t, rec)["users"])

	rec = ts.do("DELETE", "/api/users/alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"alice"}, ts.users.deleted)
}

func TestAddressRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/users/alice/addresses", `{"address": "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "0x742d35cc6634c0532925a3b844bc454e4438f44e", decodeBody(t, rec)["address"])

	rec = ts.do("POST", "/api/users/alice/addresses", `{"address": "not-an-address"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidAddress, errorCode(t, rec))

	rec = ts.do("GET", "/api/users/alice/addresses", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["addresses"], 1)

	rec = ts.do("GET", "/api/users/nobody/addresses", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["addresses"])

	rec = ts.do("DELETE", "/api/users/alice/addresses/0xabc", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"alice/0xabc"}, ts.users.unlinked)
}

func TestStoreUnavailableIs503(t *testing.T) {
	ts := newTestServer(t)
	ts.users.err = errStoreDown
	ts.portfolio.err = errStoreDown

	for _, path := range []string{"/api/users", "/api/users/alice/addresses", "/api/users/alice/chains"} {
		rec := ts.do("GET", path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, apperrors.CodeServiceUnavailable, errorCode(t, rec), path)
	}

	rec := ts.do("POST", "/api/users/alice/recompute", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDatabaseErrorIsHidden(t *testing.T) {
	ts := newTestServer(t)
	ts.portfolio.err = apperrors.NewDatabaseError("recompute", errors.New("syntax error at or near SELECT"))

	rec := ts.do("POST", "/api/users/alice/recompute", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "syntax error")
}

func TestPortfolioRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("POST", "/api/users/alice/recompute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["upserted"])

	rec = ts.do("GET", "/api/users/alice/chains", "")
	require.Equal(t, http.StatusOK, rec.Code)
	chains := decodeBody(t, rec)["chains"].([]interface{})
	require.Len(t, chains, 1)
	assert.Equal(t, "-10", chains[0].(map[string]interface{})["difference"])

	rec = ts.do("GET", "/api/users/alice/tokens?spam=exclude&minUsd=0.5&chain=eth&wallet=0xabc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["tokens"])
	assert.True(t, ts.portfolio.lastFilter.ExcludeSpam)
	assert.Equal(t, "0.5", ts.portfolio.lastFilter.MinUSD.Decimal.String())
	assert.Equal(t, "eth", ts.portfolio.lastFilter.Chain)
	assert.Equal(t, "0xabc", ts.portfolio.lastFilter.Wallet)

	rec = ts.do("GET", "/api/users/alice/tokens?minUsd=lots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("GET", "/api/users/alice/tokens?spam=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("GET", "/api/users/alice/tokens/names?spam=exclude", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.portfolio.excludes)

	rec = ts.do("GET", "/api/users/alice/wallets/0xabc/chains", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do("GET", "/api/users/alice/history?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ts.portfolio.lastLimit)

	rec = ts.do("GET", "/api/users/alice/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpamTokenRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/users/alice/spam-tokens", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["tokens"])

	rec = ts.do("PUT", "/api/users/alice/spam-tokens", `{"tokens": ["SCAM"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"SCAM"}, ts.portfolio.lastNames)

	rec = ts.do("PUT", "/api/users/alice/spam-tokens", `{"tokens": ["UNKNOWN"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperrors.CodeValidationFailed, errorCode(t, rec))
}

func TestRefreshWalletRoute(t *testing.T) {
	ts := newTestServer(t)

	body := `{
		"totalBalance": {"total_usd_value": 10, "chain_list": []},
		"tokens": [{"id": "eth", "chain": "eth", "amount": "1"}],
		"bitcoin": null
	}`
	rec := ts.do("POST", "/api/wallets/0xabc/refresh", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.Equal(t, float64(3), out["written"])
	assert.Equal(t, float64(1), out["failed"])

	require.NotNil(t, ts.refresh.payloads)
	assert.NotNil(t, ts.refresh.payloads.TotalBalance)
	assert.Len(t, ts.refresh.payloads.Tokens.Items, 1)
	assert.Nil(t, ts.refresh.payloads.Bitcoin)

	rec = ts.do("POST", "/api/wallets/0xabc/refresh", `{"tokens": {"not": "a list"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeMalformedPayload, errorCode(t, rec))

	rec = ts.do("POST", "/api/wallets/0xabc/refresh", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDumpTableRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/admin/tables/tokens", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tokens", decodeBody(t, rec)["table"])
	assert.Equal(t, defaultDumpLimit, ts.portfolio.lastLimit)

	rec = ts.do("GET", "/api/admin/tables/tokens?limit=999999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxListLimit, ts.portfolio.lastLimit)

	rec = ts.do("GET", "/api/admin/tables/pg_shadow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.Server = NewServer(&ServerConfig{RequestsPerSecond: 0.001, Burst: 2}, ts.users, ts.portfolio, ts.refresh, nil)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, ts.do("GET", "/api/users", "").Code)
	}
	rec := ts.do("GET", "/api/users", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, apperrors.CodeRateLimitExceeded, errorCode(t, rec))

	// health checks are never limited
	assert.Equal(t, http.StatusOK, ts.do("GET", "/health", "").Code)
}

func TestCompression(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}
