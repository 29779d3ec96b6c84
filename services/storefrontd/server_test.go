package storefrontd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"storefront/config"
	"storefront/core/events"
	"storefront/observability/metrics"
	"storefront/storage"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	adminHex   = "0x00000000000000000000000000000000000000ad"
	buyerHex   = "0x0000000000000000000000000000000000000002"
	otherHex   = "0x0000000000000000000000000000000000000003"
)

const testGenesis = `
Vault = "0x00000000000000000000000000000000000000fa"
Treasury = "0x000000000000000000000000000000000000007e"
LockHorizonSeconds = 3600

[Roles]
Admins = ["0x00000000000000000000000000000000000000ad"]

[[Tiers]]
ID = 1
Price = "1000000000000000000"
MaxSupply = 20
MaxPerTx = 2
MaxPerWallet = 5

[[Promos]]
Code = "abc"
Tier = 1
Referrer = "0x0000000000000000000000000000000000000001"
DiscountPct = 10
CommissionPct = 50
MaxPerWallet = 10

[[Balances]]
Account = "0x0000000000000000000000000000000000000002"
Amount = "5000000000000000000"
`

type testEnv struct {
	t       *testing.T
	server  *httptest.Server
	node    *Node
	auth    *Authenticator
	indexer *Indexer
	metrics *metrics.StorefrontMetrics
	limiter *RateLimiter
}

func newTestEnv(t *testing.T, limit RateLimitConfig) *testEnv {
	t.Helper()
	genesis, err := config.Parse(testGenesis)
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	indexer, err := OpenIndexer(IndexerConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = indexer.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewStorefrontMetrics(reg)
	node, err := NewNode(storage.NewMemDB(), genesis, events.MultiEmitter{m.Emitter(), indexer})
	require.NoError(t, err)

	idem, err := OpenIdempotencyStore(filepath.Join(t.TempDir(), "idem.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idem.Close() })

	auth, err := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "storefront", MaxSkew: Duration{time.Minute}})
	require.NoError(t, err)

	limiter := NewRateLimiter(limit)
	srv, err := NewServer(ServerConfig{
		Node:        node,
		Auth:        auth,
		Idempotency: idem,
		Limiter:     limiter,
		Indexer:     indexer,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{t: t, server: ts, node: node, auth: auth, indexer: indexer, metrics: m, limiter: limiter}
}

func (e *testEnv) token(subject string) string {
	e.t.Helper()
	tok, err := e.auth.Issue(subject, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, subject string, body any, headers ...string) (int, map[string]any, http.Header) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(e.t, err)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(subject))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(e.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out, resp.Header
}

func (e *testEnv) startSale() {
	e.t.Helper()
	status, body, _ := e.do(http.MethodPost, "/v1/tiers/1/sale", adminHex, map[string]any{
		"start":     0,
		"end":       time.Now().Add(24 * time.Hour).Unix(),
		"maxSupply": 20,
	})
	require.Equal(e.t, http.StatusOK, status, body)
	require.Equal(e.t, true, body["active"])
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, RateLimitConfig{})
	status, body, _ := env.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(raw), "storefront_api_requests_total")
}

func TestMintFlow(t *testing.T) {
	env := newTestEnv(t, RateLimitConfig{})
	env.startSale()

	status, body, _ := env.do(http.MethodPost, "/v1/mint", buyerHex, map[string]any{
		"tiers":      []uint64{1},
		"quantities": []uint64{2},
		"payment":    "3000000000000000000",
	})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "2000000000000000000", body["total"])
	require.Equal(t, "1000000000000000000", body["refund"])
	require.NotEmpty(t, body["receiptId"])
	lines := body["lines"].([]any)
	require.Len(t, lines, 1)
	ids := lines[0].(map[string]any)["tokenIds"].([]any)
	require.Equal(t, []any{float64(101), float64(201)}, ids)

	bal, err := env.node.Balance([20]byte{19: 0x02})
	require.NoError(t, err)
	require.Equal(t, "3000000000000000000", bal)

	status, body, _ = env.do(http.MethodGet, "/v1/accounts/"+buyerHex+"/tiers/1/tokens", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(2), body["balance"])

	status, body, _ = env.do(http.MethodGet, "/v1/tiers/1/tokens/1", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(101), body["tokenId"])

	status, body, _ = env.do(http.MethodGet, "/v1/tiers/1/tokens/3", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(301), body["tokenId"])

	status, body, _ = env.do(http.MethodGet, "/v1/tiers/1/tokens/0", "", nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_INDEX", body["error"])

	status, body, _ = env.do(http.MethodGet, "/v1/revenue", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "2000000000000000000", body["totalCollected"])
	require.Equal(t, "2000000000000000000", body["treasuryBalance"])

	status, body, _ = env.do(http.MethodPost, "/v1/revenue/withdraw", adminHex, nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "2000000000000000000", body["amount"])

	records, err := env.indexer.Mints(MintFilter{Account: buyerHex})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "sale", records[0].Source)
	withdrawals, err := env.indexer.Withdrawals(0)
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	require.Equal(t, "treasury", withdrawals[0].Kind)

	resp, err := http.Get(env.server.URL + "/v1/history/mints?account=" + buyerHex)
	require.NoError(t, err)
	defer resp.Body.Close()
	var history []MintRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 1)
	require.Equal(t, uint64(2), history[0].Quantity)
}

func TestPromoMintThroughPhase(t *testing.T) {
	env := newTestEnv(t, RateLimitConfig{})
	status, body, _ := env.do(http.MethodPost, "/v1/tiers/1/phases/1", adminHex, map[string]any{
		"kind":         "promo-gated",
		"start":        0,
		"end":          time.Now().Add(time.Hour).Unix(),
		"maxSupply":    10,
		"maxPerWallet": 5,
		"maxPerTx":     2,
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body, _ = env.do(http.MethodPost, "/v1/tiers/1/phases/1/mint", buyerHex, map[string]any{
		"quantity":  1,
		"promoCode": "abc",
	})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "900000000000000000", body["total"])

	status, body, _ = env.do(http.MethodGet, "/v1/revenue", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "450000000000000000", body["commissionBalance"])

	referrer := "0x0000000000000000000000000000000000000001"
	status, body, _ = env.do(http.MethodPost, "/v1/revenue/influencers/"+referrer+"/withdraw", referrer, nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "450000000000000000", body["amount"])
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, RateLimitConfig{})
	mint := map[string]any{"tiers": []uint64{1}, "quantities": []uint64{1}}

	status, body, _ := env.do(http.MethodPost, "/v1/mint", "", mint)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHENTICATED", body["error"])

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/v1/tiers", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	status, body, _ = env.do(http.MethodPost, "/v1/mint", buyerHex, mint)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "SALE_NOT_ACTIVE", body["error"])

	status, body, _ = env.do(http.MethodPost, "/v1/tiers", buyerHex, map[string]any{
		"id": 2, "price": "1", "maxSupply": 10, "maxPerTx": 1, "maxPerWallet": 1,
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "UNAUTHORIZED", body["error"])

	status, body, _ = env.do(http.MethodGet, "/v1/tiers/7", "", nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "TIER_UNAVAILABLE", body["error"])

	status, body, _ = env.do(http.MethodGet, "/v1/tiers/x", "", nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "BAD_REQUEST", body["error"])

	env.startSale()
	status, body, _ = env.do(http.MethodPost, "/v1/mint", buyerHex, map[string]any{"tiers": []uint64{1}, "quantities": []uint64{3}})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "MAX_PER_TX_EXCEEDED", body["error"])

	status, body, _ = env.do(http.MethodPost, "/v1/mint", otherHex, map[string]any{"tiers": []uint64{1}, "quantities": []uint64{1}})
	require.Equal(t, http.StatusPaymentRequired, status)
	require.Equal(t, "INSUFFICIENT_FUND", body["error"])

	status, body, _ = env.do(http.MethodPost, "/v1/mint", buyerHex, map[string]any{"tiers": []uint64{1}, "bogus": true})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "BAD_REQUEST", body["error"])

	status, _, _ = env.do(http.MethodPut, "/v1/pause", adminHex, map[string]any{"paused": true})
	require.Equal(t, http.StatusNoContent, status)
	status, body, _ = env.do(http.MethodPost, "/v1/mint", buyerHex, mint)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "MODULE_PAUSED", body["error"])

	status, body, _ = env.do(http.MethodPost, "/v1/revenue/withdraw", adminHex, nil)
	require.Equal(t, http.StatusPaymentRequired, status)
	require.Equal(t, "ZERO_BALANCE", body["error"])
}

func TestIdempotentMintReplays(t *testing.T) {
	env := newTestEnv(t, RateLimitConfig{})
	env.startSale()
	mint := map[string]any{"tiers": []uint64{1}, "quantities": []uint64{1}}

	status, first, headers := env.do(http.MethodPost, "/v1/mint", buyerHex, mint, "Idempotency-Key", "order-1")
	require.Equal(t, http.StatusOK, status, first)
	require.Empty(t, headers.Get("Idempotent-Replay"))

	status, second, headers := env.do(http.MethodPost, "/v1/mint", buyerHex, mint, "Idempotency-Key", "order-1")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "true", headers.Get("Idempotent-Replay"))
	require.Equal(t, first["receiptId"], second["receiptId"])

	bal, err := env.node.Balance([20]byte{19: 0x02})
	require.NoError(t, err)
	require.Equal(t, "4000000000000000000", bal)

	status, _, _ = env.do(http.MethodPost, "/v1/bulk-mint", buyerHex, map[string]any{}, "Idempotency-Key", "order-1")
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestMintRateLimited(t *testing.T) {
	env := newTestEnv(t, RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	mint := map[string]any{"tiers": []uint64{1}, "quantities": []uint64{1}}

	status, _, _ := env.do(http.MethodPost, "/v1/mint", buyerHex, mint)
	require.Equal(t, http.StatusForbidden, status)
	status, body, _ := env.do(http.MethodPost, "/v1/mint", buyerHex, mint)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, "RATE_LIMITED", body["error"])

	status, _, _ = env.do(http.MethodGet, "/v1/tiers", buyerHex, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestTransferRespectsLock(t *testing.T) {
	env := newTestEnv(t, RateLimitConfig{})
	env.startSale()
	status, body, _ := env.do(http.MethodPost, "/v1/mint", buyerHex, map[string]any{"tiers": []uint64{1}, "quantities": []uint64{1}})
	require.Equal(t, http.StatusOK, status, body)

	status, body, _ = env.do(http.MethodPost, "/v1/tokens/101/transfer", otherHex, map[string]any{"to": otherHex})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "NOT_OWNER", body["error"])

	status, body, _ = env.do(http.MethodPost, "/v1/tokens/101/transfer", buyerHex, map[string]any{"to": otherHex})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "TRANSFER_LOCKED", body["error"])

	status, body, _ = env.do(http.MethodPost, "/v1/tokens/999/transfer", buyerHex, map[string]any{"to": otherHex})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "TOKEN_NOT_FOUND", body["error"])
}
