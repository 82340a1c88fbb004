package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"curvemint/core/events"
	"curvemint/crypto"
	"curvemint/native/issuance"
	"curvemint/native/token"
	"curvemint/state"
	"curvemint/storage"
)

const testTokenEnv = "CURVEMINT_RPC_TOKEN_TEST"

type testHarness struct {
	server   *Server
	handler  http.Handler
	ledger   *token.Ledger
	engine   *issuance.Engine
	deployer [20]byte
	buyer    [20]byte
	admin    [20]byte
}

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func encodeAddr(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.CVMPrefix, addr[:]).String()
}

// newTestHarness wires a full engine with a linear curve: supply 1000 to the
// deployer and a tracked reserve of 400, so a 100 deposit mints 200 tokens.
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	t.Setenv(testTokenEnv, "secret-token")

	manager := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger(manager)
	audit := issuance.NewAuditLedger(manager)

	h := &testHarness{
		ledger:   ledger,
		deployer: testAddr(0x01),
		buyer:    testAddr(0x02),
		admin:    testAddr(0x04),
	}

	engine := issuance.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(ledger)
	engine.SetPool(issuance.NewAccountPool(ledger, testAddr(0xFF)))
	engine.SetEmitter(events.Fanout{issuance.NewRecorder(audit, nil)})
	engine.SetAdmin(h.admin)
	engine.SetFounder(testAddr(0x03))
	if err := engine.SetReserveRatio(1_000_000); err != nil {
		t.Fatalf("set ratio: %v", err)
	}
	if err := engine.Initialise(h.deployer, big.NewInt(1_000), big.NewInt(400)); err != nil {
		t.Fatalf("initialise: %v", err)
	}
	h.engine = engine

	h.server = NewServer(engine, ledger, audit, TokenInfo{Name: "Curvemint Token", Symbol: "CVM"}, testTokenEnv, nil)
	h.handler = h.server.Router()
	return h
}

func (h *testHarness) call(t *testing.T, method string, params []interface{}, bearer string) (*RPCResponse, int) {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal param: %v", err)
		}
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	resp := &RPCResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp, rec.Code
}

func resultMap(t *testing.T, resp *RPCResponse) map[string]interface{} {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	out, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	return out
}

func TestRPCBuyAndInfo(t *testing.T) {
	h := newTestHarness(t)
	if err := h.ledger.CreditReserve(h.buyer, big.NewInt(100)); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}

	resp, status := h.call(t, "curve_buy", []interface{}{curveBuyParams{
		Buyer:   encodeAddr(h.buyer),
		Deposit: "100",
	}}, "")
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	result := resultMap(t, resp)
	if result["totalMinted"] != "200" {
		t.Fatalf("unexpected totalMinted %v", result["totalMinted"])
	}
	if result["buyerShare"] != "180" || result["founderShare"] != "20" {
		t.Fatalf("unexpected split %v / %v", result["buyerShare"], result["founderShare"])
	}

	resp, _ = h.call(t, "curve_info", nil, "")
	info := resultMap(t, resp)
	if info["totalSupply"] != "1200" {
		t.Fatalf("unexpected supply %v", info["totalSupply"])
	}
	if info["reserveBalance"] != "500" {
		t.Fatalf("unexpected reserve %v", info["reserveBalance"])
	}
	if info["symbol"] != "CVM" {
		t.Fatalf("unexpected symbol %v", info["symbol"])
	}
}

func TestRPCEstimateBuy(t *testing.T) {
	h := newTestHarness(t)
	resp, _ := h.call(t, "curve_estimateBuy", []interface{}{curveEstimateParams{Deposit: "100"}}, "")
	result := resultMap(t, resp)
	if result["totalMinted"] != "200" {
		t.Fatalf("unexpected estimate %v", result["totalMinted"])
	}
	resp, _ = h.call(t, "curve_info", nil, "")
	info := resultMap(t, resp)
	if info["totalSupply"] != "1000" {
		t.Fatalf("estimate mutated supply: %v", info["totalSupply"])
	}
}

func TestRPCBalance(t *testing.T) {
	h := newTestHarness(t)
	resp, _ := h.call(t, "curve_balance", []interface{}{curveBalanceParams{Address: encodeAddr(h.deployer)}}, "")
	result := resultMap(t, resp)
	if result["balanceToken"] != "1000" {
		t.Fatalf("unexpected token balance %v", result["balanceToken"])
	}
	if result["balanceReserve"] != "0" {
		t.Fatalf("unexpected reserve balance %v", result["balanceReserve"])
	}
}

func TestRPCBuyInsufficientFunds(t *testing.T) {
	h := newTestHarness(t)
	resp, status := h.call(t, "curve_buy", []interface{}{curveBuyParams{
		Buyer:   encodeAddr(h.buyer),
		Deposit: "100",
	}}, "")
	if status != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", status)
	}
	if resp.Error == nil || resp.Error.Code != codeInsufficientBalance {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
}

func TestRPCSellInvalidAmount(t *testing.T) {
	h := newTestHarness(t)
	resp, _ := h.call(t, "curve_sell", []interface{}{curveSellParams{
		Seller: encodeAddr(h.deployer),
		Amount: "0",
	}}, "")
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
}

func TestRPCSetFounderPercentageAuth(t *testing.T) {
	h := newTestHarness(t)
	params := []interface{}{curveSetFounderParams{Caller: encodeAddr(h.admin), Percentage: 25}}

	resp, status := h.call(t, "curve_setFounderPercentage", params, "")
	if status != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("missing token must be rejected: status=%d err=%+v", status, resp.Error)
	}

	resp, status = h.call(t, "curve_setFounderPercentage", params, "wrong-token")
	if status != http.StatusUnauthorized || resp.Error == nil {
		t.Fatalf("bad token must be rejected: status=%d err=%+v", status, resp.Error)
	}

	resp, status = h.call(t, "curve_setFounderPercentage", params, "secret-token")
	if status != http.StatusOK {
		t.Fatalf("valid token rejected: status=%d err=%+v", status, resp.Error)
	}
	result := resultMap(t, resp)
	if result["founderPercentage"] != float64(25) {
		t.Fatalf("unexpected percentage %v", result["founderPercentage"])
	}

	// Bearer token alone is not enough: the caller must still be the admin.
	resp, status = h.call(t, "curve_setFounderPercentage", []interface{}{
		curveSetFounderParams{Caller: encodeAddr(h.buyer), Percentage: 30},
	}, "secret-token")
	if status != http.StatusForbidden || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("non-admin caller must be rejected: status=%d err=%+v", status, resp.Error)
	}
}

func TestRPCListMintsAfterTrades(t *testing.T) {
	h := newTestHarness(t)
	if err := h.ledger.CreditReserve(h.buyer, big.NewInt(100)); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}
	if resp, _ := h.call(t, "curve_buy", []interface{}{curveBuyParams{
		Buyer:   encodeAddr(h.buyer),
		Deposit: "100",
	}}, ""); resp.Error != nil {
		t.Fatalf("buy failed: %+v", resp.Error)
	}

	resp, _ := h.call(t, "curve_listMints", []interface{}{0, 0}, "")
	result := resultMap(t, resp)
	trades, ok := result["trades"].([]interface{})
	if !ok || len(trades) != 1 {
		t.Fatalf("expected one trade, got %v", result["trades"])
	}
	trade, ok := trades[0].(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected trade type %T", trades[0])
	}
	if trade["kind"] != "mint" || trade["tokens"] != "200" {
		t.Fatalf("unexpected trade %v", trade)
	}
}

func TestRPCUnknownMethod(t *testing.T) {
	h := newTestHarness(t)
	resp, status := h.call(t, "curve_unknown", nil, "")
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unexpected response: status=%d err=%+v", status, resp.Error)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}
