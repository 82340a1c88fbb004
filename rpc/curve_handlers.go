package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"curvemint/crypto"
	"curvemint/native/issuance"
)

type curveBuyParams struct {
	Buyer   string `json:"buyer"`
	Deposit string `json:"deposit"`
}

type curveSellParams struct {
	Seller string `json:"seller"`
	Amount string `json:"amount"`
}

type curveEstimateParams struct {
	Deposit string `json:"deposit"`
}

type curveBalanceParams struct {
	Address string `json:"address"`
}

type curveSetFounderParams struct {
	Caller     string `json:"caller"`
	Percentage uint64 `json:"percentage"`
}

type curveMintResult struct {
	Deposited    string `json:"deposited"`
	TotalMinted  string `json:"totalMinted"`
	BuyerShare   string `json:"buyerShare"`
	FounderShare string `json:"founderShare"`
}

type curveBurnResult struct {
	Burned     string `json:"burned"`
	Reimbursed string `json:"reimbursed"`
}

type curveInfoResult struct {
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	TotalSupply       string `json:"totalSupply"`
	InitialSupply     string `json:"initialSupply"`
	ReserveBalance    string `json:"reserveBalance"`
	ReserveRatioPpm   uint32 `json:"reserveRatioPpm"`
	FounderPercentage uint64 `json:"founderPercentage"`
}

type curveBalanceResult struct {
	Address        string `json:"address"`
	BalanceToken   string `json:"balanceToken"`
	BalanceReserve string `json:"balanceReserve"`
}

type curveReserveResult struct {
	ReserveBalance string `json:"reserveBalance"`
	VaultHeld      string `json:"vaultHeld"`
}

type curveTradeResult struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Account      string `json:"account"`
	Reserve      string `json:"reserve"`
	Tokens       string `json:"tokens"`
	BuyerShare   string `json:"buyerShare,omitempty"`
	FounderShare string `json:"founderShare,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

func formatMintResult(result *issuance.MintResult) curveMintResult {
	return curveMintResult{
		Deposited:    bigString(result.Deposited),
		TotalMinted:  bigString(result.TotalMinted),
		BuyerShare:   bigString(result.BuyerShare),
		FounderShare: bigString(result.FounderShare),
	}
}

func formatTradeRecord(record *issuance.TradeRecord) curveTradeResult {
	out := curveTradeResult{
		ID:        record.ID,
		Kind:      record.Kind,
		Account:   crypto.MustNewAddress(crypto.CVMPrefix, record.Account[:]).String(),
		Reserve:   bigString(record.Reserve),
		Tokens:    bigString(record.Tokens),
		CreatedAt: record.CreatedAt,
	}
	if record.Kind == issuance.TradeKindMint {
		out.BuyerShare = bigString(record.BuyerShare)
		out.FounderShare = bigString(record.FounderShare)
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAddress(raw string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return out, err
	}
	return decoded.Array(), nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

func singleObjectParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single parameter object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params curveBuyParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buy parameters", err.Error())
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	deposit, err := parseAmount(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid deposit", err.Error())
		return
	}
	result, err := s.engine.Buy(buyer, deposit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatMintResult(result))
}

func (s *Server) handleSell(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params curveSellParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid sell parameters", err.Error())
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	result, err := s.engine.Sell(seller, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, curveBurnResult{
		Burned:     bigString(result.Burned),
		Reimbursed: bigString(result.Reimbursed),
	})
}

func (s *Server) handleEstimateBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params curveEstimateParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid estimate parameters", err.Error())
		return
	}
	deposit, err := parseAmount(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid deposit", err.Error())
		return
	}
	result, err := s.engine.EstimateBuyReturn(deposit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatMintResult(result))
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	supply, err := s.ledger.TotalSupply()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load supply", err.Error())
		return
	}
	initial, err := s.engine.InitialSupply()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load initial supply", err.Error())
		return
	}
	reserve, err := s.engine.ReserveBalance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load reserve", err.Error())
		return
	}
	pct, err := s.engine.FounderPercentage()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load founder percentage", err.Error())
		return
	}
	writeResult(w, req.ID, curveInfoResult{
		Name:              s.info.Name,
		Symbol:            s.info.Symbol,
		TotalSupply:       bigString(supply),
		InitialSupply:     bigString(initial),
		ReserveBalance:    bigString(reserve),
		ReserveRatioPpm:   s.engine.ReserveRatio(),
		FounderPercentage: pct,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params curveBalanceParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid balance parameters", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	tokens, err := s.ledger.BalanceOf(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load balance", err.Error())
		return
	}
	reserve, err := s.ledger.ReserveBalanceOf(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load reserve balance", err.Error())
		return
	}
	writeResult(w, req.ID, curveBalanceResult{
		Address:        strings.TrimSpace(params.Address),
		BalanceToken:   bigString(tokens),
		BalanceReserve: bigString(reserve),
	})
}

func (s *Server) handleReserve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	reserve, err := s.engine.ReserveBalance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load reserve", err.Error())
		return
	}
	held, err := s.engine.ReserveAssetHeld()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load vault balance", err.Error())
		return
	}
	writeResult(w, req.ID, curveReserveResult{
		ReserveBalance: bigString(reserve),
		VaultHeld:      bigString(held),
	})
}

func (s *Server) handleListMints(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 2 || len(req.Params) > 4 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected startTs, endTs, [cursor], [limit]", nil)
		return
	}
	var startTs, endTs int64
	if err := json.Unmarshal(req.Params[0], &startTs); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid startTs", err.Error())
		return
	}
	if err := json.Unmarshal(req.Params[1], &endTs); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid endTs", err.Error())
		return
	}
	cursor := ""
	if len(req.Params) >= 3 {
		if err := json.Unmarshal(req.Params[2], &cursor); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid cursor", err.Error())
			return
		}
		cursor = strings.TrimSpace(cursor)
	}
	limit := 50
	if len(req.Params) == 4 {
		var limit64 int64
		if err := json.Unmarshal(req.Params[3], &limit64); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid limit", err.Error())
			return
		}
		if limit64 > 0 {
			limit = int(limit64)
		}
	}
	records, nextCursor, err := s.audit.List(startTs, endTs, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to list trades", err.Error())
		return
	}
	formatted := make([]curveTradeResult, 0, len(records))
	for _, record := range records {
		formatted = append(formatted, formatTradeRecord(record))
	}
	writeResult(w, req.ID, map[string]interface{}{"trades": formatted, "nextCursor": nextCursor})
}

func (s *Server) handleExportMints(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected startTs and endTs", nil)
		return
	}
	var startTs, endTs int64
	if err := json.Unmarshal(req.Params[0], &startTs); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid startTs", err.Error())
		return
	}
	if err := json.Unmarshal(req.Params[1], &endTs); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid endTs", err.Error())
		return
	}
	csvBase64, count, total, err := s.audit.ExportCSV(startTs, endTs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to export trades", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"csvBase64":   csvBase64,
		"count":       count,
		"totalTokens": bigString(total),
	})
}

func (s *Server) handleSetFounderPercentage(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params curveSetFounderParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.engine.ChangeFounderPercentage(caller, params.Percentage); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"founderPercentage": params.Percentage,
	})
}
