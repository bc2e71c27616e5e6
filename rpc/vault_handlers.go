package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"stablevault/native/vault"
	"stablevault/observability/metrics"
)

type depositParams struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type withdrawParams struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type balanceParams struct {
	User  string `json:"user"`
	Asset string `json:"asset"`
}

type setOracleParams struct {
	Feed string `json:"feed"`
}

type setCeilingParams struct {
	Value string `json:"value"`
}

type operationResult struct {
	Status string `json:"status"`
}

type balanceResult struct {
	User    string `json:"user"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

type totalHeldResult struct {
	TotalHeldValue string `json:"totalHeldValue"`
	TotalDeposits  string `json:"totalDeposits"`
	DepositCount   uint64 `json:"depositCount"`
	WithdrawalCnt  uint64 `json:"withdrawalCount"`
}

type limitsResult struct {
	GlobalDepositCeiling string `json:"globalDepositCeiling,omitempty"`
	BankCapitalCeiling   string `json:"bankCapitalCeiling,omitempty"`
	PerWithdrawalCeiling string `json:"perWithdrawalCeiling,omitempty"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params depositParams
	if !decodeParams(w, req, &params) {
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Deposit(r.Context(), user, vault.Asset(params.Asset), amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if agg, err := s.engine.Aggregates(); err == nil {
		metrics.Vault().SetLifetimeDeposits(agg.TotalDeposits)
	}
	writeResult(w, req.ID, operationResult{Status: "settled"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params withdrawParams
	if !decodeParams(w, req, &params) {
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Withdraw(r.Context(), user, vault.Asset(params.Asset), amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, operationResult{Status: "settled"})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params balanceParams
	if !decodeParams(w, req, &params) {
		return
	}
	user, err := parseAddress(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.engine.BalanceOf(user, vault.Asset(params.Asset))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{
		User:    strings.ToLower(params.User),
		Asset:   strings.ToUpper(strings.TrimSpace(params.Asset)),
		Balance: balance.String(),
	})
}

func (s *Server) handleTotalHeldValue(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	held, err := s.engine.TotalHeldValue(r.Context())
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	agg, err := s.engine.Aggregates()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, totalHeldResult{
		TotalHeldValue: held.String(),
		TotalDeposits:  agg.TotalDeposits.String(),
		DepositCount:   agg.DepositCount,
		WithdrawalCnt:  agg.WithdrawalCount,
	})
}

func (s *Server) handleLimits(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	limits := s.engine.Limits()
	result := limitsResult{}
	if limits.GlobalDepositCeiling != nil {
		result.GlobalDepositCeiling = limits.GlobalDepositCeiling.String()
	}
	if limits.BankCapitalCeiling != nil {
		result.BankCapitalCeiling = limits.BankCapitalCeiling.String()
	}
	if limits.PerWithdrawalCeiling != nil {
		result.PerWithdrawalCeiling = limits.PerWithdrawalCeiling.String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleSetOracle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setOracleParams
	if !decodeParams(w, req, &params) {
		return
	}
	if s.oracleFactory == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "oracle replacement not supported", nil)
		return
	}
	if _, err := parseAddress(params.Feed); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	oracle, err := s.oracleFactory(params.Feed)
	if err != nil {
		writeError(w, http.StatusBadGateway, req.ID, codeServerError, "failed to bind price feed", err.Error())
		return
	}
	if err := s.engine.SetOracle(s.admin, oracle, params.Feed); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, operationResult{Status: "updated"})
}

func (s *Server) handleSetGlobalDepositCeiling(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleSetCeiling(w, req, s.engine.SetGlobalDepositCeiling)
}

func (s *Server) handleSetBankCapitalCeiling(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleSetCeiling(w, req, s.engine.SetBankCapitalCeiling)
}

func (s *Server) handleSetCeiling(w http.ResponseWriter, req *RPCRequest, apply func([20]byte, *big.Int) error) {
	var params setCeilingParams
	if !decodeParams(w, req, &params) {
		return
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(params.Value), 10)
	if !ok || value.Sign() < 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "value must be a non-negative decimal string", nil)
		return
	}
	if err := apply(s.admin, value); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, operationResult{Status: "updated"})
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single params object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params object", err.Error())
		return false
	}
	return true
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "0x") {
		return addr, fmt.Errorf("address must be 0x-prefixed")
	}
	raw, err := hex.DecodeString(trimmed[2:])
	if err != nil {
		return addr, fmt.Errorf("address must be hex encoded")
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("address must be 20 bytes")
	}
	copy(addr[:], raw)
	return addr, nil
}

func parsePositiveAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a decimal string")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// rejectionReason labels a refused operation for the rejection counter.
// Settlement failures are counted separately; an empty string means the error
// is not a vault admission outcome.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, vault.ErrGlobalLimitExceeded):
		return "global_deposit"
	case errors.Is(err, vault.ErrBankCapitalExceeded):
		return "bank_capital"
	case errors.Is(err, vault.ErrPerTxLimitExceeded):
		return "per_transaction"
	case errors.Is(err, vault.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, vault.ErrOracleCompromised):
		return "oracle_compromised"
	case errors.Is(err, vault.ErrOracleStale):
		return "oracle_stale"
	case errors.Is(err, vault.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, vault.ErrUnsupportedAsset):
		return "unsupported_asset"
	case errors.Is(err, vault.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, vault.ErrReentrantCall):
		return "busy"
	}
	return ""
}

// writeEngineError maps vault sentinels onto HTTP statuses and JSON-RPC codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	if errors.Is(err, vault.ErrSettlementFailed) {
		metrics.Vault().ObserveSettlementFailure()
	} else if reason := rejectionReason(err); reason != "" {
		metrics.Vault().ObserveRejection(reason)
	}
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, vault.ErrReentrantCall):
		writeError(w, http.StatusConflict, id, codeBusy, err.Error(), nil)
	case errors.Is(err, vault.ErrZeroAmount), errors.Is(err, vault.ErrUnsupportedAsset):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, vault.ErrGlobalLimitExceeded),
		errors.Is(err, vault.ErrBankCapitalExceeded),
		errors.Is(err, vault.ErrPerTxLimitExceeded),
		errors.Is(err, vault.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, id, codeLimitExceeded, err.Error(), nil)
	case errors.Is(err, vault.ErrOracleCompromised), errors.Is(err, vault.ErrOracleStale):
		writeError(w, http.StatusServiceUnavailable, id, codeServerError, err.Error(), nil)
	case errors.Is(err, vault.ErrSettlementFailed):
		writeError(w, http.StatusBadGateway, id, codeServerError, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}
