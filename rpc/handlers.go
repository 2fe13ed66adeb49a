package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rwavault/crypto"
	"rwavault/native/vault"
	"rwavault/observability/logging"
	telemetry "rwavault/observability/otel"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	var (
		overview *vault.Overview
		err      error
	)
	s.withEngine(func() { overview, err = s.engine.Overview() })
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleVaultValue(w http.ResponseWriter, r *http.Request) {
	var (
		value *big.Int
		err   error
	)
	s.withEngine(func() { value, err = s.engine.VaultValue() })
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValueResult{VaultValue: bigString(value)})
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	var (
		ratio   vault.AllocationRatio
		targets *vault.AllocationTargets
		err     error
	)
	s.withEngine(func() {
		ratio, err = s.engine.AllocationRatio()
		if err == nil {
			targets, err = s.engine.AllocationTargets()
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AllocationResult{
		RwaBps:     ratio.RwaBps,
		OnchainBps: ratio.OnchainBps,
		Total:      bigString(targets.Total),
		Rwa:        bigString(targets.Rwa),
		Onchain:    bigString(targets.Onchain),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	result := AccountResult{Address: addr.String()}
	s.withEngine(func() {
		var balance *big.Int
		if balance, err = s.engine.BalanceOf(addr); err != nil {
			return
		}
		result.Balance = bigString(balance)
		if result.Nonce, err = s.engine.Nonce(addr); err != nil {
			return
		}
		var (
			record *vault.ClaimRecord
			ok     bool
		)
		if record, ok, err = s.engine.ClaimRecord(addr); err != nil || !ok {
			return
		}
		result.Claim = &ClaimRecordResult{
			Amount:       bigString(record.Amount),
			DeliveryHash: hex.EncodeToString(record.DeliveryHash[:]),
			CreatedAt:    record.CreatedAt,
			Fulfilled:    record.Fulfilled,
		}
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	var (
		positions []vault.StrategyPosition
		err       error
	)
	s.withEngine(func() { positions, err = s.engine.Strategies() })
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]StrategyResult, 0, len(positions))
	for _, pos := range positions {
		out = append(out, StrategyResult{Address: pos.Strategy.String(), Deployed: bigString(pos.Deployed)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	op, err := vault.ParseOperation(chi.URLParam(r, "operation"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Code: "UnknownOperation", Message: err.Error()})
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("read body: %w", err))
		return
	}
	if len(body) > maxRequestBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Code: "RequestTooLarge", Message: "request body too large"})
		return
	}
	var req OperationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeBadRequest(w, fmt.Errorf("decode body: %w", err))
		return
	}
	call, err := bindOperation(s.engine, op, req)
	if err != nil {
		if vault.KindOf(err) != vault.KindUnknown {
			writeEngineError(w, err)
			return
		}
		writeBadRequest(w, err)
		return
	}
	_, span := telemetry.Tracer().Start(r.Context(), "vault."+string(op), trace.WithAttributes(
		attribute.String("vault.operation", string(op)),
		attribute.String("vault.principal", req.Principal),
	))
	var amount *big.Int
	s.withEngine(func() { amount, err = call() })
	if err != nil {
		span.SetStatus(codes.Error, codeFor(err))
	}
	span.End()
	if err != nil {
		s.logger.Info("operation rejected", "op", string(op), "code", codeFor(err),
			logging.MaskField("signature", req.Authorization.Signature))
		writeEngineError(w, err)
		return
	}
	result := OperationResult{Operation: op}
	if amount != nil {
		result.Amount = amount.String()
	}
	writeJSON(w, http.StatusOK, result)
}

// bindOperation decodes the request fields op needs and returns the engine
// call. Decoding happens outside the engine lock.
func bindOperation(engine *vault.Engine, op vault.Operation, req OperationRequest) (func() (*big.Int, error), error) {
	principal, err := parseAddress("principal", req.Principal)
	if err != nil {
		return nil, err
	}
	auth, err := req.Authorization.Decode()
	if err != nil {
		return nil, err
	}
	switch op {
	case vault.OpInitialize:
		params, err := initParams(principal, req)
		if err != nil {
			return nil, err
		}
		return func() (*big.Int, error) { return nil, engine.Initialize(params, auth) }, nil
	case vault.OpDeposit:
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return nil, err
		}
		return func() (*big.Int, error) { return engine.Deposit(principal, amount, auth) }, nil
	case vault.OpRedeem:
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return nil, err
		}
		return func() (*big.Int, error) { return engine.Redeem(principal, amount, auth) }, nil
	case vault.OpClaimPhysical:
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return nil, err
		}
		hash, err := vault.ParseDeliveryHash(req.DeliveryHash)
		if err != nil {
			return nil, err
		}
		return func() (*big.Int, error) { return nil, engine.ClaimPhysical(principal, amount, hash, auth) }, nil
	case vault.OpReportRwaValue:
		value, err := parseAmount(req.Amount)
		if err != nil {
			return nil, err
		}
		return func() (*big.Int, error) { return nil, engine.ReportRwaValue(principal, value, auth) }, nil
	case vault.OpSetAllocationRatio:
		rwa, onchain := req.RwaBps, req.OnchainBps
		return func() (*big.Int, error) { return nil, engine.SetAllocationRatio(principal, rwa, onchain, auth) }, nil
	case vault.OpAddStrategy:
		strategy, err := parseAddress("strategy", req.Strategy)
		if err != nil {
			return nil, err
		}
		return func() (*big.Int, error) { return nil, engine.AddStrategy(principal, strategy, auth) }, nil
	case vault.OpDeployToStrategy, vault.OpWithdrawFromStrategy:
		strategy, err := parseAddress("strategy", req.Strategy)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return nil, err
		}
		if op == vault.OpDeployToStrategy {
			return func() (*big.Int, error) { return engine.DeployToStrategy(principal, strategy, amount, auth) }, nil
		}
		return func() (*big.Int, error) { return engine.WithdrawFromStrategy(principal, strategy, amount, auth) }, nil
	default:
		return nil, fmt.Errorf("operation %q not routable", op)
	}
}

func initParams(admin crypto.Address, req OperationRequest) (vault.InitParams, error) {
	claimToken, err := parseAddress("claimToken", req.ClaimToken)
	if err != nil {
		return vault.InitParams{}, err
	}
	stable, err := parseAddress("stableAsset", req.StableAsset)
	if err != nil {
		return vault.InitParams{}, err
	}
	oracle, err := parseAddress("oracle", req.Oracle)
	if err != nil {
		return vault.InitParams{}, err
	}
	price, err := parseAmount(req.BuybackPrice)
	if err != nil {
		return vault.InitParams{}, fmt.Errorf("buybackPrice: %w", err)
	}
	return vault.InitParams{
		Admin:           admin,
		ClaimToken:      claimToken,
		StableAsset:     stable,
		Oracle:          oracle,
		AllocRwaBps:     req.RwaBps,
		AllocOnchainBps: req.OnchainBps,
		Maturity:        req.Maturity,
		BuybackPrice:    price,
	}, nil
}
