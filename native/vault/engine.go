package vault

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"time"

	"rwavault/core/events"
	"rwavault/crypto"
	nativecommon "rwavault/native/common"
)

const moduleName = "vault"

type engineState interface {
	VaultConfig() (*Config, bool, error)
	PutVaultConfig(cfg *Config) error
	VaultRwaValuation() (*RwaValuation, error)
	PutVaultRwaValuation(valuation *RwaValuation) error
	VaultTotalDeposits() (*big.Int, error)
	PutVaultTotalDeposits(amount *big.Int) error
	VaultBalance(addr [crypto.AddressLength]byte) (*big.Int, error)
	PutVaultBalance(addr [crypto.AddressLength]byte, amount *big.Int) error
	VaultClaim(addr [crypto.AddressLength]byte) (*ClaimRecord, bool, error)
	PutVaultClaim(record *ClaimRecord) error
	VaultStrategies() ([][crypto.AddressLength]byte, error)
	PutVaultStrategies(list [][crypto.AddressLength]byte) error
	VaultDeployed(addr [crypto.AddressLength]byte) (*big.Int, error)
	PutVaultDeployed(addr [crypto.AddressLength]byte, amount *big.Int) error
	VaultNonce(addr [crypto.AddressLength]byte) (uint64, error)
	PutVaultNonce(addr [crypto.AddressLength]byte, nonce uint64) error
	VaultPrincipalKeys() ([][]byte, error)
	ExtendTTL(key []byte) (bool, error)
	Snapshot() int
	RevertToSnapshot(id int)
	Commit() error
}

// Metrics receives engine telemetry.
type Metrics interface {
	ObserveOperation(op string, code string, elapsed time.Duration)
	SetVaultValue(value *big.Int)
	IncNegativeValuation()
	AddRetentionExtended(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
func (noopMetrics) SetVaultValue(*big.Int)                         {}
func (noopMetrics) IncNegativeValuation()                          {}
func (noopMetrics) AddRetentionExtended(int)                       {}

// Policy toggles the configurable engine behaviours.
type Policy struct {
	// RedeemLiquidityCheck rejects redemptions whose payout exceeds the
	// vault's liquid stable balance.
	RedeemLiquidityCheck bool
	// LiveStrategyValuation values strategies through DeployedValue instead
	// of the cached deployed amounts.
	LiveStrategyValuation bool
}

// DefaultPolicy enables the liquidity check and uses cached valuation.
func DefaultPolicy() Policy {
	return Policy{RedeemLiquidityCheck: true}
}

// Engine is the vault accounting engine. It is not safe for concurrent use;
// the host serialises calls.
type Engine struct {
	state     engineState
	address   crypto.Address
	directory *Directory
	policy    Policy
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	logger    *slog.Logger
	metrics   Metrics
	nowFn     func() int64

	// inFlight is set while an operation runs. Collaborators that call back
	// into the engine are rejected instead of committing the outer unit.
	inFlight bool
}

// NewEngine constructs an engine for the vault contract at address, resolving
// collaborators through directory.
func NewEngine(address crypto.Address, directory *Directory) *Engine {
	return &Engine{
		address:   address,
		directory: directory,
		policy:    DefaultPolicy(),
		emitter:   events.NoopEmitter{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:   noopMetrics{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the sink for committed events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetPauses configures the pause view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLogger installs the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	e.logger = logger.With("module", moduleName)
}

// SetMetrics installs the telemetry sink.
func (e *Engine) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	e.metrics = m
}

// SetPolicy replaces the engine policy.
func (e *Engine) SetPolicy(policy Policy) { e.policy = policy }

// Policy returns the active engine policy.
func (e *Engine) Policy() Policy { return e.policy }

// SetNowFunc overrides the clock used for lifecycle decisions.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

// Address returns the vault contract address.
func (e *Engine) Address() crypto.Address { return e.address }

func (e *Engine) now() int64 { return e.nowFn() }

// execute runs fn as one atomic unit. Staged state is reverted and buffered
// events dropped when fn or the commit fails.
func (e *Engine) execute(op Operation, fn func(buf *events.Buffer) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.inFlight {
		e.logger.Warn("reentrant vault call rejected", "op", string(op))
		return ErrReentrantCall
	}
	e.inFlight = true
	defer func() { e.inFlight = false }()
	start := time.Now()
	snapshot := e.state.Snapshot()
	buf := new(events.Buffer)
	err := nativecommon.Guard(e.pauses, moduleName)
	if err == nil {
		err = fn(buf)
	}
	if err == nil {
		err = e.state.Commit()
	}
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		buf.Reset()
		e.metrics.ObserveOperation(string(op), CodeOf(err), time.Since(start))
		e.logger.Debug("vault operation rejected", "op", string(op), "code", CodeOf(err), "error", err)
		return err
	}
	e.metrics.ObserveOperation(string(op), "OK", time.Since(start))
	buf.Flush(e.emitter)
	return nil
}

func (e *Engine) loadConfig() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok, err := e.state.VaultConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) collaborators(cfg *Config) (ClaimToken, StableAsset, error) {
	claim, err := e.directory.ClaimToken(cfg.ClaimToken)
	if err != nil {
		return nil, nil, err
	}
	stable, err := e.directory.StableAsset(cfg.StableAsset)
	if err != nil {
		return nil, nil, err
	}
	return claim, stable, nil
}

// Initialize configures the vault once. The admin signs the parameters.
func (e *Engine) Initialize(params InitParams, auth Authorization) error {
	return e.execute(OpInitialize, func(buf *events.Buffer) error {
		if err := e.authorize(params.Admin, OpInitialize, InitializeArgs(params), auth, ErrNotAuthorized); err != nil {
			return err
		}
		if _, ok, err := e.state.VaultConfig(); err != nil {
			return err
		} else if ok {
			return ErrAlreadyInitialized
		}
		cfg, err := e.validateInit(params)
		if err != nil {
			return err
		}
		if err := e.state.PutVaultConfig(cfg); err != nil {
			return err
		}
		if err := e.state.PutVaultRwaValuation(&RwaValuation{Value: big.NewInt(0), UpdatedAt: e.now()}); err != nil {
			return err
		}
		if err := e.state.PutVaultTotalDeposits(big.NewInt(0)); err != nil {
			return err
		}
		if err := e.state.PutVaultStrategies(nil); err != nil {
			return err
		}
		buf.Emit(WrapEvent(InitializedEvent(cfg)))
		e.logger.Info("vault initialized",
			"admin", cfg.Admin.String(),
			"maturity", cfg.Maturity,
			"rwa_bps", cfg.AllocRwaBps,
			"onchain_bps", cfg.AllocOnchainBps)
		return nil
	})
}

func (e *Engine) validateInit(params InitParams) (*Config, error) {
	for _, addr := range []crypto.Address{params.Admin, params.ClaimToken, params.StableAsset, params.Oracle} {
		if addr.IsZero() {
			return nil, ErrInvalidConfig
		}
	}
	ratio := AllocationRatio{RwaBps: params.AllocRwaBps, OnchainBps: params.AllocOnchainBps}
	if !ratio.Valid() {
		return nil, ErrInvalidAllocation
	}
	if params.Maturity <= e.now() {
		return nil, ErrInvalidMaturity
	}
	buyback := newBigInt(params.BuybackPrice)
	if buyback.Sign() < 0 {
		return nil, ErrInvalidConfig
	}
	if err := checkInt128(buyback); err != nil {
		return nil, err
	}
	cfg := &Config{
		Admin:           params.Admin,
		ClaimToken:      params.ClaimToken,
		StableAsset:     params.StableAsset,
		Oracle:          params.Oracle,
		AllocRwaBps:     params.AllocRwaBps,
		AllocOnchainBps: params.AllocOnchainBps,
		Maturity:        params.Maturity,
		BuybackPrice:    buyback,
	}
	if _, _, err := e.collaborators(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Deposit transfers amount of the stable asset from user into the vault and
// mints claim tokens at the current vault value. It returns the minted amount.
func (e *Engine) Deposit(user crypto.Address, amount *big.Int, auth Authorization) (*big.Int, error) {
	var minted *big.Int
	err := e.execute(OpDeposit, func(buf *events.Buffer) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if err := e.authorize(user, OpDeposit, AmountArgs(amount), auth, ErrNotAuthorized); err != nil {
			return err
		}
		if e.phase(cfg) != PhaseActive {
			return ErrVaultAlreadyMature
		}
		if err := validateAmount(amount); err != nil {
			return err
		}
		claim, stable, err := e.collaborators(cfg)
		if err != nil {
			return err
		}
		supply, err := claim.TotalSupply()
		if err != nil {
			return err
		}
		nav, err := e.vaultValue()
		if err != nil {
			return err
		}
		mint, err := calculateMint(amount, supply, nav)
		if err != nil {
			return err
		}
		balance, err := e.state.VaultBalance(user.Raw())
		if err != nil {
			return err
		}
		nextBalance, err := checkedAdd(balance, mint)
		if err != nil {
			return err
		}
		deposits, err := e.state.VaultTotalDeposits()
		if err != nil {
			return err
		}
		nextDeposits, err := checkedAdd(deposits, amount)
		if err != nil {
			return err
		}
		if _, err := checkedAdd(supply, mint); err != nil {
			return err
		}

		if err := stable.Transfer(user, e.address, amount); err != nil {
			return err
		}
		if err := claim.Mint(user, mint); err != nil {
			return err
		}

		if err := e.state.PutVaultBalance(user.Raw(), nextBalance); err != nil {
			return err
		}
		if err := e.state.PutVaultTotalDeposits(nextDeposits); err != nil {
			return err
		}
		buf.Emit(WrapEvent(DepositEvent(user, amount, mint)))
		e.logger.Info("vault deposit", "user", user.String(), "amount", amount.String(), "minted", mint.String())
		minted = mint
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// Redeem burns tokenAmount claim tokens from user after maturity and pays out
// the proportional share of the vault value in the stable asset.
func (e *Engine) Redeem(user crypto.Address, tokenAmount *big.Int, auth Authorization) (*big.Int, error) {
	var paid *big.Int
	err := e.execute(OpRedeem, func(buf *events.Buffer) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if err := e.authorize(user, OpRedeem, AmountArgs(tokenAmount), auth, ErrNotAuthorized); err != nil {
			return err
		}
		if e.phase(cfg) != PhaseMatured {
			return ErrVaultLocked
		}
		if err := validateAmount(tokenAmount); err != nil {
			return err
		}
		claim, stable, err := e.collaborators(cfg)
		if err != nil {
			return err
		}
		nextBalance, err := e.debitClaims(claim, user, tokenAmount)
		if err != nil {
			return err
		}
		supply, err := claim.TotalSupply()
		if err != nil {
			return err
		}
		nav, err := e.vaultValue()
		if err != nil {
			return err
		}
		payout, err := calculatePayout(tokenAmount, supply, nav)
		if err != nil {
			return err
		}
		if e.policy.RedeemLiquidityCheck {
			liquid, err := stable.BalanceOf(e.address)
			if err != nil {
				return err
			}
			if newBigInt(liquid).Cmp(payout) < 0 {
				return ErrInsufficientLiquidity
			}
		}

		if err := claim.Burn(user, tokenAmount); err != nil {
			return err
		}
		if payout.Sign() > 0 {
			if err := stable.Transfer(e.address, user, payout); err != nil {
				return err
			}
		}

		if err := e.state.PutVaultBalance(user.Raw(), nextBalance); err != nil {
			return err
		}
		buf.Emit(WrapEvent(RedeemEvent(user, tokenAmount, payout)))
		e.logger.Info("vault redeem", "user", user.String(), "burned", tokenAmount.String(), "payout", payout.String())
		paid = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// debitClaims checks user holds tokens both on the claim ledger and in the
// vault's own accounting, returning the reduced vault balance.
func (e *Engine) debitClaims(claim ClaimToken, user crypto.Address, tokens *big.Int) (*big.Int, error) {
	held, err := claim.BalanceOf(user)
	if err != nil {
		return nil, err
	}
	if newBigInt(held).Cmp(tokens) < 0 {
		return nil, ErrInsufficientBalance
	}
	balance, err := e.state.VaultBalance(user.Raw())
	if err != nil {
		return nil, err
	}
	if newBigInt(balance).Cmp(tokens) < 0 {
		return nil, ErrInsufficientBalance
	}
	return new(big.Int).Sub(balance, tokens), nil
}

// Config returns the vault configuration.
func (e *Engine) Config() (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// BalanceOf returns the vault-tracked claim balance of user.
func (e *Engine) BalanceOf(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.VaultBalance(user.Raw())
}

// TotalDeposits returns the cumulative deposited amount.
func (e *Engine) TotalDeposits() (*big.Int, error) {
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}
	return e.state.VaultTotalDeposits()
}

// Nonce returns the next authorization nonce expected from principal.
func (e *Engine) Nonce(principal crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.VaultNonce(principal.Raw())
}

// LiquidBalance returns the vault's stable-asset balance.
func (e *Engine) LiquidBalance() (*big.Int, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	stable, err := e.directory.StableAsset(cfg.StableAsset)
	if err != nil {
		return nil, err
	}
	return stable.BalanceOf(e.address)
}

// Overview gathers the headline vault figures in one read.
func (e *Engine) Overview() (*Overview, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	claim, stable, err := e.collaborators(cfg)
	if err != nil {
		return nil, err
	}
	nav, err := e.VaultValue()
	if err != nil {
		return nil, err
	}
	valuation, err := e.state.VaultRwaValuation()
	if err != nil {
		return nil, err
	}
	deposits, err := e.state.VaultTotalDeposits()
	if err != nil {
		return nil, err
	}
	supply, err := claim.TotalSupply()
	if err != nil {
		return nil, err
	}
	liquid, err := stable.BalanceOf(e.address)
	if err != nil {
		return nil, err
	}
	return &Overview{
		Config:        cfg.Clone(),
		Phase:         e.phase(cfg),
		VaultValue:    nav,
		RwaValuation:  valuation,
		TotalDeposits: deposits,
		ClaimSupply:   supply,
		LiquidBalance: liquid,
		Allocation:    cfg.Allocation(),
	}, nil
}

// IsNotInitialized reports whether err signals an unconfigured vault.
func IsNotInitialized(err error) bool { return errors.Is(err, ErrNotInitialized) }
