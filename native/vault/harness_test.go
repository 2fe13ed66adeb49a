package vault_test

import (
	"math/big"
	"testing"

	"rwavault/core/events"
	"rwavault/core/state"
	"rwavault/crypto"
	"rwavault/native/strategy"
	"rwavault/native/token"
	"rwavault/native/vault"
	"rwavault/storage"
)

const (
	genesisTime  = int64(1_700_000_000)
	maturityTime = genesisTime + 30*24*60*60
)

type testClock struct{ now int64 }

func (c *testClock) Now() int64 { return c.now }

type eventRecorder struct{ events []events.Event }

func (r *eventRecorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *eventRecorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

func (r *eventRecorder) last() events.Event {
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

type harness struct {
	t         *testing.T
	mgr       *state.Manager
	engine    *vault.Engine
	directory *vault.Directory
	clock     *testClock
	recorder  *eventRecorder
	vaultAddr crypto.Address
	claim     *token.Ledger
	stable    *token.Ledger
	reserve   *strategy.Reserve
	admin     *crypto.PrivateKey
	oracle    *crypto.PrivateKey
	alice     *crypto.PrivateKey
	bob       *crypto.PrivateKey
}

func contractAddr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0xc0
	raw[crypto.AddressLength-1] = b
	return crypto.NewAddress(crypto.ContractPrefix, raw)
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func addressOf(key *crypto.PrivateKey) crypto.Address { return key.PubKey().Address() }

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	clock := &testClock{now: genesisTime}
	mgr := state.NewManager(db)
	mgr.SetNowFunc(clock.Now)

	h := &harness{
		t:         t,
		mgr:       mgr,
		clock:     clock,
		recorder:  &eventRecorder{},
		directory: vault.NewDirectory(),
		vaultAddr: contractAddr(0xfa),
		admin:     mustKey(t),
		oracle:    mustKey(t),
		alice:     mustKey(t),
		bob:       mustKey(t),
	}
	h.claim = token.NewLedger(mgr, contractAddr(0xc1), "CLAIM")
	h.stable = token.NewLedger(mgr, contractAddr(0x5a), "USDX")
	h.reserve = strategy.NewReserve(contractAddr(0x01), h.stable)
	h.directory.RegisterClaimToken(h.claim.Address(), h.claim)
	h.directory.RegisterStableAsset(h.stable.Address(), h.stable)
	h.directory.RegisterStrategy(h.reserve.Address(), h.reserve)

	h.engine = vault.NewEngine(h.vaultAddr, h.directory)
	h.engine.SetState(mgr)
	h.engine.SetNowFunc(clock.Now)
	h.engine.SetEmitter(h.recorder)
	return h
}

func (h *harness) initParams() vault.InitParams {
	return vault.InitParams{
		Admin:           addressOf(h.admin),
		ClaimToken:      h.claim.Address(),
		StableAsset:     h.stable.Address(),
		Oracle:          addressOf(h.oracle),
		AllocRwaBps:     5000,
		AllocOnchainBps: 5000,
		Maturity:        maturityTime,
		BuybackPrice:    big.NewInt(1_000),
	}
}

func newInitializedHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	params := h.initParams()
	if err := h.engine.Initialize(params, h.sign(h.admin, vault.OpInitialize, vault.InitializeArgs(params))); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return h
}

// sign authorizes op for key at its next expected nonce.
func (h *harness) sign(key *crypto.PrivateKey, op vault.Operation, args []string) vault.Authorization {
	h.t.Helper()
	nonce, err := h.engine.Nonce(addressOf(key))
	if err != nil {
		h.t.Fatalf("nonce: %v", err)
	}
	auth, err := vault.Sign(key, h.vaultAddr, op, nonce, args)
	if err != nil {
		h.t.Fatalf("sign: %v", err)
	}
	return auth
}

func (h *harness) fund(key *crypto.PrivateKey, amount int64) {
	h.t.Helper()
	if err := h.stable.Mint(addressOf(key), big.NewInt(amount)); err != nil {
		h.t.Fatalf("fund: %v", err)
	}
	if err := h.mgr.Commit(); err != nil {
		h.t.Fatalf("commit funding: %v", err)
	}
}

func (h *harness) deposit(key *crypto.PrivateKey, amount int64) (*big.Int, error) {
	value := big.NewInt(amount)
	return h.engine.Deposit(addressOf(key), value, h.sign(key, vault.OpDeposit, vault.AmountArgs(value)))
}

func (h *harness) redeem(key *crypto.PrivateKey, amount int64) (*big.Int, error) {
	value := big.NewInt(amount)
	return h.engine.Redeem(addressOf(key), value, h.sign(key, vault.OpRedeem, vault.AmountArgs(value)))
}

func (h *harness) claimPhysical(key *crypto.PrivateKey, amount int64, hash [32]byte) error {
	value := big.NewInt(amount)
	return h.engine.ClaimPhysical(addressOf(key), value, hash, h.sign(key, vault.OpClaimPhysical, vault.ClaimArgs(value, hash)))
}

func (h *harness) report(value *big.Int) error {
	return h.engine.ReportRwaValue(addressOf(h.oracle), value, h.sign(h.oracle, vault.OpReportRwaValue, vault.AmountArgs(value)))
}

func (h *harness) addStrategy(addr crypto.Address) error {
	return h.engine.AddStrategy(addressOf(h.admin), addr, h.sign(h.admin, vault.OpAddStrategy, vault.StrategyArgs(addr, nil)))
}

func (h *harness) deploy(addr crypto.Address, amount int64) (*big.Int, error) {
	value := big.NewInt(amount)
	return h.engine.DeployToStrategy(addressOf(h.admin), addr, value, h.sign(h.admin, vault.OpDeployToStrategy, vault.StrategyArgs(addr, value)))
}

func (h *harness) withdraw(addr crypto.Address, amount int64) (*big.Int, error) {
	value := big.NewInt(amount)
	return h.engine.WithdrawFromStrategy(addressOf(h.admin), addr, value, h.sign(h.admin, vault.OpWithdrawFromStrategy, vault.StrategyArgs(addr, value)))
}

func (h *harness) setAllocation(rwa, onchain uint32) error {
	return h.engine.SetAllocationRatio(addressOf(h.admin), rwa, onchain, h.sign(h.admin, vault.OpSetAllocationRatio, vault.AllocationArgs(rwa, onchain)))
}

func (h *harness) mature() { h.clock.now = maturityTime }

func (h *harness) nav() *big.Int {
	h.t.Helper()
	value, err := h.engine.VaultValue()
	if err != nil {
		h.t.Fatalf("vault value: %v", err)
	}
	return value
}

func (h *harness) stableBalance(addr crypto.Address) *big.Int {
	h.t.Helper()
	balance, err := h.stable.BalanceOf(addr)
	if err != nil {
		h.t.Fatalf("stable balance: %v", err)
	}
	return balance
}

// assertSupplyMatchesBalances checks the vault-tracked balances of the known
// users add up to the claim-token supply.
func (h *harness) assertSupplyMatchesBalances() {
	h.t.Helper()
	sum := big.NewInt(0)
	for _, key := range []*crypto.PrivateKey{h.alice, h.bob} {
		balance, err := h.engine.BalanceOf(addressOf(key))
		if err != nil {
			h.t.Fatalf("balance: %v", err)
		}
		sum.Add(sum, balance)
	}
	supply, err := h.claim.TotalSupply()
	if err != nil {
		h.t.Fatalf("supply: %v", err)
	}
	if sum.Cmp(supply) != 0 {
		h.t.Fatalf("tracked balances %s differ from claim supply %s", sum, supply)
	}
}

func expectAmount(t *testing.T, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("expected %d, got %v", want, got)
	}
}
