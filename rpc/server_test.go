package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"rwavault/core/events"
	"rwavault/core/state"
	"rwavault/core/types"
	"rwavault/crypto"
	"rwavault/native/token"
	"rwavault/native/vault"
	"rwavault/services/eventsink"
	"rwavault/storage"
)

type fixture struct {
	t           *testing.T
	mgr         *state.Manager
	engine      *vault.Engine
	server      *Server
	handler     http.Handler
	broadcaster *events.Broadcaster
	vaultAddr   crypto.Address
	claim       *token.Ledger
	stable      *token.Ledger
	admin       *crypto.PrivateKey
	oracle      *crypto.PrivateKey
	alice       *crypto.PrivateKey
}

func contract(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0xc0
	raw[crypto.AddressLength-1] = b
	return crypto.NewAddress(crypto.ContractPrefix, raw)
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)

	f := &fixture{t: t, mgr: mgr, vaultAddr: contract(0xfa), broadcaster: events.NewBroadcaster()}
	f.claim = token.NewLedger(mgr, contract(0xc1), "CLAIM")
	f.stable = token.NewLedger(mgr, contract(0x5a), "USDX")
	directory := vault.NewDirectory()
	directory.RegisterClaimToken(f.claim.Address(), f.claim)
	directory.RegisterStableAsset(f.stable.Address(), f.stable)

	f.engine = vault.NewEngine(f.vaultAddr, directory)
	f.engine.SetState(mgr)
	f.engine.SetEmitter(f.broadcaster)

	var err error
	f.admin, err = crypto.GeneratePrivateKey()
	require.NoError(t, err)
	f.oracle, err = crypto.GeneratePrivateKey()
	require.NoError(t, err)
	f.alice, err = crypto.GeneratePrivateKey()
	require.NoError(t, err)

	f.server = NewServer(f.engine, f.broadcaster, cfg, nil)
	f.handler = f.server.Handler()
	return f
}

func (f *fixture) authorize(key *crypto.PrivateKey, op vault.Operation, args []string) AuthorizationJSON {
	f.t.Helper()
	nonce, err := f.engine.Nonce(key.PubKey().Address())
	require.NoError(f.t, err)
	auth, err := vault.Sign(key, f.vaultAddr, op, nonce, args)
	require.NoError(f.t, err)
	return NewAuthorizationJSON(auth)
}

func (f *fixture) post(op vault.Operation, req OperationRequest) *httptest.ResponseRecorder {
	f.t.Helper()
	body, err := json.Marshal(req)
	require.NoError(f.t, err)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/"+string(op), bytes.NewReader(body)))
	return rec
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *fixture) initialize() {
	f.t.Helper()
	params := vault.InitParams{
		Admin:           f.admin.PubKey().Address(),
		ClaimToken:      f.claim.Address(),
		StableAsset:     f.stable.Address(),
		Oracle:          f.oracle.PubKey().Address(),
		AllocRwaBps:     5000,
		AllocOnchainBps: 5000,
		Maturity:        time.Now().Add(time.Hour).Unix(),
		BuybackPrice:    big.NewInt(1000),
	}
	rec := f.post(vault.OpInitialize, OperationRequest{
		Principal:     params.Admin.String(),
		Authorization: f.authorize(f.admin, vault.OpInitialize, vault.InitializeArgs(params)),
		ClaimToken:    params.ClaimToken.String(),
		StableAsset:   params.StableAsset.String(),
		Oracle:        params.Oracle.String(),
		RwaBps:        params.AllocRwaBps,
		OnchainBps:    params.AllocOnchainBps,
		Maturity:      params.Maturity,
		BuybackPrice:  params.BuybackPrice.String(),
	})
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (f *fixture) fund(key *crypto.PrivateKey, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.stable.Mint(key.PubKey().Address(), big.NewInt(amount)))
	require.NoError(f.t, f.mgr.Commit())
}

func (f *fixture) depositRequest(key *crypto.PrivateKey, amount int64) OperationRequest {
	value := big.NewInt(amount)
	return OperationRequest{
		Principal:     key.PubKey().Address().String(),
		Authorization: f.authorize(key, vault.OpDeposit, vault.AmountArgs(value)),
		Amount:        value.String(),
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndUninitializedVault(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = f.get("/v1/vault/value")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NotInitialized", decodeError(t, rec).Code)
}

func TestDepositFlowOverHTTP(t *testing.T) {
	f := newFixture(t, Config{})
	f.initialize()
	f.fund(f.alice, 1_000)

	rec := f.post(vault.OpDeposit, f.depositRequest(f.alice, 400))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result OperationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, vault.OpDeposit, result.Operation)
	require.Equal(t, "400", result.Amount)

	rec = f.get("/v1/accounts/" + f.alice.PubKey().Address().String())
	require.Equal(t, http.StatusOK, rec.Code)
	var account AccountResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	require.Equal(t, "400", account.Balance)
	require.Equal(t, uint64(1), account.Nonce)
	require.Nil(t, account.Claim)

	rec = f.get("/v1/vault/allocation")
	require.Equal(t, http.StatusOK, rec.Code)
	var allocation AllocationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &allocation))
	require.Equal(t, uint32(5000), allocation.RwaBps)

	rec = f.get("/v1/vault")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"phase":"active"`)
}

func TestOperationErrorsMapToStatus(t *testing.T) {
	f := newFixture(t, Config{})
	f.initialize()
	f.fund(f.alice, 1_000)

	forged := f.depositRequest(f.admin, 10)
	forged.Principal = f.alice.PubKey().Address().String()
	rec := f.post(vault.OpDeposit, forged)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "NotAuthorized", decodeError(t, rec).Code)

	rec = f.post(vault.OpRedeem, OperationRequest{
		Principal:     f.alice.PubKey().Address().String(),
		Authorization: f.authorize(f.alice, vault.OpRedeem, vault.AmountArgs(big.NewInt(1))),
		Amount:        "1",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "VaultLocked", decodeError(t, rec).Code)

	rec = f.post(vault.OpClaimPhysical, OperationRequest{
		Principal:     f.alice.PubKey().Address().String(),
		Authorization: f.authorize(f.alice, vault.OpClaimPhysical, nil),
		Amount:        "1",
		DeliveryHash:  "zz",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "InvalidDeliveryHash", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/mint_everything", strings.NewReader("{}")))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "UnknownOperation", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/deposit", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "InvalidRequest", decodeError(t, rec).Code)
}

func TestRateLimiterThrottlesClients(t *testing.T) {
	f := newFixture(t, Config{RateLimitPerMin: 1, Burst: 1})
	require.Equal(t, http.StatusNotFound, f.get("/v1/vault").Code)
	rec := f.get("/v1/vault")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "RateLimited", decodeError(t, rec).Code)
	require.Equal(t, http.StatusOK, f.get("/healthz").Code)
}

func TestEventStreamDeliversCommittedEvents(t *testing.T) {
	f := newFixture(t, Config{})
	f.initialize()
	f.fund(f.alice, 1_000)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/events/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	require.Eventually(t, func() bool { return f.broadcaster.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := f.post(vault.OpDeposit, f.depositRequest(f.alice, 250))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, vault.EventTypeDeposit, evt.Type)
	require.Equal(t, "250", evt.Attr("minted"))
}

func TestEventArchiveRoute(t *testing.T) {
	f := newFixture(t, Config{})
	require.Equal(t, http.StatusServiceUnavailable, f.get("/v1/events").Code)

	sink, err := eventsink.Open("file:rpc_archive?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	defer sink.Close()
	f.engine.SetEmitter(events.Fanout{f.broadcaster, sink})
	f.server.SetArchive(sink)

	f.initialize()
	f.fund(f.alice, 1_000)
	require.Equal(t, http.StatusOK, f.post(vault.OpDeposit, f.depositRequest(f.alice, 100)).Code)

	rec := f.get("/v1/events?after=1&limit=10")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var records []eventsink.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, vault.EventTypeDeposit, records[0].Type)

	require.Equal(t, http.StatusBadRequest, f.get("/v1/events?after=x").Code)
}
