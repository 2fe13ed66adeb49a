package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rwavault/crypto"
	"rwavault/native/vault"
	"rwavault/rpc"
)

// manifest describes one operation to sign. It can be loaded from YAML and
// overridden by flags.
type manifest struct {
	Vault        string `yaml:"vault"`
	Operation    string `yaml:"operation"`
	Nonce        uint64 `yaml:"nonce"`
	Amount       string `yaml:"amount"`
	DeliveryHash string `yaml:"deliveryHash"`
	Strategy     string `yaml:"strategy"`
	RwaBps       uint32 `yaml:"rwaBps"`
	OnchainBps   uint32 `yaml:"onchainBps"`
	ClaimToken   string `yaml:"claimToken"`
	StableAsset  string `yaml:"stableAsset"`
	Oracle       string `yaml:"oracle"`
	Maturity     int64  `yaml:"maturity"`
	BuybackPrice string `yaml:"buybackPrice"`
}

func loadManifest(path string) (*manifest, error) {
	m := &manifest{}
	if strings.TrimSpace(path) == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func parseBig(field, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", field, raw)
	}
	return value, nil
}

func decode(field, raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// canonicalArgs renders the signed argument list for m's operation.
func (m *manifest) canonicalArgs(op vault.Operation, principal crypto.Address) ([]string, error) {
	switch op {
	case vault.OpInitialize:
		params, err := m.initParams(principal)
		if err != nil {
			return nil, err
		}
		return vault.InitializeArgs(params), nil
	case vault.OpDeposit, vault.OpRedeem, vault.OpReportRwaValue:
		amount, err := parseBig("amount", m.Amount)
		if err != nil {
			return nil, err
		}
		return vault.AmountArgs(amount), nil
	case vault.OpClaimPhysical:
		amount, err := parseBig("amount", m.Amount)
		if err != nil {
			return nil, err
		}
		hash, err := vault.ParseDeliveryHash(m.DeliveryHash)
		if err != nil {
			return nil, fmt.Errorf("deliveryHash: %w", err)
		}
		return vault.ClaimArgs(amount, hash), nil
	case vault.OpSetAllocationRatio:
		return vault.AllocationArgs(m.RwaBps, m.OnchainBps), nil
	case vault.OpAddStrategy:
		strategy, err := decode("strategy", m.Strategy)
		if err != nil {
			return nil, err
		}
		return vault.StrategyArgs(strategy, nil), nil
	case vault.OpDeployToStrategy, vault.OpWithdrawFromStrategy:
		strategy, err := decode("strategy", m.Strategy)
		if err != nil {
			return nil, err
		}
		amount, err := parseBig("amount", m.Amount)
		if err != nil {
			return nil, err
		}
		return vault.StrategyArgs(strategy, amount), nil
	default:
		return nil, fmt.Errorf("operation %q cannot be signed", op)
	}
}

func (m *manifest) initParams(admin crypto.Address) (vault.InitParams, error) {
	claim, err := decode("claimToken", m.ClaimToken)
	if err != nil {
		return vault.InitParams{}, err
	}
	stable, err := decode("stableAsset", m.StableAsset)
	if err != nil {
		return vault.InitParams{}, err
	}
	oracle, err := decode("oracle", m.Oracle)
	if err != nil {
		return vault.InitParams{}, err
	}
	price, err := parseBig("buybackPrice", m.BuybackPrice)
	if err != nil {
		return vault.InitParams{}, err
	}
	return vault.InitParams{
		Admin:           admin,
		ClaimToken:      claim,
		StableAsset:     stable,
		Oracle:          oracle,
		AllocRwaBps:     m.RwaBps,
		AllocOnchainBps: m.OnchainBps,
		Maturity:        m.Maturity,
		BuybackPrice:    price,
	}, nil
}

// buildRequest signs m with key and returns the request body accepted by
// POST /v1/{operation}.
func buildRequest(m *manifest, key *crypto.PrivateKey) (vault.Operation, *rpc.OperationRequest, error) {
	op, err := vault.ParseOperation(strings.TrimSpace(m.Operation))
	if err != nil {
		return "", nil, err
	}
	vaultAddr, err := decode("vault", m.Vault)
	if err != nil {
		return "", nil, err
	}
	principal := key.PubKey().Address()
	args, err := m.canonicalArgs(op, principal)
	if err != nil {
		return "", nil, err
	}
	auth, err := vault.Sign(key, vaultAddr, op, m.Nonce, args)
	if err != nil {
		return "", nil, err
	}
	return op, &rpc.OperationRequest{
		Principal:     principal.String(),
		Authorization: rpc.NewAuthorizationJSON(auth),
		Amount:        m.Amount,
		DeliveryHash:  m.DeliveryHash,
		Strategy:      m.Strategy,
		RwaBps:        m.RwaBps,
		OnchainBps:    m.OnchainBps,
		ClaimToken:    m.ClaimToken,
		StableAsset:   m.StableAsset,
		Oracle:        m.Oracle,
		Maturity:      m.Maturity,
		BuybackPrice:  m.BuybackPrice,
	}, nil
}
