package vault

import "errors"

// Kind groups errors by the policy they enforce.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindLifecycle
	KindValidation
	KindAccounting
	KindIdempotency
	KindArithmetic
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindLifecycle:
		return "lifecycle"
	case KindValidation:
		return "validation"
	case KindAccounting:
		return "accounting"
	case KindIdempotency:
		return "idempotency"
	case KindArithmetic:
		return "arithmetic"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is a typed vault failure. Values are sentinels compared with errors.Is.
type Error struct {
	Code string
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return "vault engine: " + e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Code: code, Kind: kind, msg: msg}
}

var (
	ErrNotAuthorized       = newError(KindAuthorization, "NotAuthorized", "caller not authorized")
	ErrOracleNotAuthorized = newError(KindAuthorization, "OracleNotAuthorized", "oracle not authorized")
	ErrInvalidNonce        = newError(KindAuthorization, "InvalidNonce", "authorization nonce mismatch")

	ErrVaultNotMature     = newError(KindLifecycle, "VaultNotMature", "vault not yet matured")
	ErrVaultAlreadyMature = newError(KindLifecycle, "VaultAlreadyMature", "vault already matured")
	ErrVaultLocked        = newError(KindLifecycle, "VaultLocked", "vault locked until maturity")
	ErrNotInitialized     = newError(KindLifecycle, "NotInitialized", "vault not initialized")
	ErrReentrantCall      = newError(KindLifecycle, "ReentrantCall", "operation already in progress")

	ErrInvalidAllocation   = newError(KindValidation, "InvalidAllocation", "allocation must sum to 10000 bps")
	ErrZeroAmount          = newError(KindValidation, "ZeroAmount", "amount must be positive")
	ErrInvalidDeliveryHash = newError(KindValidation, "InvalidDeliveryHash", "delivery hash malformed")
	ErrInvalidMaturity     = newError(KindValidation, "InvalidMaturity", "maturity must be in the future")
	ErrMintTooSmall        = newError(KindValidation, "MintTooSmall", "deposit too small to mint a claim")

	ErrInsufficientBalance    = newError(KindAccounting, "InsufficientBalance", "insufficient claim balance")
	ErrStrategyNotWhitelisted = newError(KindAccounting, "StrategyNotWhitelisted", "strategy not whitelisted")
	ErrInsufficientDeployed   = newError(KindAccounting, "InsufficientDeployed", "withdrawal exceeds deployed amount")
	ErrInsufficientLiquidity  = newError(KindAccounting, "InsufficientLiquidity", "vault liquidity below payout")
	ErrVaultInsolvent         = newError(KindAccounting, "VaultInsolvent", "vault value not positive")
	ErrStrategyShortfall      = newError(KindAccounting, "StrategyShortfall", "strategy accepted less than deployed")

	ErrClaimAlreadyPending = newError(KindIdempotency, "ClaimAlreadyPending", "claim already pending")

	ErrArithmeticOverflow = newError(KindArithmetic, "ArithmeticOverflow", "amount exceeds 128-bit range")

	ErrAlreadyInitialized = newError(KindConfiguration, "AlreadyInitialized", "vault already initialized")
	ErrInvalidConfig      = newError(KindConfiguration, "InvalidConfig", "vault configuration invalid")
	ErrUnknownContract    = newError(KindConfiguration, "UnknownContract", "contract address not registered")
	ErrStrategyUnknown    = newError(KindConfiguration, "StrategyUnknown", "strategy address not registered")
	ErrStrategyPrefix     = newError(KindConfiguration, "StrategyPrefix", "strategy must use a contract address")
)

var errNilState = errors.New("vault engine: state not configured")

// KindOf classifies err. Errors not raised by the engine report KindUnknown.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

// CodeOf returns the stable error code for err, or "Internal".
func CodeOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return "Internal"
}
