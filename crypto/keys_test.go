package crypto

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestAddressRoundTripBech32(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, AddressLength)
	addr := NewAddress(AccountPrefix, raw)
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) || decoded.Prefix() != AccountPrefix {
		t.Fatalf("unexpected decoded address %s", decoded)
	}
}

func TestAddressJSON(t *testing.T) {
	addr := NewAddress(ContractPrefix, bytes.Repeat([]byte{0x01}, AddressLength))
	encoded, err := json.Marshal(struct{ A Address }{A: addr})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out struct{ A Address }
	if err := json.Unmarshal(encoded, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.A.Equal(addr) {
		t.Fatalf("address mismatch after json round trip: %s vs %s", out.A, addr)
	}
}

func TestDecodeAddressRejectsShortPayload(t *testing.T) {
	if _, err := DecodeAddress("rwa1qqqsyqcyq5rqwzqf"); err == nil {
		t.Fatalf("expected short payload to be rejected")
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	digest := Keccak256([]byte("payload"))
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signer, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !signer.Equal(key.PubKey().Address()) {
		t.Fatalf("recovered %s, want %s", signer, key.PubKey().Address())
	}
	if _, err := RecoverAddress(digest, sig[:10]); err == nil {
		t.Fatalf("expected truncated signature to fail")
	}
}

func TestZeroAddress(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Fatalf("empty address should be zero")
	}
	if !NewAddress(AccountPrefix, make([]byte, AddressLength)).IsZero() {
		t.Fatalf("all-zero payload should be zero")
	}
}
