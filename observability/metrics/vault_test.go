package metrics

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestVaultMetricsRecord(t *testing.T) {
	m := Vault()
	if Vault() != m {
		t.Fatalf("expected singleton registry")
	}
	before := testutil.ToFloat64(m.operations.WithLabelValues("deposit", "OK"))
	m.ObserveOperation("deposit", "OK", time.Millisecond)
	if got := testutil.ToFloat64(m.operations.WithLabelValues("deposit", "OK")); got != before+1 {
		t.Fatalf("expected counter %v, got %v", before+1, got)
	}

	m.SetVaultValue(big.NewInt(1_000_000_000))
	if got := testutil.ToFloat64(m.vaultValue); got != 1e9 {
		t.Fatalf("unexpected gauge %v", got)
	}

	negBefore := testutil.ToFloat64(m.negativeValuations)
	m.IncNegativeValuation()
	if got := testutil.ToFloat64(m.negativeValuations); got != negBefore+1 {
		t.Fatalf("negative valuation not counted")
	}

	extBefore := testutil.ToFloat64(m.retentionExtended)
	m.AddRetentionExtended(0)
	m.AddRetentionExtended(3)
	if got := testutil.ToFloat64(m.retentionExtended); got != extBefore+3 {
		t.Fatalf("expected %v extended, got %v", extBefore+3, got)
	}
}
