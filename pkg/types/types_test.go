package types

import "testing"

func TestLSNValid(t *testing.T) {
	if NilLSN.Valid() {
		t.Fatal("NilLSN must not be valid")
	}
	if !LSN(1).Valid() {
		t.Fatal("LSN(1) must be valid")
	}
}

func TestPIDSentinels(t *testing.T) {
	if !NullPID.IsNull() {
		t.Fatal("NullPID.IsNull() must be true")
	}
	if !OrderSentinelPID.IsOrderSentinel() {
		t.Fatal("OrderSentinelPID.IsOrderSentinel() must be true")
	}
	p := PID{VolumeID: 1, PageNumber: 2}
	if p.IsNull() || p.IsOrderSentinel() {
		t.Fatal("ordinary PID must be neither null nor the order sentinel")
	}
}
