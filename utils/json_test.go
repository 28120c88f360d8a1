package utils

import "testing"

func TestPayloadHash_KeyOrderIndependent(t *testing.T) {
	a := []byte(`{"id":"in1","total":100,"lines":[{"qty":1,"rate":100}]}`)
	b := []byte(`{"total":100,"lines":[{"rate":100,"qty":1}],"id":"in1"}`)
	if PayloadHash(a) != PayloadHash(b) {
		t.Fatalf("hash changed on key reordering: %s vs %s", PayloadHash(a), PayloadHash(b))
	}
}

func TestPayloadHash_DetectsValueChange(t *testing.T) {
	a := []byte(`{"id":"in2","total":100}`)
	b := []byte(`{"id":"in2","total":150}`)
	if PayloadHash(a) == PayloadHash(b) {
		t.Fatalf("hash did not change when total changed")
	}
}

func TestPayloadHash_EmptyAndOpaque(t *testing.T) {
	if PayloadHash(nil) != "" {
		t.Fatalf("expected empty hash for nil payload")
	}
	if PayloadHash([]byte{}) != "" {
		t.Fatalf("expected empty hash for empty payload")
	}
	// Not JSON: still hashed deterministically.
	if PayloadHash([]byte("opaque")) == "" {
		t.Fatalf("expected non-empty hash for opaque payload")
	}
	if PayloadHash([]byte("opaque")) != PayloadHash([]byte("opaque")) {
		t.Fatalf("opaque hash not deterministic")
	}
}
