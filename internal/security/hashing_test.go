package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash([]byte("hunter2"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hash, []byte("hunter2")); err != nil {
		t.Errorf("Compare same password: %v", err)
	}
	if err := h.Compare(hash, []byte("hunter3")); err == nil {
		t.Error("Compare wrong password: want error, got nil")
	}
}

func TestNewHasher_CostClamped(t *testing.T) {
	if h := NewHasher(0); h.Cost != bcrypt.DefaultCost {
		t.Errorf("zero cost: got %d, want default %d", h.Cost, bcrypt.DefaultCost)
	}
	if h := NewHasher(100); h.Cost != bcrypt.MaxCost {
		t.Errorf("oversized cost: got %d, want max %d", h.Cost, bcrypt.MaxCost)
	}
}
