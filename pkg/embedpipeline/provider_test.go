package embedpipeline

import (
	"testing"

	"github.com/nucleus/remdb/pkg/remerr"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewProviderRegistry()
	p := NewLocalProvider("local-8", 8)
	if err := r.Register(p); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := r.Get("local-8")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Describe().Dimension != 8 {
		t.Fatalf("expected dimension 8, got %d", got.Describe().Dimension)
	}
}

func TestFreezeRejectsFurtherRegistration(t *testing.T) {
	r := NewProviderRegistry()
	r.Freeze()
	if err := r.Register(NewLocalProvider("x", 4)); remerr.CodeOf(err) != remerr.CodeProviderUnavailable {
		t.Fatalf("expected ProviderUnavailable after freeze, got %v", err)
	}
}

func TestCheckDimensionMismatch(t *testing.T) {
	r := NewProviderRegistry()
	_ = r.Register(NewLocalProvider("local-8", 8))
	err := r.CheckDimension("local-8", make([]float32, 4))
	if remerr.CodeOf(err) != remerr.CodeDimensionMismatch {
		t.Fatalf("expected DimensionMismatch, got %v", err)
	}
}

func TestGetUnknownProvider(t *testing.T) {
	r := NewProviderRegistry()
	if _, err := r.Get("nope"); remerr.CodeOf(err) != remerr.CodeProviderUnavailable {
		t.Fatalf("expected ProviderUnavailable, got %v", err)
	}
}
