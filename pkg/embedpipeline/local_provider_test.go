package embedpipeline

import (
	"context"
	"math"
	"testing"
)

func TestLocalProviderIsDeterministic(t *testing.T) {
	p := NewLocalProvider("local-16", 16)
	a, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical vectors for identical text, diverged at %d", i)
		}
	}
}

func TestLocalProviderIsNormalized(t *testing.T) {
	p := NewLocalProvider("local-16", 16)
	vec, err := p.Embed(context.Background(), "the quick brown fox jumps")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if math.Abs(norm-1.0) > 1e-6 {
		t.Fatalf("expected unit-norm vector, got norm %f", norm)
	}
}

func TestLocalProviderEmptyTextYieldsZeroVector(t *testing.T) {
	p := NewLocalProvider("local-16", 16)
	vec, err := p.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatal("expected all-zero vector for empty text")
		}
	}
}
