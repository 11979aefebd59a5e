package embedding

import (
	"context"
	"testing"
	"time"
)

func TestDeterministicStubIsDeterministic(t *testing.T) {
	s := NewDeterministicStub(16)
	a, err := s.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := s.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("len(a)=%d len(b)=%d, want 16", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Embed() not deterministic at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestDeterministicStubDiffersByInput(t *testing.T) {
	s := NewDeterministicStub(16)
	a, _ := s.Embed(context.Background(), "alpha")
	b, _ := s.Embed(context.Background(), "beta")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different inputs to produce different embeddings")
	}
}

type slowProvider struct{ delay time.Duration }

func (s *slowProvider) Dim() int { return 4 }
func (s *slowProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-time.After(s.delay):
		return make([]float32, 4), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestWithTimeoutReturnsErrTimeout(t *testing.T) {
	p := WithTimeout(&slowProvider{delay: 50 * time.Millisecond}, 5*time.Millisecond)
	_, err := p.Embed(context.Background(), "text")
	if err != ErrTimeout {
		t.Fatalf("Embed() error = %v, want ErrTimeout", err)
	}
}

func TestWithTimeoutPassesThroughFastCalls(t *testing.T) {
	p := WithTimeout(NewDeterministicStub(8), time.Second)
	vec, err := p.Embed(context.Background(), "quick")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 8 {
		t.Fatalf("len(vec) = %d, want 8", len(vec))
	}
}
