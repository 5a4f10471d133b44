package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"esnafpos/internal/domain"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	lines, err := s.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}

	saved := []domain.CartLine{
		{ProductID: "prod-1", Title: "Çay", Price: decimal.RequireFromString("185.00"), Qty: 2},
	}
	if err := s.Save(ctx, "sess-1", saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	lines, err = s.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(lines) != 1 || lines[0].Qty != 2 {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	// The store hands out copies; mutating the result must not leak back.
	lines[0].Qty = 99
	again, _ := s.Get(ctx, "sess-1")
	if again[0].Qty != 2 {
		t.Fatalf("expected stored qty 2, got %d", again[0].Qty)
	}

	if err := s.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	lines, _ = s.Get(ctx, "sess-1")
	if len(lines) != 0 {
		t.Fatalf("expected cleared cart, got %d lines", len(lines))
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	ctx := context.Background()

	if err := s.Save(ctx, "sess-exp", []domain.CartLine{{ProductID: "prod-1", Qty: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	lines, err := s.Get(ctx, "sess-exp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected expired cart to be empty, got %d lines", len(lines))
	}
}

func TestMemoryStoreIsolatesSessions(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	_ = s.Save(ctx, "sess-a", []domain.CartLine{{ProductID: "prod-1", Qty: 1}})

	lines, _ := s.Get(ctx, "sess-b")
	if len(lines) != 0 {
		t.Fatalf("expected sess-b empty, got %d lines", len(lines))
	}
}
