package ai

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryBudget_NoLimit(t *testing.T) {
	b := NewInMemoryBudget(0)
	ctx := context.Background()

	if err := b.Record(ctx, "learner-1", 1_000_000); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	ok, err := b.Check(ctx, "learner-1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !ok {
		t.Error("Check() = false, want true (zero limit means unlimited)")
	}
}

func TestInMemoryBudget_Limits(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		records []int
		want    bool
	}{
		{"within", 1000, []int{500}, true},
		{"over", 100, []int{150}, false},
		{"exact", 100, []int{100}, false},
		{"accumulates", 1000, []int{300, 300, 300}, true},
		{"accumulates past limit", 1000, []int{400, 400, 400}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := NewInMemoryBudget(tt.limit)
			for _, tokens := range tt.records {
				if err := b.Record(ctx, "learner-1", tokens); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
			}
			ok, err := b.Check(ctx, "learner-1")
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Check() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestInMemoryBudget_PerLearnerOverride(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBudget(100)
	b.SetLimit("vip", 10_000)

	b.Record(ctx, "vip", 500)
	b.Record(ctx, "regular", 500)

	if ok, _ := b.Check(ctx, "vip"); !ok {
		t.Error("vip should be within budget (500 < 10000)")
	}
	if ok, _ := b.Check(ctx, "regular"); ok {
		t.Error("regular should be over budget (500 >= 100)")
	}

	used, limit, err := b.Usage(ctx, "vip")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if used != 500 || limit != 10_000 {
		t.Errorf("Usage() = (%d, %d), want (500, 10000)", used, limit)
	}
}

func TestInMemoryBudget_NegativeTokens(t *testing.T) {
	b := NewInMemoryBudget(0)
	if err := b.Record(context.Background(), "learner-1", -10); err == nil {
		t.Fatal("Record() should return error for negative tokens")
	}
}

func TestRedisBudget_Defaults(t *testing.T) {
	b := NewRedisBudget(nil, "", 0, 0)
	if b.window != 24*time.Hour {
		t.Errorf("window = %v, want 24h", b.window)
	}
	if got := b.key("abc"); got != "skillforge:budget:abc" {
		t.Errorf("key() = %q", got)
	}
	// Unlimited budgets never touch Redis.
	ok, err := b.Check(context.Background(), "abc")
	if err != nil || !ok {
		t.Errorf("Check() = (%v, %v), want (true, nil)", ok, err)
	}
	if err := b.Record(context.Background(), "abc", -1); err == nil {
		t.Error("Record() should reject negative tokens before calling Redis")
	}
}
