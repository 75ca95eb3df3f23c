package worker

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func TestProcessPreservesOrder(t *testing.T) {
	items := []string{"c", "a", "b", "d"}
	pool := NewPool[string](2)

	results := pool.Process(items, func(item string) (string, error) {
		return strings.ToUpper(item), nil
	})

	if len(results) != len(items) {
		t.Fatalf("results = %d, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		if r.Value != strings.ToUpper(items[i]) {
			t.Errorf("result %d = %q, want %q", i, r.Value, strings.ToUpper(items[i]))
		}
	}
}

func TestProcessCapturesErrors(t *testing.T) {
	boom := errors.New("boom")
	pool := NewPool[int](4)

	results := pool.Process([]string{"ok", "bad", "ok"}, func(item string) (int, error) {
		if item == "bad" {
			return 0, boom
		}
		return len(item), nil
	})

	if results[0].Err != nil || results[2].Err != nil {
		t.Error("successful items should carry no error")
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("failed item error = %v", results[1].Err)
	}
	if results[0].Value != 2 {
		t.Errorf("value = %d", results[0].Value)
	}
}

func TestProcessEmptyInput(t *testing.T) {
	pool := NewPool[int](2)
	if results := pool.Process(nil, func(string) (int, error) { return 0, nil }); results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestProcessDefaultConcurrency(t *testing.T) {
	pool := NewPool[int](0)

	var calls atomic.Int64
	items := make([]string, 100)
	for i := range items {
		items[i] = "x"
	}
	results := pool.Process(items, func(string) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	if int(calls.Load()) != len(items) || len(results) != len(items) {
		t.Errorf("calls = %d, results = %d", calls.Load(), len(results))
	}
}
