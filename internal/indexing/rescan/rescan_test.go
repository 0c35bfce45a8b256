package rescan

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/indexing/backfill"
	"github.com/vietddude/tradesync/internal/infra/storage/memory"
)

type mockRunner struct {
	walked []domain.BlockRange
	failAt uint64
}

func (m *mockRunner) RunRange(ctx context.Context, from, to uint64) (*backfill.Report, error) {
	m.walked = append(m.walked, domain.BlockRange{From: from, To: to})
	report := &backfill.Report{Status: domain.SyncRunCompleted}
	if m.failAt != 0 && from <= m.failAt && m.failAt <= to {
		report.Status = domain.SyncRunFailed
		return report, errors.New("disk full")
	}
	report.Progress.Saved = 1
	return report, nil
}

func TestMergeRanges(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.BlockRange
		want []domain.BlockRange
	}{
		{"empty", nil, nil},
		{"single", []domain.BlockRange{{From: 5, To: 9}}, []domain.BlockRange{{From: 5, To: 9}}},
		{
			"overlapping and adjacent",
			[]domain.BlockRange{{From: 20, To: 30}, {From: 1, To: 10}, {From: 11, To: 15}, {From: 25, To: 40}},
			[]domain.BlockRange{{From: 1, To: 15}, {From: 20, To: 40}},
		},
		{
			"disjoint",
			[]domain.BlockRange{{From: 50, To: 60}, {From: 1, To: 2}},
			[]domain.BlockRange{{From: 1, To: 2}, {From: 50, To: 60}},
		},
		{
			"contained",
			[]domain.BlockRange{{From: 1, To: 100}, {From: 10, To: 20}},
			[]domain.BlockRange{{From: 1, To: 100}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeRanges(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergeRanges() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWorker_Run(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewRangeQueue(memory.NewMemoryStorage())
	for _, r := range []domain.BlockRange{{From: 100, To: 199}, {From: 200, To: 299}, {From: 500, To: 599}} {
		_ = queue.Push(ctx, "base", r)
	}

	runner := &mockRunner{}
	reports, err := NewWorker("base", queue, runner).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []domain.BlockRange{{From: 100, To: 299}, {From: 500, To: 599}}
	if !reflect.DeepEqual(runner.walked, want) {
		t.Errorf("walked %v, want %v", runner.walked, want)
	}
	if len(reports) != 2 {
		t.Errorf("got %d reports", len(reports))
	}
	if left, _ := queue.List(ctx, "base"); len(left) != 0 {
		t.Errorf("queue not drained: %v", left)
	}
}

func TestWorker_RequeuesOnFailure(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewRangeQueue(memory.NewMemoryStorage())
	for _, r := range []domain.BlockRange{{From: 10, To: 20}, {From: 40, To: 50}, {From: 70, To: 80}} {
		_ = queue.Push(ctx, "base", r)
	}

	runner := &mockRunner{failAt: 45}
	if _, err := NewWorker("base", queue, runner).Run(ctx); err == nil {
		t.Fatal("expected error")
	}

	left, _ := queue.List(ctx, "base")
	want := []domain.BlockRange{{From: 40, To: 50}, {From: 70, To: 80}}
	if !reflect.DeepEqual(left, want) {
		t.Errorf("queue = %v, want %v", left, want)
	}
}

func TestWorker_EmptyQueue(t *testing.T) {
	runner := &mockRunner{}
	reports, err := NewWorker("base", memory.NewRangeQueue(memory.NewMemoryStorage()), runner).Run(context.Background())
	if err != nil || reports != nil || len(runner.walked) != 0 {
		t.Errorf("reports = %v, err = %v, walked = %v", reports, err, runner.walked)
	}
}

func TestWorker_DrainsSourceQueues(t *testing.T) {
	ctx := context.Background()
	primary := memory.NewRangeQueue(memory.NewMemoryStorage())
	fallback := memory.NewRangeQueue(memory.NewMemoryStorage())
	_ = primary.Push(ctx, "base", domain.BlockRange{From: 100, To: 199})
	_ = fallback.Push(ctx, "base", domain.BlockRange{From: 200, To: 250})
	_ = fallback.Push(ctx, "base", domain.BlockRange{From: 900, To: 950})

	runner := &mockRunner{failAt: 920}
	if _, err := NewWorker("base", primary, runner).WithSources(fallback).Run(ctx); err == nil {
		t.Fatal("expected error")
	}

	want := []domain.BlockRange{{From: 100, To: 250}, {From: 900, To: 950}}
	if !reflect.DeepEqual(runner.walked, want) {
		t.Errorf("walked %v, want %v", runner.walked, want)
	}
	if left, _ := fallback.List(ctx, "base"); len(left) != 0 {
		t.Errorf("fallback not drained: %v", left)
	}
	left, _ := primary.List(ctx, "base")
	if !reflect.DeepEqual(left, []domain.BlockRange{{From: 900, To: 950}}) {
		t.Errorf("primary = %v", left)
	}
}
