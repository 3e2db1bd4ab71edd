package batch

import (
	"context"
	"errors"
	"testing"
)

type recordingWriter struct {
	failOn int
	calls  [][]int
}

func (w *recordingWriter) Table() string { return "indexs" }

func (w *recordingWriter) WriteChunk(ctx context.Context, rows []int) (int, error) {
	w.calls = append(w.calls, rows)
	if len(w.calls) == w.failOn {
		return 0, errors.New("connection reset")
	}
	return len(rows), nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestChunk_CountAndOrder(t *testing.T) {
	for _, tc := range []struct{ n, size, want int }{
		{0, 1000, 0},
		{1, 1000, 1},
		{1000, 1000, 1},
		{1001, 1000, 2},
		{2500, 1000, 3},
		{7, 3, 3},
	} {
		chunks := Chunk(seq(tc.n), tc.size)
		if len(chunks) != tc.want {
			t.Errorf("Chunk(%d, %d) produced %d chunks, want %d", tc.n, tc.size, len(chunks), tc.want)
			continue
		}

		next := 0
		for _, chunk := range chunks {
			if len(chunk) > tc.size {
				t.Errorf("Chunk larger than %d: %d", tc.size, len(chunk))
			}
			for _, v := range chunk {
				if v != next {
					t.Fatalf("Expected %d, got %d", next, v)
				}
				next++
			}
		}
		if next != tc.n {
			t.Errorf("Expected %d rows across chunks, got %d", tc.n, next)
		}
	}
}

func TestDedupe_KeepsFirstAndIsIdempotent(t *testing.T) {
	type reading struct {
		pds string
		v   int
	}
	rows := []reading{{"A", 1}, {"B", 2}, {"A", 3}, {"C", 4}, {"B", 5}}
	key := func(r reading) string { return r.pds }

	once := Dedupe(rows, key)
	if len(once) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(once))
	}
	if once[0].v != 1 || once[1].v != 2 || once[2].v != 4 {
		t.Errorf("Expected first occurrences in order, got %+v", once)
	}

	twice := Dedupe(once, key)
	if len(twice) != len(once) {
		t.Fatalf("Expected dedupe to be idempotent, got %d rows", len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("Row %d changed on second dedupe", i)
		}
	}
}

func TestInsertChunked_StopsAtFailingChunk(t *testing.T) {
	w := &recordingWriter{failOn: 2}

	_, err := InsertChunked(context.Background(), w, seq(2500), 1000)

	var bwErr *BatchWriteError
	if !errors.As(err, &bwErr) {
		t.Fatalf("Expected BatchWriteError, got %v", err)
	}
	if bwErr.Table != "indexs" || bwErr.Chunk != 2 || bwErr.Chunks != 3 || bwErr.Size != 1000 {
		t.Errorf("Unexpected error context: %+v", bwErr)
	}
	if len(w.calls) != 2 {
		t.Errorf("Expected chunk 3 to never be attempted, got %d calls", len(w.calls))
	}
}

func TestInsertChunked_CountsDuplicates(t *testing.T) {
	w := &dupWriter{}

	result, err := InsertChunked(context.Background(), w, seq(5), 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Chunks != 3 || result.Rows != 5 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if result.Inserted != 3 || result.Duplicates != 2 {
		t.Errorf("Expected 3 inserted and 2 duplicates, got %+v", result)
	}
}

func TestInsertChunked_EmptyAndInvalidSize(t *testing.T) {
	w := &recordingWriter{}

	result, err := InsertChunked(context.Background(), w, nil, 1000)
	if err != nil || result.Chunks != 0 || len(w.calls) != 0 {
		t.Errorf("Expected no writes for empty input, got %+v, %v", result, err)
	}

	if _, err := InsertChunked(context.Background(), w, seq(3), 0); err == nil {
		t.Error("Expected error for zero chunk size")
	}
}

func TestInsertChunked_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &recordingWriter{}

	_, err := InsertChunked(ctx, w, seq(3), 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(w.calls) != 0 {
		t.Errorf("Expected no writes, got %d", len(w.calls))
	}
}

// dupWriter reports odd values as already stored
type dupWriter struct{}

func (dupWriter) Table() string { return "qmins" }

func (dupWriter) WriteChunk(ctx context.Context, rows []int) (int, error) {
	inserted := 0
	for _, v := range rows {
		if v%2 == 0 {
			inserted++
		}
	}
	return inserted, nil
}
