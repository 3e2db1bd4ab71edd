package batch

import (
	"context"
	"fmt"
)

// ChunkWriter persists one chunk of rows into a table
type ChunkWriter[T any] interface {
	Table() string
	// WriteChunk stores rows atomically and returns how many were inserted.
	WriteChunk(ctx context.Context, rows []T) (int, error)
}

// Result summarizes a chunked insert
type Result struct {
	Table      string `json:"table"`
	Rows       int    `json:"rows"`
	Chunks     int    `json:"chunks"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
}

// BatchWriteError reports the chunk that stopped a chunked insert. Chunks
// before it stay committed; chunks after it were never attempted.
type BatchWriteError struct {
	Table  string
	Chunk  int
	Chunks int
	Size   int
	Err    error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("failed to write %s chunk %d/%d (%d rows): %v", e.Table, e.Chunk, e.Chunks, e.Size, e.Err)
}

func (e *BatchWriteError) Unwrap() error {
	return e.Err
}

// Dedupe keeps the first row for each key, preserving order
func Dedupe[T any, K comparable](rows []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}

// Chunk splits rows into ordered groups of at most size rows
func Chunk[T any](rows []T, size int) [][]T {
	if size <= 0 || len(rows) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// InsertChunked writes rows chunk by chunk, in order, and stops at the first
// failing chunk. There is no retry.
func InsertChunked[T any](ctx context.Context, w ChunkWriter[T], rows []T, size int) (Result, error) {
	result := Result{Table: w.Table(), Rows: len(rows)}
	if size <= 0 {
		return result, fmt.Errorf("chunk size must be positive, got %d", size)
	}

	chunks := Chunk(rows, size)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return result, &BatchWriteError{Table: w.Table(), Chunk: i + 1, Chunks: len(chunks), Size: len(chunk), Err: err}
		}

		inserted, err := w.WriteChunk(ctx, chunk)
		if err != nil {
			return result, &BatchWriteError{Table: w.Table(), Chunk: i + 1, Chunks: len(chunks), Size: len(chunk), Err: err}
		}

		result.Chunks++
		result.Inserted += inserted
		result.Duplicates += len(chunk) - inserted
	}

	return result, nil
}
