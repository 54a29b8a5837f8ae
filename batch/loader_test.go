package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type profileRow struct {
	Id   string
	Name string
}

func TestLoadByID_ChunksDedupesAndSkipsMissing(t *testing.T) {
	store := map[string]profileRow{}
	for _, id := range makeIds(120) {
		store[id] = profileRow{Id: id, Name: "name-" + id}
	}

	var mu sync.Mutex
	var calls, biggest int
	fetch := func(ctx context.Context, ids []string) ([]profileRow, error) {
		mu.Lock()
		calls++
		if len(ids) > biggest {
			biggest = len(ids)
		}
		mu.Unlock()
		var rows []profileRow
		for _, id := range ids {
			if row, ok := store[id]; ok {
				rows = append(rows, row)
			}
		}
		return rows, nil
	}

	ids := append(makeIds(120), makeIds(10)...) // duplicates
	ids = append(ids, "unknown-1", "unknown-2")

	got, err := LoadByID(context.Background(), ids, Options{ChunkSize: 25, Parallelism: 2}, fetch,
		func(p profileRow) string { return p.Id })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 120 {
		t.Fatalf("expected 120 resolved ids, got %d", len(got))
	}
	if _, ok := got["unknown-1"]; ok {
		t.Fatalf("missing ids must be absent from the map")
	}
	if got["tx-00007"].Name != "name-tx-00007" {
		t.Fatalf("unexpected row: %+v", got["tx-00007"])
	}
	if biggest > 25 {
		t.Fatalf("expected batches of at most 25 ids, saw %d", biggest)
	}
	if calls < 5 {
		t.Fatalf("expected at least 5 batched calls for 122 unique ids, got %d", calls)
	}
}

func TestLoadByID_FetchErrorFailsLookup(t *testing.T) {
	boom := errors.New("profiles unavailable")
	_, err := LoadByID(context.Background(), []string{"a", "b"}, Options{ChunkSize: 10},
		func(ctx context.Context, ids []string) ([]profileRow, error) { return nil, boom },
		func(p profileRow) string { return p.Id })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error to propagate, got %v", err)
	}
}

func TestLoadByID_NoIds(t *testing.T) {
	got, err := LoadByID(context.Background(), nil, Options{},
		func(ctx context.Context, ids []string) ([]profileRow, error) {
			t.Fatalf("fetch must not be called for an empty id set")
			return nil, nil
		},
		func(p profileRow) string { return p.Id })
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %v err=%v", got, err)
	}
}
