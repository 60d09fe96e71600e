package vectorstore

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func Test_Instrument_RecordsOperationLatency(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	store := Instrument(newTestLocalStore(t), reg, "local")
	ctx := context.Background()

	if err := store.CreateCollection(ctx, "ops"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddDocuments(ctx, "ops", []string{"dock 4 closes at 18:00"}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Query(ctx, "ops", SearchRequest{Text: "dock hours", TopK: 1}); err != nil {
		t.Fatal(err)
	}

	// One histogram series per distinct operation.
	if got := testutil.CollectAndCount(reg, "glih_store_op_duration_seconds"); got != 3 {
		t.Errorf("series count = %d, want 3", got)
	}
}

func Test_Instrument_DelegatesUnchanged(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	store := Instrument(newTestLocalStore(t), reg, "local")
	ctx := context.Background()

	if err := store.CreateCollection(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	names, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("collections = %v", names)
	}
	if h := store.HealthCheck(ctx); h.Status != "healthy" {
		t.Errorf("health = %+v", h)
	}
}
