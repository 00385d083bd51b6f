package store

import (
	"context"
	"testing"
	"time"

	"github.com/atmx/tradestore/internal/model"
)

var today = model.Date(2026, time.October, 14)

func newTrade(id string, version int, cp string, maturity time.Time) *model.Trade {
	return &model.Trade{
		TradeID:        id,
		Version:        version,
		CounterPartyID: cp,
		BookID:         "B1",
		MaturityDate:   maturity,
		CreationDate:   today,
	}
}

func mustSave(t *testing.T, st Store, tr *model.Trade) *model.Trade {
	t.Helper()
	saved, err := st.Save(context.Background(), tr)
	if err != nil {
		t.Fatalf("save %s: %v", tr, err)
	}
	return saved
}

func mustGet(t *testing.T, st Store, id string, version int) *model.Trade {
	t.Helper()
	got, ok, err := st.GetByIDAndVersion(context.Background(), id, version)
	if err != nil {
		t.Fatalf("get %s v%d: %v", id, version, err)
	}
	if !ok {
		t.Fatalf("expected %s v%d to exist", id, version)
	}
	return got
}

// runStoreSuite checks the behaviour every Store backend must share.
// newStore must return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("MissingTradeIsAbsent", func(t *testing.T) {
		st := newStore(t)
		if _, ok, err := st.GetMaxVersion(ctx, "nope"); err != nil || ok {
			t.Errorf("expected absent max version, got ok=%v err=%v", ok, err)
		}
		got, ok, err := st.GetByIDAndVersion(ctx, "nope", 1)
		if err != nil || ok || got != nil {
			t.Errorf("expected absent trade, got %v ok=%v err=%v", got, ok, err)
		}
	})

	t.Run("SaveEchoesRow", func(t *testing.T) {
		st := newStore(t)
		tr := newTrade("T1", 1, "CP-1", today.AddDate(0, 0, 10))
		saved := mustSave(t, st, tr)
		if !saved.Equal(tr) {
			t.Errorf("expected echo %s, got %s", tr, saved)
		}
		if got := mustGet(t, st, "T1", 1); !got.Equal(tr) {
			t.Errorf("read back %s, want %s", got, tr)
		}
	})

	t.Run("VersionHistoryRetained", func(t *testing.T) {
		st := newStore(t)
		v1 := mustSave(t, st, newTrade("T1", 1, "CP-1", today.AddDate(0, 0, 10)))
		v2 := mustSave(t, st, newTrade("T1", 2, "CP-2", today.AddDate(0, 0, 10)))

		if got := mustGet(t, st, "T1", 1); !got.Equal(v1) {
			t.Errorf("v1 changed: %s", got)
		}
		if got := mustGet(t, st, "T1", 2); !got.Equal(v2) {
			t.Errorf("v2 mismatch: %s", got)
		}
		max, ok, err := st.GetMaxVersion(ctx, "T1")
		if err != nil || !ok || max != 2 {
			t.Errorf("expected max version 2, got %d ok=%v err=%v", max, ok, err)
		}
	})

	t.Run("VersionZeroIsPresent", func(t *testing.T) {
		st := newStore(t)
		mustSave(t, st, newTrade("T0", 0, "CP-1", today))
		max, ok, err := st.GetMaxVersion(ctx, "T0")
		if err != nil || !ok || max != 0 {
			t.Errorf("expected max version 0 present, got %d ok=%v err=%v", max, ok, err)
		}
	})

	t.Run("SameVersionOverwrites", func(t *testing.T) {
		st := newStore(t)
		mustSave(t, st, newTrade("T2", 1, "CP-1", today.AddDate(0, 0, 10)))
		mustSave(t, st, newTrade("T2", 1, "CP-2", today.AddDate(0, 0, 10)))

		if got := mustGet(t, st, "T2", 1); got.CounterPartyID != "CP-2" {
			t.Errorf("expected CP-2 after overwrite, got %s", got.CounterPartyID)
		}
	})

	t.Run("OverwriteResetsExpired", func(t *testing.T) {
		st := newStore(t)
		mustSave(t, st, newTrade("T5", 1, "CP-1", today.AddDate(0, 0, 1)))
		if _, err := st.BulkExpire(ctx, today.AddDate(0, 0, 5)); err != nil {
			t.Fatal(err)
		}
		if !mustGet(t, st, "T5", 1).Expired {
			t.Fatal("expected row to be expired")
		}
		mustSave(t, st, newTrade("T5", 1, "CP-1", today.AddDate(0, 0, 30)))
		if mustGet(t, st, "T5", 1).Expired {
			t.Error("overwrite should replace the expired flag")
		}
	})

	t.Run("BulkExpireCutoffIsExclusive", func(t *testing.T) {
		st := newStore(t)
		mustSave(t, st, newTrade("T3", 1, "CP-1", today.AddDate(0, 0, 10)))
		mustSave(t, st, newTrade("T4", 1, "CP-1", today.AddDate(0, 0, 20)))
		mustSave(t, st, newTrade("T6", 1, "CP-1", today.AddDate(0, 0, 11)))

		n, err := st.BulkExpire(ctx, today.AddDate(0, 0, 11))
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("expected 1 row expired, got %d", n)
		}
		if !mustGet(t, st, "T3", 1).Expired {
			t.Error("T3 should be expired")
		}
		if mustGet(t, st, "T4", 1).Expired {
			t.Error("T4 should not be expired")
		}
		if mustGet(t, st, "T6", 1).Expired {
			t.Error("maturity equal to the cutoff should not be expired")
		}
	})

	t.Run("BulkExpireSkipsExpiredRows", func(t *testing.T) {
		st := newStore(t)
		mustSave(t, st, newTrade("T3", 1, "CP-1", today.AddDate(0, 0, 1)))
		mustSave(t, st, newTrade("T3", 2, "CP-1", today.AddDate(0, 0, 2)))

		if n, _ := st.BulkExpire(ctx, today.AddDate(0, 0, 3)); n != 2 {
			t.Errorf("expected 2 rows expired on first sweep, got %d", n)
		}
		if n, _ := st.BulkExpire(ctx, today.AddDate(0, 0, 3)); n != 0 {
			t.Errorf("expected 0 rows expired on second sweep, got %d", n)
		}
		if !mustGet(t, st, "T3", 1).Expired || !mustGet(t, st, "T3", 2).Expired {
			t.Error("both versions should stay expired")
		}
	})

	t.Run("DeleteAll", func(t *testing.T) {
		st := newStore(t)
		mustSave(t, st, newTrade("T1", 1, "CP-1", today))
		mustSave(t, st, newTrade("T1", 2, "CP-1", today))
		mustSave(t, st, newTrade("T2", 1, "CP-1", today))

		if err := st.DeleteAll(ctx); err != nil {
			t.Fatal(err)
		}
		for _, id := range []string{"T1", "T2"} {
			if _, ok, _ := st.GetMaxVersion(ctx, id); ok {
				t.Errorf("%s should be gone", id)
			}
		}
		if n, _ := st.BulkExpire(ctx, today.AddDate(1, 0, 0)); n != 0 {
			t.Errorf("sweep after wipe should touch nothing, got %d", n)
		}
	})
}
