package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/atmx/tradestore/internal/model"
)

var tradeColumns = []string{
	"trade_id", "version", "counter_party_id", "book_id",
	"maturity_date", "creation_date", "expired",
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return NewPostgresStore(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS trades")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgresStore_GetMaxVersion(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM trades WHERE trade_id = $1")).
		WithArgs("T1").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(2))

	v, ok, err := st.GetMaxVersion(context.Background(), "T1")
	if err != nil || !ok || v != 2 {
		t.Errorf("expected version 2, got %d ok=%v err=%v", v, ok, err)
	}
}

func TestPostgresStore_GetMaxVersion_Absent(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM trades")).
		WithArgs("T9").
		WillReturnRows(pgxmock.NewRows([]string{"version"}))

	_, ok, err := st.GetMaxVersion(context.Background(), "T9")
	if err != nil {
		t.Fatalf("absent trade must not be an error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for unknown trade")
	}
}

func TestPostgresStore_GetByIDAndVersion(t *testing.T) {
	st, mock := newMockStore(t)
	want := newTrade("T1", 1, "CP-1", today.AddDate(0, 0, 10))
	mock.ExpectQuery(regexp.QuoteMeta("FROM trades WHERE trade_id = $1 AND version = $2")).
		WithArgs("T1", 1).
		WillReturnRows(pgxmock.NewRows(tradeColumns).AddRow(
			"T1", 1, "CP-1", "B1", want.MaturityDate, want.CreationDate, false))

	got, ok, err := st.GetByIDAndVersion(context.Background(), "T1", 1)
	if err != nil || !ok {
		t.Fatalf("expected row, got ok=%v err=%v", ok, err)
	}
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestPostgresStore_GetByIDAndVersion_Absent(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM trades WHERE trade_id = $1 AND version = $2")).
		WithArgs("T1", 7).
		WillReturnRows(pgxmock.NewRows(tradeColumns))

	got, ok, err := st.GetByIDAndVersion(context.Background(), "T1", 7)
	if err != nil || ok || got != nil {
		t.Errorf("expected absent, got %v ok=%v err=%v", got, ok, err)
	}
}

func TestPostgresStore_SaveUpserts(t *testing.T) {
	st, mock := newMockStore(t)
	tr := newTrade("T2", 1, "CP-2", today.AddDate(0, 0, 10))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (trade_id, version) DO UPDATE")).
		WithArgs("T2", 1, "CP-2", "B1", tr.MaturityDate, tr.CreationDate, false).
		WillReturnRows(pgxmock.NewRows(tradeColumns).AddRow(
			"T2", 1, "CP-2", "B1", tr.MaturityDate, tr.CreationDate, false))

	saved, err := st.Save(context.Background(), tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !saved.Equal(tr) {
		t.Errorf("expected echo %s, got %s", tr, saved)
	}
}

func TestPostgresStore_BulkExpire(t *testing.T) {
	st, mock := newMockStore(t)
	cutoff := today.AddDate(0, 0, 11)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE trades SET expired = TRUE")).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := st.BulkExpire(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows affected, got %d", n)
	}
}

func TestPostgresStore_DeleteAll(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM trades")).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	if err := st.DeleteAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgresStore_WrapsInfrastructureErrors(t *testing.T) {
	st, mock := newMockStore(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT")).
		WithArgs("T1", 1, "CP-1", "B1", today, today, false).
		WillReturnError(boom)

	_, err := st.Save(context.Background(), &model.Trade{
		TradeID: "T1", Version: 1, CounterPartyID: "CP-1", BookID: "B1",
		MaturityDate: today, CreationDate: today,
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped driver error, got %v", err)
	}
}
