// Package model defines the trade record persisted by the trade store.
// Dates carry no time component; they are normalised to midnight UTC.
package model

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidTrade is returned by Validate for records that cannot be keyed.
var ErrInvalidTrade = errors.New("model: invalid trade")

// Trade is one version of a financial position. The pair (TradeID, Version)
// is the primary key; earlier versions are retained alongside later ones.
type Trade struct {
	TradeID        string    `json:"trade_id" db:"trade_id"`
	Version        int       `json:"version" db:"version"`
	CounterPartyID string    `json:"counter_party_id" db:"counter_party_id"`
	BookID         string    `json:"book_id" db:"book_id"`
	MaturityDate   time.Time `json:"maturity_date" db:"maturity_date"`
	CreationDate   time.Time `json:"creation_date" db:"creation_date"`
	Expired        bool      `json:"expired" db:"expired"` // set only by the expiry sweep
}

// Key identifies a single stored row.
type Key struct {
	TradeID string
	Version int
}

// Key returns the primary key of t.
func (t *Trade) Key() Key {
	return Key{TradeID: t.TradeID, Version: t.Version}
}

// Validate checks the key fields. Counterparty and book are opaque and
// never validated.
func (t *Trade) Validate() error {
	if t.TradeID == "" {
		return fmt.Errorf("%w: trade_id is required", ErrInvalidTrade)
	}
	if t.Version < 0 {
		return fmt.Errorf("%w: version must be non-negative, got %d", ErrInvalidTrade, t.Version)
	}
	return nil
}

// Normalize truncates both dates to their calendar day.
func (t *Trade) Normalize() {
	t.MaturityDate = DateOf(t.MaturityDate)
	t.CreationDate = DateOf(t.CreationDate)
}

// Equal reports whether every field of t and o matches. Dates are compared
// by calendar day.
func (t *Trade) Equal(o *Trade) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.TradeID == o.TradeID &&
		t.Version == o.Version &&
		t.CounterPartyID == o.CounterPartyID &&
		t.BookID == o.BookID &&
		DateOf(t.MaturityDate).Equal(DateOf(o.MaturityDate)) &&
		DateOf(t.CreationDate).Equal(DateOf(o.CreationDate)) &&
		t.Expired == o.Expired
}

func (t *Trade) String() string {
	return fmt.Sprintf("Trade(%s v%d cp=%s book=%s maturity=%s created=%s expired=%t)",
		t.TradeID, t.Version, t.CounterPartyID, t.BookID,
		FormatDate(t.MaturityDate), FormatDate(t.CreationDate), t.Expired)
}

// DateOf returns midnight UTC of the calendar day t falls on in its own
// location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("model: invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders the calendar day of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return DateOf(t).Format(DateLayout)
}
