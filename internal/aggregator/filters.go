package aggregator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"scorecard-insights-go/internal/types"
)

var ErrInvalidDateRange = errors.New("invalid date range")

type RangeKind string

const (
	RangeAll    RangeKind = "all"
	Range7Days  RangeKind = "7days"
	Range30Days RangeKind = "30days"
	Range90Days RangeKind = "90days"
	RangeCustom RangeKind = "custom"
)

const dayMillis = 24 * 60 * 60 * 1000

// DateRange selects conversations by timestamp. Start and End are only used
// for RangeCustom; a zero value means the bound is unset.
type DateRange struct {
	Kind  RangeKind `json:"kind"`
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// ParseDateRange builds a range from dashboard inputs. Dates are YYYY-MM-DD in
// loc; the start bound is midnight and the end bound is 23:59:59 of its day.
// An empty kind means all.
func ParseDateRange(kind, start, end string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.Local
	}
	k := RangeKind(kind)
	switch k {
	case "":
		return DateRange{Kind: RangeAll}, nil
	case RangeAll, Range7Days, Range30Days, Range90Days:
		return DateRange{Kind: k}, nil
	case RangeCustom:
	default:
		return DateRange{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidDateRange, kind)
	}

	r := DateRange{Kind: RangeCustom}
	if start != "" {
		d, err := time.ParseInLocation("2006-01-02", start, loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start: %v", ErrInvalidDateRange, err)
		}
		r.Start = d
	}
	if end != "" {
		d, err := time.ParseInLocation("2006-01-02", end, loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end: %v", ErrInvalidDateRange, err)
		}
		r.End = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc)
	}
	return r, nil
}

func (r DateRange) windowDays() (float64, bool) {
	switch r.Kind {
	case Range7Days:
		return 7, true
	case Range30Days:
		return 30, true
	case Range90Days:
		return 90, true
	}
	return 0, false
}

// Contains reports whether ts falls inside the range as seen at now.
// Trailing windows compare whole elapsed days, floor((now-ts)/1d) <= N, so a
// record 7d23h old is still inside "7days".
func (r DateRange) Contains(ts, now time.Time) bool {
	if n, ok := r.windowDays(); ok {
		elapsed := float64(now.UnixMilli() - ts.UnixMilli())
		return math.Floor(elapsed/dayMillis) <= n
	}
	if r.Kind != RangeCustom {
		return true
	}
	if !r.Start.IsZero() && ts.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && ts.After(r.End) {
		return false
	}
	return true
}

// Predicate is one independent filter dimension.
type Predicate func(types.Conversation) bool

func ByProduct(id string) Predicate {
	return func(c types.Conversation) bool { return c.ProductID == id }
}

func ByExecutive(id string) Predicate {
	return func(c types.Conversation) bool { return c.ExecutiveID == id }
}

// ByDomain resolves each conversation's domain through the catalog.
// Conversations whose product is unknown never match.
func ByDomain(domain string, catalog types.Catalog) Predicate {
	return func(c types.Conversation) bool {
		p, ok := catalog.Lookup(c.ProductID)
		return ok && p.Domain == domain
	}
}

func ByDateRange(r DateRange, now time.Time) Predicate {
	return func(c types.Conversation) bool { return r.Contains(c.Timestamp, now) }
}

// Filter is the set of optional dashboard filters. Empty fields do not filter.
type Filter struct {
	ProductID   string    `json:"product_id,omitempty"`
	ExecutiveID string    `json:"executive_id,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Range       DateRange `json:"range"`
	// Now anchors trailing windows; zero means time.Now().
	Now time.Time `json:"-"`
}

func (f Filter) Predicates(catalog types.Catalog) []Predicate {
	var preds []Predicate
	if f.Domain != "" {
		preds = append(preds, ByDomain(f.Domain, catalog))
	}
	if f.ProductID != "" {
		preds = append(preds, ByProduct(f.ProductID))
	}
	if f.ExecutiveID != "" {
		preds = append(preds, ByExecutive(f.ExecutiveID))
	}
	if f.Range.Kind != "" && f.Range.Kind != RangeAll {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		preds = append(preds, ByDateRange(f.Range, now))
	}
	return preds
}

// Apply keeps the conversations that satisfy every predicate, in input order.
func Apply(convs []types.Conversation, preds ...Predicate) []types.Conversation {
	out := make([]types.Conversation, 0, len(convs))
next:
	for _, c := range convs {
		for _, p := range preds {
			if !p(c) {
				continue next
			}
		}
		out = append(out, c)
	}
	return out
}
