package schedule

import (
	"cmp"
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"golang.org/x/exp/slices"

	"payplan/internal/cache"
	"payplan/internal/core"
)

// ViewCache memoises monthly views. Keys combine the month with a content
// hash of every input, so any edit to an entry, projection, instrument or
// account yields a different key. The cache is owned by whoever builds it.
type ViewCache struct {
	views *cache.LRUCache[View]
}

// NewViewCache creates a cache holding at most size views for ttl.
func NewViewCache(size int, ttl time.Duration, opts ...cache.Option) *ViewCache {
	return &ViewCache{views: cache.NewLRUCache[View](size, ttl, opts...)}
}

// Build returns the cached view for these inputs or builds and stores it.
// Failed builds are not cached.
func (c *ViewCache) Build(entries []core.LedgerEntry, projections []core.RecurringProjection,
	instruments []core.Instrument, accounts []core.Account, year, month int) (View, bool, error) {
	key, err := ViewKey(entries, projections, instruments, accounts, year, month)
	if err != nil {
		return View{}, false, err
	}
	if v, ok := c.views.Get(key); ok {
		return v, true, nil
	}
	v, err := BuildView(entries, projections, instruments, accounts, year, month)
	if err != nil {
		return View{}, false, err
	}
	c.views.Set(key, v)
	return v, false, nil
}

// Invalidate drops every cached view.
func (c *ViewCache) Invalidate() int {
	return c.views.Purge()
}

// CleanExpired lets a cache.Manager sweep the view cache.
func (c *ViewCache) CleanExpired() int {
	return c.views.CleanExpired()
}

func (c *ViewCache) Size() int {
	return c.views.Size()
}

// fingerprint is the hashed shape of the view inputs. Only plain strings and
// integers go in, so the hash is stable across runs. The slices are sorted
// and hashed as ordered lists: set hashing lets identical items cancel out.
type fingerprint struct {
	Year        int
	Month       int
	Entries     []itemPrint
	Projections []itemPrint
	Instruments []instPrint
	Accounts    []acctPrint
}

type itemPrint struct {
	ID           string
	Occurred     string
	Date         string
	InstrumentID string
	Cents        int64
}

func compareItems(a, b itemPrint) int {
	return cmp.Or(
		cmp.Compare(a.ID, b.ID),
		cmp.Compare(a.Occurred, b.Occurred),
		cmp.Compare(a.Date, b.Date),
		cmp.Compare(a.InstrumentID, b.InstrumentID),
		cmp.Compare(a.Cents, b.Cents),
	)
}

type instPrint struct {
	ID, Label, AccountID string
}

type acctPrint struct {
	ID, Name string
}

// ViewKey derives the cache key. Input order does not change the key.
func ViewKey(entries []core.LedgerEntry, projections []core.RecurringProjection,
	instruments []core.Instrument, accounts []core.Account, year, month int) (string, error) {
	fp := fingerprint{Year: year, Month: month}
	for _, e := range entries {
		fp.Entries = append(fp.Entries, itemPrint{ID: e.ID, Occurred: e.OccurrenceDate.String(), Date: e.ScheduledPayDate.String(), InstrumentID: e.InstrumentID, Cents: e.Amount.Cents})
	}
	for _, p := range projections {
		fp.Projections = append(fp.Projections, itemPrint{ID: p.TemplateID, Occurred: p.Date.String(), Date: projectionPayDate(p).String(), InstrumentID: p.InstrumentID, Cents: p.Amount.Cents})
	}
	for _, in := range instruments {
		fp.Instruments = append(fp.Instruments, instPrint{ID: in.ID, Label: in.Label, AccountID: in.AccountID})
	}
	for _, a := range accounts {
		fp.Accounts = append(fp.Accounts, acctPrint{ID: a.ID, Name: a.Name})
	}
	slices.SortFunc(fp.Entries, compareItems)
	slices.SortFunc(fp.Projections, compareItems)
	slices.SortFunc(fp.Instruments, func(a, b instPrint) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Label, b.Label), cmp.Compare(a.AccountID, b.AccountID))
	})
	slices.SortFunc(fp.Accounts, func(a, b acctPrint) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Name, b.Name))
	})
	h, err := hashstructure.Hash(fp, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hash view inputs: %w", err)
	}
	return fmt.Sprintf("%04d-%02d:%016x", year, month, h), nil
}
