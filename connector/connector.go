package connector

import (
	"context"
	"errors"
	"time"
)

// ErrMissingCursor marks a connector contract violation: a page claimed
// has_more without supplying the cursor for the next one. The engine fails
// that entity type's sync, not the whole run.
var ErrMissingCursor = errors.New("connector returned has_more without a next cursor")

// FetchOptions parameterizes one page fetch. UpdatedSince is nil on the first
// ever sync of a connection; Cursor is "" for the first page.
type FetchOptions struct {
	UpdatedSince *time.Time
	Cursor       string
	PageSize     int
}

// FetchResult is one page of normalized records. HasMore=false is the only
// valid terminal condition for a pagination loop. TotalCount is advisory and
// may be nil when the provider does not report it.
type FetchResult[T any] struct {
	Items      []T
	HasMore    bool
	NextCursor string
	TotalCount *int
}

// Empty is the "nothing to sync" result used when a provider has no concept
// for an entity type. Not supported is represented as an empty page, not as
// a failure.
func Empty[T any]() FetchResult[T] {
	return FetchResult[T]{HasMore: false}
}

// AccountingConnector abstracts one external accounting system behind a fixed
// capability set, independent of its native pagination or auth scheme.
// Connectors operate purely on network I/O and never touch the database.
//
// Contract rules:
//   - every returned record's ExternalId is stable and non-empty;
//   - a provider with no concept for an entity type returns Empty (or, for
//     accounts, may synthesize a fixed default set) instead of erroring;
//   - provider status vocabularies map totally into the canonical enums, with
//     unknown values landing on the safe default, never an error.
type AccountingConnector interface {
	FetchAccounts(ctx context.Context, opts FetchOptions) (FetchResult[NormalizedAccount], error)
	FetchCustomers(ctx context.Context, opts FetchOptions) (FetchResult[NormalizedContact], error)
	FetchVendors(ctx context.Context, opts FetchOptions) (FetchResult[NormalizedContact], error)
	FetchInvoices(ctx context.Context, opts FetchOptions) (FetchResult[NormalizedInvoice], error)
	FetchBills(ctx context.Context, opts FetchOptions) (FetchResult[NormalizedBill], error)
	FetchPayments(ctx context.Context, opts FetchOptions) (FetchResult[NormalizedPayment], error)
	FetchBankTransactions(ctx context.Context, opts FetchOptions) (FetchResult[NormalizedBankTransaction], error)
	FetchJournalEntries(ctx context.Context, opts FetchOptions) (FetchResult[NormalizedJournalEntry], error)

	// TestConnection reports whether the provider is reachable with the held
	// credentials. Expected auth failures return false, never an error.
	TestConnection(ctx context.Context) bool

	// Close releases any held connection or session. Idempotent; safe to call
	// multiple times or never.
	Close() error
}
