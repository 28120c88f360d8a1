package syncengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/booksync/connector"
)

var testScope = syncScope{organizationId: testOrg, source: "pitix"}

func TestUpsertInvoiceRecomputesBalance(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	cases := []struct {
		name        string
		total       string
		paid        string
		wantBalance string
	}{
		{"unpaid", "100", "0", "100"},
		{"partial", "100", "25.5", "74.5"},
		{"fully paid", "100", "100", "0"},
		{"overpaid", "100", "120", "-20"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dto := invoiceDTO("inv-"+tc.name, "", tc.total, tc.paid)
			if _, err := upsertInvoice(ctx, store, testScope, dto); err != nil {
				t.Fatalf("upsertInvoice: %v", err)
			}
			row, _ := store.FindInvoice(ctx, testOrg, dto.ExternalId, "pitix")
			if !row.Balance.Equal(money(tc.wantBalance)) {
				t.Fatalf("balance = %s, want %s", row.Balance, tc.wantBalance)
			}
		})
	}
}

func TestUpsertSkipsUnchangedPayload(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	dto := invoiceDTO("i1", "", "100", "0")
	if out, err := upsertInvoice(ctx, store, testScope, dto); err != nil || out != outcomeCreated {
		t.Fatalf("first upsert = (%v, %v), want created", out, err)
	}
	if out, err := upsertInvoice(ctx, store, testScope, dto); err != nil || out != outcomeSkipped {
		t.Fatalf("identical upsert = (%v, %v), want skipped", out, err)
	}

	// Same record with reordered keys still hashes identically.
	reordered := dto
	reordered.RawData = []byte(`{"total":"100","paid":"0","id":"i1"}`)
	if out, err := upsertInvoice(ctx, store, testScope, reordered); err != nil || out != outcomeSkipped {
		t.Fatalf("reordered-keys upsert = (%v, %v), want skipped", out, err)
	}

	changed := invoiceDTO("i1", "", "100", "40")
	if out, err := upsertInvoice(ctx, store, testScope, changed); err != nil || out != outcomeUpdated {
		t.Fatalf("changed upsert = (%v, %v), want updated", out, err)
	}
	row, _ := store.FindInvoice(ctx, testOrg, "i1", "pitix")
	if !row.Balance.Equal(money("60")) {
		t.Fatalf("balance after update = %s, want 60", row.Balance)
	}
}

func TestUpsertWithoutRawDataAlwaysUpdates(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	dto := customerDTO("c1", "Alice")
	dto.RawData = nil
	if out, err := upsertContact(ctx, store, testScope, dto); err != nil || out != outcomeCreated {
		t.Fatalf("first upsert = (%v, %v), want created", out, err)
	}
	// No payload hash available, so change detection is impossible and the
	// row must be rewritten.
	if out, err := upsertContact(ctx, store, testScope, dto); err != nil || out != outcomeUpdated {
		t.Fatalf("second upsert = (%v, %v), want updated", out, err)
	}
}

func TestUpsertRejectsMissingExternalId(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	_, err := upsertContact(ctx, store, testScope, customerDTO("  ", "Nameless"))
	if !errors.Is(err, ErrMissingExternalId) {
		t.Fatalf("err = %v, want ErrMissingExternalId", err)
	}
	if row, _ := store.FindContact(ctx, testOrg, "", "pitix"); row != nil {
		t.Fatalf("no row should be written for a missing external id")
	}
}

func TestUpsertBackfillsForeignKeyOnChange(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	// Invoice arrives before its customer: the link stays null.
	dto := invoiceDTO("i1", "c1", "100", "0")
	if _, err := upsertInvoice(ctx, store, testScope, dto); err != nil {
		t.Fatalf("upsertInvoice: %v", err)
	}
	row, _ := store.FindInvoice(ctx, testOrg, "i1", "pitix")
	if row.ContactId != nil {
		t.Fatalf("unresolved reference should stay null, got %v", *row.ContactId)
	}

	if _, err := upsertContact(ctx, store, testScope, customerDTO("c1", "Alice")); err != nil {
		t.Fatalf("upsertContact: %v", err)
	}

	// The invoice changes upstream, so the next upsert re-resolves the link.
	changed := invoiceDTO("i1", "c1", "100", "10")
	if out, err := upsertInvoice(ctx, store, testScope, changed); err != nil || out != outcomeUpdated {
		t.Fatalf("changed upsert = (%v, %v), want updated", out, err)
	}
	row, _ = store.FindInvoice(ctx, testOrg, "i1", "pitix")
	if row.ContactId == nil {
		t.Fatalf("contact link should be backfilled on update")
	}
}

func TestUpsertScopesByOrganizationAndSource(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	dto := invoiceDTO("i1", "", "100", "0")
	if _, err := upsertInvoice(ctx, store, testScope, dto); err != nil {
		t.Fatalf("upsertInvoice: %v", err)
	}
	other := syncScope{organizationId: "org-2", source: "pitix"}
	if out, err := upsertInvoice(ctx, store, other, dto); err != nil || out != outcomeCreated {
		t.Fatalf("same external id in another organization = (%v, %v), want created", out, err)
	}

	a, _ := store.FindInvoice(ctx, testOrg, "i1", "pitix")
	b, _ := store.FindInvoice(ctx, "org-2", "i1", "pitix")
	if a == nil || b == nil || a.ID == b.ID {
		t.Fatalf("organizations must not share rows: %+v %+v", a, b)
	}
}

func TestUpsertContactNormalizesPhone(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	t.Setenv("DEFAULT_PHONE_REGION", "US")
	dto := customerDTO("c1", "Alice")
	dto.Phone = "(415) 555-2671"
	dto.Mobile = "not-a-number"
	if _, err := upsertContact(ctx, store, testScope, dto); err != nil {
		t.Fatalf("upsertContact: %v", err)
	}
	row, _ := store.FindContact(ctx, testOrg, "c1", "pitix")
	if row.Phone != "+14155552671" {
		t.Fatalf("phone = %q, want E.164 normalized +14155552671", row.Phone)
	}
	if row.Mobile != "not-a-number" {
		t.Fatalf("unparseable input must pass through, got %q", row.Mobile)
	}
}

func TestUpsertJournalEntryStoresLines(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	dto := connector.NormalizedJournalEntry{
		ExternalId:  "j1",
		EntryNumber: "JE-1",
		EntryDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		TotalDebit:  money("50"),
		TotalCredit: money("50"),
		Lines: []connector.NormalizedJournalLine{
			{AccountExternalId: "a1", Debit: money("50")},
			{AccountExternalId: "a2", Credit: money("50")},
		},
		RawData: []byte(`{"id":"j1"}`),
	}
	if out, err := upsertJournalEntry(ctx, store, testScope, dto); err != nil || out != outcomeCreated {
		t.Fatalf("upsertJournalEntry = (%v, %v), want created", out, err)
	}
	row, _ := store.FindJournalEntry(ctx, testOrg, "j1", "pitix")
	if len(row.LinesJSON) == 0 {
		t.Fatalf("journal lines not stored")
	}
}
