package pitix

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmdatafocus/booksync/connector"
	"github.com/shopspring/decimal"
)

func newTestConnector(t *testing.T, handler http.Handler) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("PITIX_API_BASE_URL", srv.URL)
	// Effectively disable throttling so tests don't sleep.
	t.Setenv("PITIX_RATE_LIMIT_PER_MIN", "6000000")

	c, err := NewConnector("test-key")
	if err != nil {
		t.Fatalf("NewConnector: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFetchCustomersTranslatesPagination(t *testing.T) {
	var gotPath, gotKey, gotCursor, gotLimit, gotSince string
	c := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		gotCursor = r.URL.Query().Get("cursor")
		gotLimit = r.URL.Query().Get("limit")
		gotSince = r.URL.Query().Get("updated_since")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": "c1", "name": "Alice", "email": "a@example.com", "phone": "123"},
				{"id": "c2", "name": ""}
			],
			"next_cursor": "abc",
			"has_more": true,
			"total_count": 41
		}`))
	}))

	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	res, err := c.FetchCustomers(context.Background(), connector.FetchOptions{
		UpdatedSince: &since,
		Cursor:       "prev",
		PageSize:     50,
	})
	if err != nil {
		t.Fatalf("FetchCustomers: %v", err)
	}

	if gotPath != "/v1/customers" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if gotCursor != "prev" || gotLimit != "50" {
		t.Fatalf("pagination params = cursor %q limit %q", gotCursor, gotLimit)
	}
	if gotSince != "2026-02-01T00:00:00Z" {
		t.Fatalf("updated_since = %q", gotSince)
	}

	if !res.HasMore || res.NextCursor != "abc" {
		t.Fatalf("pagination result = %+v", res)
	}
	if res.TotalCount == nil || *res.TotalCount != 41 {
		t.Fatalf("total count = %v", res.TotalCount)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	if res.Items[0].ContactType != connector.ContactTypeCustomer || res.Items[0].Name != "Alice" {
		t.Fatalf("first customer = %+v", res.Items[0])
	}
	// A nameless provider record still yields a required display name.
	if res.Items[1].Name != "PitiX Customer c2" {
		t.Fatalf("placeholder name = %q", res.Items[1].Name)
	}
	if len(res.Items[0].RawData) == 0 {
		t.Fatalf("raw payload must be preserved for change detection")
	}
}

func TestFetchInvoicesComputesTotals(t *testing.T) {
	c := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": [
				{
					"id": "s1", "sale_number": "S-1", "sale_date": "2026-03-01",
					"sale_status": "COMPLETED", "payment_status": "PARTIAL",
					"customer_id": "c1", "currency": "USD",
					"net_amount": "100.00", "tax_amount": 5, "shipping_amount": "2.50",
					"paid_amount": "40"
				},
				{
					"id": "s2", "sale_status": "COMPLETED", "payment_status": "PAID",
					"net_amount": "10", "paid_amount": "0"
				}
			]
		}`))
	}))

	res, err := c.FetchInvoices(context.Background(), connector.FetchOptions{PageSize: 10})
	if err != nil {
		t.Fatalf("FetchInvoices: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}

	first := res.Items[0]
	if !first.Total.Equal(decimal.RequireFromString("107.5")) {
		t.Fatalf("total = %s, want 107.5", first.Total)
	}
	if first.Status != connector.InvoiceStatusPartiallyPaid {
		t.Fatalf("status = %s, want partially_paid", first.Status)
	}
	if first.ContactExternalId != "c1" {
		t.Fatalf("contact ref = %q", first.ContactExternalId)
	}

	// A paid sale reporting zero paid_amount is reconciled to its total.
	second := res.Items[1]
	if second.Status != connector.InvoiceStatusPaid {
		t.Fatalf("status = %s, want paid", second.Status)
	}
	if !second.PaidAmount.Equal(second.Total) {
		t.Fatalf("paid = %s, want total %s", second.PaidAmount, second.Total)
	}
	if second.InvoiceNumber != "PITIX-s2" {
		t.Fatalf("fallback invoice number = %q", second.InvoiceNumber)
	}
}

func TestFetchVendorsDerivesFromExpenses(t *testing.T) {
	c := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/expenses" {
			t.Errorf("vendor fetch hit %s, want /v1/expenses", r.URL.Path)
		}
		w.Write([]byte(`{
			"data": [
				{"id": "e1", "amount": "10", "vendor": {"id": "v1", "name": "Acme"}},
				{"id": "e2", "amount": "20", "vendor": {"id": "v1", "name": "Acme"}},
				{"id": "e3", "amount": "30", "vendor": {"id": "v2", "name": ""}},
				{"id": "e4", "amount": "40"}
			]
		}`))
	}))

	res, err := c.FetchVendors(context.Background(), connector.FetchOptions{PageSize: 10})
	if err != nil {
		t.Fatalf("FetchVendors: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("vendors = %d, want 2 distinct", len(res.Items))
	}
	if res.Items[0].ExternalId != "v1" || res.Items[0].ContactType != connector.ContactTypeVendor {
		t.Fatalf("first vendor = %+v", res.Items[0])
	}
	if res.Items[1].Name != "PitiX Vendor v2" {
		t.Fatalf("placeholder vendor name = %q", res.Items[1].Name)
	}
}

func TestFetchBillsMapsExpenses(t *testing.T) {
	c := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items": [
				{
					"id": "e1", "expense_number": "EXP-1", "expense_date": "2026-03-05",
					"status": "PAID", "currency": "USD",
					"amount": "200", "tax_amount": "10", "paid_amount": "0",
					"vendor": {"id": "v1", "name": "Acme"},
					"description": "office supplies"
				}
			]
		}`))
	}))

	res, err := c.FetchBills(context.Background(), connector.FetchOptions{PageSize: 10})
	if err != nil {
		t.Fatalf("FetchBills: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(res.Items))
	}
	bill := res.Items[0]
	if !bill.Total.Equal(decimal.RequireFromString("210")) {
		t.Fatalf("total = %s, want 210", bill.Total)
	}
	if bill.Status != connector.BillStatusPaid || !bill.PaidAmount.Equal(bill.Total) {
		t.Fatalf("paid reconciliation failed: %+v", bill)
	}
	if bill.VendorExternalId != "v1" {
		t.Fatalf("vendor ref = %q", bill.VendorExternalId)
	}
	if res.HasMore {
		t.Fatalf("single page must not report more data")
	}
}

func TestFetchAccountsSynthesizesDefaults(t *testing.T) {
	c := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("accounts must not hit the API, got %s", r.URL.Path)
	}))

	res, err := c.FetchAccounts(context.Background(), connector.FetchOptions{PageSize: 10})
	if err != nil {
		t.Fatalf("FetchAccounts: %v", err)
	}
	if len(res.Items) != 5 || res.HasMore {
		t.Fatalf("accounts = %d hasMore=%v, want 5 on one page", len(res.Items), res.HasMore)
	}
	if res.Items[0].ExternalId != "pitix-default-1000" {
		t.Fatalf("external id = %q", res.Items[0].ExternalId)
	}

	// Stable ids and payloads: a re-fetch returns the same set.
	again, _ := c.FetchAccounts(context.Background(), connector.FetchOptions{PageSize: 10})
	for i := range res.Items {
		if res.Items[i].ExternalId != again.Items[i].ExternalId {
			t.Fatalf("synthesized ids must be stable")
		}
	}
}

func TestUnsupportedEntityTypesReturnEmpty(t *testing.T) {
	c := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unsupported types must not hit the API, got %s", r.URL.Path)
	}))

	bank, err := c.FetchBankTransactions(context.Background(), connector.FetchOptions{})
	if err != nil || len(bank.Items) != 0 || bank.HasMore {
		t.Fatalf("bank transactions = (%+v, %v), want empty", bank, err)
	}
	journals, err := c.FetchJournalEntries(context.Background(), connector.FetchOptions{})
	if err != nil || len(journals.Items) != 0 || journals.HasMore {
		t.Fatalf("journal entries = (%+v, %v), want empty", journals, err)
	}
}

func TestTestConnection(t *testing.T) {
	ok := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	if !ok.TestConnection(context.Background()) {
		t.Fatalf("healthy endpoint should report true")
	}

	unauthorized := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	if unauthorized.TestConnection(context.Background()) {
		t.Fatalf("401 should report false, not error")
	}
}

func TestFetchSurfacesAPIErrors(t *testing.T) {
	c := newTestConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))

	_, err := c.FetchCustomers(context.Background(), connector.FetchOptions{PageSize: 10})
	if err == nil {
		t.Fatalf("500 must surface as an error")
	}
}

func TestSaleStatusMapping(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name          string
		saleStatus    string
		paymentStatus string
		dueDate       *time.Time
		want          connector.InvoiceStatus
	}{
		{"draft", "DRAFT", "", nil, connector.InvoiceStatusDraft},
		{"void", "VOID", "PAID", nil, connector.InvoiceStatusVoid},
		{"canceled", "CANCELED", "", nil, connector.InvoiceStatusCancelled},
		{"paid", "COMPLETED", "PAID", &past, connector.InvoiceStatusPaid},
		{"partial", "COMPLETED", "PARTIAL", &future, connector.InvoiceStatusPartiallyPaid},
		{"partial past due", "COMPLETED", "PARTIAL", &past, connector.InvoiceStatusOverdue},
		{"unpaid", "COMPLETED", "UNPAID", &future, connector.InvoiceStatusSent},
		{"unpaid past due", "COMPLETED", "UNPAID", &past, connector.InvoiceStatusOverdue},
		{"unpaid no due date", "COMPLETED", "UNPAID", nil, connector.InvoiceStatusSent},
		{"unknown values default", "SOMETHING_NEW", "MYSTERY", &future, connector.InvoiceStatusSent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapSaleStatus(tc.saleStatus, tc.paymentStatus, tc.dueDate, now)
			if got != tc.want {
				t.Fatalf("mapSaleStatus(%q, %q) = %s, want %s", tc.saleStatus, tc.paymentStatus, got, tc.want)
			}
		})
	}
}

func TestExpenseStatusMapping(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		status  string
		dueDate *time.Time
		want    connector.BillStatus
	}{
		{"draft", "DRAFT", nil, connector.BillStatusDraft},
		{"paid", "PAID", &past, connector.BillStatusPaid},
		{"partial", "PARTIAL", &future, connector.BillStatusPartiallyPaid},
		{"approved past due", "APPROVED", &past, connector.BillStatusOverdue},
		{"open", "OPEN", &future, connector.BillStatusReceived},
		{"unknown defaults to received", "WEIRD", nil, connector.BillStatusReceived},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapExpenseStatus(tc.status, tc.dueDate, now)
			if got != tc.want {
				t.Fatalf("mapExpenseStatus(%q) = %s, want %s", tc.status, got, tc.want)
			}
		})
	}
}
