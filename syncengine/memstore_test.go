package syncengine

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mmdatafocus/booksync/connector"
	"github.com/mmdatafocus/booksync/models"
)

// memStore is a map-backed Store used by the engine tests; no database
// involved. Transactions are a pass-through: the engine's page loop is
// exercised, rollback semantics are the DB's job.
type memStore struct {
	mu sync.Mutex

	nextRowId int
	nextRunId uint

	accounts    map[string]*models.Account
	contacts    map[string]*models.Contact
	invoices    map[string]*models.Invoice
	bills       map[string]*models.Bill
	payments    map[string]*models.Payment
	bankTxns    map[string]*models.BankTransaction
	journals    map[string]*models.JournalEntry
	runs        map[uint]*models.SyncRun
	connections map[string]*models.IntegrationConnection
}

func newMemStore() *memStore {
	return &memStore{
		accounts:    map[string]*models.Account{},
		contacts:    map[string]*models.Contact{},
		invoices:    map[string]*models.Invoice{},
		bills:       map[string]*models.Bill{},
		payments:    map[string]*models.Payment{},
		bankTxns:    map[string]*models.BankTransaction{},
		journals:    map[string]*models.JournalEntry{},
		runs:        map[uint]*models.SyncRun{},
		connections: map[string]*models.IntegrationConnection{},
	}
}

func tripleKey(organizationId, externalId, source string) string {
	return organizationId + "|" + externalId + "|" + source
}

func (m *memStore) InPage(ctx context.Context, fn func(Store) error) error {
	return fn(m)
}

func (m *memStore) allocRowId() int {
	m.nextRowId++
	return m.nextRowId
}

func (m *memStore) FindAccount(ctx context.Context, organizationId, externalId, source string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.accounts[tripleKey(organizationId, externalId, source)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) SaveAccount(ctx context.Context, row *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.allocRowId()
	}
	cp := *row
	m.accounts[tripleKey(row.OrganizationId, row.ExternalId, row.Source)] = &cp
	return nil
}

func (m *memStore) FindContact(ctx context.Context, organizationId, externalId, source string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.contacts[tripleKey(organizationId, externalId, source)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) SaveContact(ctx context.Context, row *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.allocRowId()
	}
	cp := *row
	m.contacts[tripleKey(row.OrganizationId, row.ExternalId, row.Source)] = &cp
	return nil
}

func (m *memStore) FindInvoice(ctx context.Context, organizationId, externalId, source string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.invoices[tripleKey(organizationId, externalId, source)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) SaveInvoice(ctx context.Context, row *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.allocRowId()
	}
	cp := *row
	m.invoices[tripleKey(row.OrganizationId, row.ExternalId, row.Source)] = &cp
	return nil
}

func (m *memStore) FindBill(ctx context.Context, organizationId, externalId, source string) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.bills[tripleKey(organizationId, externalId, source)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) SaveBill(ctx context.Context, row *models.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.allocRowId()
	}
	cp := *row
	m.bills[tripleKey(row.OrganizationId, row.ExternalId, row.Source)] = &cp
	return nil
}

func (m *memStore) FindPayment(ctx context.Context, organizationId, externalId, source string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.payments[tripleKey(organizationId, externalId, source)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) SavePayment(ctx context.Context, row *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.allocRowId()
	}
	cp := *row
	m.payments[tripleKey(row.OrganizationId, row.ExternalId, row.Source)] = &cp
	return nil
}

func (m *memStore) FindBankTransaction(ctx context.Context, organizationId, externalId, source string) (*models.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.bankTxns[tripleKey(organizationId, externalId, source)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) SaveBankTransaction(ctx context.Context, row *models.BankTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.allocRowId()
	}
	cp := *row
	m.bankTxns[tripleKey(row.OrganizationId, row.ExternalId, row.Source)] = &cp
	return nil
}

func (m *memStore) FindJournalEntry(ctx context.Context, organizationId, externalId, source string) (*models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.journals[tripleKey(organizationId, externalId, source)]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) SaveJournalEntry(ctx context.Context, row *models.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.allocRowId()
	}
	cp := *row
	m.journals[tripleKey(row.OrganizationId, row.ExternalId, row.Source)] = &cp
	return nil
}

func (m *memStore) AccountID(ctx context.Context, organizationId, externalId, source string) (*int, error) {
	row, err := m.FindAccount(ctx, organizationId, externalId, source)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.ID, nil
}

func (m *memStore) ContactID(ctx context.Context, organizationId, externalId, source string) (*int, error) {
	row, err := m.FindContact(ctx, organizationId, externalId, source)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.ID, nil
}

func (m *memStore) InvoiceID(ctx context.Context, organizationId, externalId, source string) (*int, error) {
	row, err := m.FindInvoice(ctx, organizationId, externalId, source)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.ID, nil
}

func (m *memStore) BillID(ctx context.Context, organizationId, externalId, source string) (*int, error) {
	row, err := m.FindBill(ctx, organizationId, externalId, source)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.ID, nil
}

func (m *memStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRunId++
	run.ID = m.nextRunId
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memStore) UpdateSyncRun(ctx context.Context, run *models.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("run %d does not exist", run.ID)
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memStore) GetSyncRun(ctx context.Context, organizationId string, id uint) (*models.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok || run.OrganizationId != organizationId {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (m *memStore) ListSyncRuns(ctx context.Context, organizationId string, limit int) ([]models.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []models.SyncRun
	for id := m.nextRunId; id >= 1 && len(runs) < limit; id-- {
		if run, ok := m.runs[id]; ok && run.OrganizationId == organizationId {
			runs = append(runs, *run)
		}
	}
	return runs, nil
}

func (m *memStore) GetConnection(ctx context.Context, organizationId string) (*models.IntegrationConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[organizationId]
	if !ok {
		return nil, nil
	}
	cp := *conn
	return &cp, nil
}

func (m *memStore) SaveConnection(ctx context.Context, conn *models.IntegrationConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn.ID == 0 {
		conn.ID = uint(len(m.connections) + 1)
	}
	cp := *conn
	m.connections[conn.OrganizationId] = &cp
	return nil
}

func (m *memStore) TouchConnectionSynced(ctx context.Context, connectionId uint, at time.Time, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range m.connections {
		if conn.ID == connectionId {
			t := at
			conn.LastSyncAt = &t
			if success {
				conn.LastSuccessSyncAt = &t
			}
		}
	}
	return nil
}

// pageSet scripts one entity type's pagination for the fake connector. Pages
// are addressed by a numeric cursor; failOnPage >= 0 makes that fetch fail,
// and dropCursor simulates a provider that claims has_more without a cursor.
type pageSet[T any] struct {
	pages      [][]T
	failOnPage int
	failErr    error
	dropCursor bool
	delay      time.Duration

	calls    int
	lastOpts connector.FetchOptions
}

func singlePage[T any](items ...T) pageSet[T] {
	return pageSet[T]{pages: [][]T{items}, failOnPage: -1}
}

func multiPage[T any](pages ...[]T) pageSet[T] {
	return pageSet[T]{pages: pages, failOnPage: -1}
}

func failingPages[T any](err error) pageSet[T] {
	return pageSet[T]{failOnPage: 0, failErr: err}
}

func (p *pageSet[T]) fetch(opts connector.FetchOptions) (connector.FetchResult[T], error) {
	p.calls++
	p.lastOpts = opts
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	idx := 0
	if opts.Cursor != "" {
		idx, _ = strconv.Atoi(opts.Cursor)
	}
	if p.failErr != nil && idx == p.failOnPage {
		return connector.FetchResult[T]{}, p.failErr
	}
	if idx >= len(p.pages) {
		return connector.Empty[T](), nil
	}

	hasMore := idx < len(p.pages)-1
	next := ""
	if hasMore && !p.dropCursor {
		next = strconv.Itoa(idx + 1)
	}
	return connector.FetchResult[T]{
		Items:      p.pages[idx],
		HasMore:    hasMore,
		NextCursor: next,
	}, nil
}

// fakeConnector serves scripted pages for every entity type.
type fakeConnector struct {
	accounts  pageSet[connector.NormalizedAccount]
	customers pageSet[connector.NormalizedContact]
	vendors   pageSet[connector.NormalizedContact]
	invoices  pageSet[connector.NormalizedInvoice]
	bills     pageSet[connector.NormalizedBill]
	payments  pageSet[connector.NormalizedPayment]
	bankTxns  pageSet[connector.NormalizedBankTransaction]
	journals  pageSet[connector.NormalizedJournalEntry]

	closed int
}

func (f *fakeConnector) FetchAccounts(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedAccount], error) {
	return f.accounts.fetch(opts)
}

func (f *fakeConnector) FetchCustomers(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedContact], error) {
	return f.customers.fetch(opts)
}

func (f *fakeConnector) FetchVendors(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedContact], error) {
	return f.vendors.fetch(opts)
}

func (f *fakeConnector) FetchInvoices(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedInvoice], error) {
	return f.invoices.fetch(opts)
}

func (f *fakeConnector) FetchBills(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedBill], error) {
	return f.bills.fetch(opts)
}

func (f *fakeConnector) FetchPayments(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedPayment], error) {
	return f.payments.fetch(opts)
}

func (f *fakeConnector) FetchBankTransactions(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedBankTransaction], error) {
	return f.bankTxns.fetch(opts)
}

func (f *fakeConnector) FetchJournalEntries(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedJournalEntry], error) {
	return f.journals.fetch(opts)
}

func (f *fakeConnector) TestConnection(ctx context.Context) bool { return true }

func (f *fakeConnector) Close() error {
	f.closed++
	return nil
}

type fakeFactory struct {
	ac           connector.AccountingConnector
	connectionId uint
	source       string
	err          error
}

func (f *fakeFactory) ConnectorFor(ctx context.Context, organizationId string) (connector.AccountingConnector, uint, string, error) {
	if f.err != nil {
		return nil, 0, "", f.err
	}
	return f.ac, f.connectionId, f.source, nil
}
