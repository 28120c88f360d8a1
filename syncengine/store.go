package syncengine

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/booksync/config"
	"github.com/mmdatafocus/booksync/models"
	"gorm.io/gorm"
)

// Store is the persistence boundary of the sync engine. The orchestrator and
// the upsert functions only ever talk to this interface, so tests can inject
// an in-memory implementation.
//
// Find* return (nil, nil) when the row does not exist. The *ID lookups
// resolve a foreign key by the (organization_id, external_id, source) triple
// and return (nil, nil) when unresolved; an unresolved reference is tolerated,
// not an error.
type Store interface {
	// InPage runs fn inside one transaction. The engine calls it once per
	// fetched page so partial progress survives a mid-run crash.
	InPage(ctx context.Context, fn func(Store) error) error

	FindAccount(ctx context.Context, organizationId, externalId, source string) (*models.Account, error)
	SaveAccount(ctx context.Context, row *models.Account) error
	FindContact(ctx context.Context, organizationId, externalId, source string) (*models.Contact, error)
	SaveContact(ctx context.Context, row *models.Contact) error
	FindInvoice(ctx context.Context, organizationId, externalId, source string) (*models.Invoice, error)
	SaveInvoice(ctx context.Context, row *models.Invoice) error
	FindBill(ctx context.Context, organizationId, externalId, source string) (*models.Bill, error)
	SaveBill(ctx context.Context, row *models.Bill) error
	FindPayment(ctx context.Context, organizationId, externalId, source string) (*models.Payment, error)
	SavePayment(ctx context.Context, row *models.Payment) error
	FindBankTransaction(ctx context.Context, organizationId, externalId, source string) (*models.BankTransaction, error)
	SaveBankTransaction(ctx context.Context, row *models.BankTransaction) error
	FindJournalEntry(ctx context.Context, organizationId, externalId, source string) (*models.JournalEntry, error)
	SaveJournalEntry(ctx context.Context, row *models.JournalEntry) error

	AccountID(ctx context.Context, organizationId, externalId, source string) (*int, error)
	ContactID(ctx context.Context, organizationId, externalId, source string) (*int, error)
	InvoiceID(ctx context.Context, organizationId, externalId, source string) (*int, error)
	BillID(ctx context.Context, organizationId, externalId, source string) (*int, error)

	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	UpdateSyncRun(ctx context.Context, run *models.SyncRun) error
	GetSyncRun(ctx context.Context, organizationId string, id uint) (*models.SyncRun, error)
	ListSyncRuns(ctx context.Context, organizationId string, limit int) ([]models.SyncRun, error)

	GetConnection(ctx context.Context, organizationId string) (*models.IntegrationConnection, error)
	SaveConnection(ctx context.Context, conn *models.IntegrationConnection) error
	TouchConnectionSynced(ctx context.Context, connectionId uint, at time.Time, success bool) error
}

type gormStore struct {
	db func() *gorm.DB
}

// NewGormStore wraps an already-connected *gorm.DB.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: func() *gorm.DB { return db }}
}

// NewRuntimeStore resolves the global DB on every call, so the engine can be
// constructed before config.ConnectDatabaseWithRetry has finished (the
// service's readiness middleware keeps traffic out until then).
func NewRuntimeStore() Store {
	return &gormStore{db: config.GetDB}
}

func (g *gormStore) InPage(ctx context.Context, fn func(Store) error) error {
	return g.db().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: func() *gorm.DB { return tx }})
	})
}

func findByTriple[T any](ctx context.Context, db *gorm.DB, organizationId, externalId, source string) (*T, error) {
	var row T
	err := db.WithContext(ctx).
		Where("organization_id = ? AND external_id = ? AND source = ?", organizationId, externalId, source).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (g *gormStore) FindAccount(ctx context.Context, organizationId, externalId, source string) (*models.Account, error) {
	return findByTriple[models.Account](ctx, g.db(), organizationId, externalId, source)
}

func (g *gormStore) SaveAccount(ctx context.Context, row *models.Account) error {
	return g.db().WithContext(ctx).Save(row).Error
}

func (g *gormStore) FindContact(ctx context.Context, organizationId, externalId, source string) (*models.Contact, error) {
	return findByTriple[models.Contact](ctx, g.db(), organizationId, externalId, source)
}

func (g *gormStore) SaveContact(ctx context.Context, row *models.Contact) error {
	return g.db().WithContext(ctx).Save(row).Error
}

func (g *gormStore) FindInvoice(ctx context.Context, organizationId, externalId, source string) (*models.Invoice, error) {
	return findByTriple[models.Invoice](ctx, g.db(), organizationId, externalId, source)
}

func (g *gormStore) SaveInvoice(ctx context.Context, row *models.Invoice) error {
	return g.db().WithContext(ctx).Save(row).Error
}

func (g *gormStore) FindBill(ctx context.Context, organizationId, externalId, source string) (*models.Bill, error) {
	return findByTriple[models.Bill](ctx, g.db(), organizationId, externalId, source)
}

func (g *gormStore) SaveBill(ctx context.Context, row *models.Bill) error {
	return g.db().WithContext(ctx).Save(row).Error
}

func (g *gormStore) FindPayment(ctx context.Context, organizationId, externalId, source string) (*models.Payment, error) {
	return findByTriple[models.Payment](ctx, g.db(), organizationId, externalId, source)
}

func (g *gormStore) SavePayment(ctx context.Context, row *models.Payment) error {
	return g.db().WithContext(ctx).Save(row).Error
}

func (g *gormStore) FindBankTransaction(ctx context.Context, organizationId, externalId, source string) (*models.BankTransaction, error) {
	return findByTriple[models.BankTransaction](ctx, g.db(), organizationId, externalId, source)
}

func (g *gormStore) SaveBankTransaction(ctx context.Context, row *models.BankTransaction) error {
	return g.db().WithContext(ctx).Save(row).Error
}

func (g *gormStore) FindJournalEntry(ctx context.Context, organizationId, externalId, source string) (*models.JournalEntry, error) {
	return findByTriple[models.JournalEntry](ctx, g.db(), organizationId, externalId, source)
}

func (g *gormStore) SaveJournalEntry(ctx context.Context, row *models.JournalEntry) error {
	return g.db().WithContext(ctx).Save(row).Error
}

func (g *gormStore) AccountID(ctx context.Context, organizationId, externalId, source string) (*int, error) {
	row, err := g.FindAccount(ctx, organizationId, externalId, source)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.ID, nil
}

func (g *gormStore) ContactID(ctx context.Context, organizationId, externalId, source string) (*int, error) {
	row, err := g.FindContact(ctx, organizationId, externalId, source)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.ID, nil
}

func (g *gormStore) InvoiceID(ctx context.Context, organizationId, externalId, source string) (*int, error) {
	row, err := g.FindInvoice(ctx, organizationId, externalId, source)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.ID, nil
}

func (g *gormStore) BillID(ctx context.Context, organizationId, externalId, source string) (*int, error) {
	row, err := g.FindBill(ctx, organizationId, externalId, source)
	if err != nil || row == nil {
		return nil, err
	}
	return &row.ID, nil
}

func (g *gormStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	return g.db().WithContext(ctx).Create(run).Error
}

func (g *gormStore) UpdateSyncRun(ctx context.Context, run *models.SyncRun) error {
	return g.db().WithContext(ctx).Save(run).Error
}

func (g *gormStore) GetSyncRun(ctx context.Context, organizationId string, id uint) (*models.SyncRun, error) {
	var run models.SyncRun
	err := g.db().WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, organizationId).
		Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (g *gormStore) ListSyncRuns(ctx context.Context, organizationId string, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := g.db().WithContext(ctx).
		Where("organization_id = ?", organizationId).
		Order("id desc").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (g *gormStore) GetConnection(ctx context.Context, organizationId string) (*models.IntegrationConnection, error) {
	var conn models.IntegrationConnection
	err := g.db().WithContext(ctx).
		Where("organization_id = ?", organizationId).
		Take(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (g *gormStore) SaveConnection(ctx context.Context, conn *models.IntegrationConnection) error {
	return g.db().WithContext(ctx).Save(conn).Error
}

func (g *gormStore) TouchConnectionSynced(ctx context.Context, connectionId uint, at time.Time, success bool) error {
	updates := map[string]interface{}{
		"last_sync_at": at,
	}
	if success {
		updates["last_success_sync_at"] = at
	}
	return g.db().WithContext(ctx).
		Model(&models.IntegrationConnection{}).
		Where("id = ?", connectionId).
		Updates(updates).Error
}
