package connector

// EntityType is the closed set of entity kinds the sync engine knows how to
// fetch and reconcile. Adding a value here requires a matching fetch method on
// AccountingConnector and an upsert branch in the engine.
type EntityType string

const (
	EntityAccounts         EntityType = "accounts"
	EntityCustomers        EntityType = "customers"
	EntityVendors          EntityType = "vendors"
	EntityInvoices         EntityType = "invoices"
	EntityBills            EntityType = "bills"
	EntityPayments         EntityType = "payments"
	EntityBankTransactions EntityType = "bank_transactions"
	EntityJournalEntries   EntityType = "journal_entries"
)

// EntityOrder is the fixed dependency order for one sync run. Invoices, bills
// and payments resolve foreign keys against contacts and accounts written
// earlier in the same run, so this order is load-bearing and must not be
// shuffled or parallelized.
var EntityOrder = []EntityType{
	EntityAccounts,
	EntityCustomers,
	EntityVendors,
	EntityInvoices,
	EntityBills,
	EntityPayments,
	EntityBankTransactions,
	EntityJournalEntries,
}

func ParseEntityType(s string) (EntityType, bool) {
	for _, et := range EntityOrder {
		if string(et) == s {
			return et, true
		}
	}
	return "", false
}
