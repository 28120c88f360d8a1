// Package pitix implements the AccountingConnector contract against the PitiX
// POS API. PitiX has no chart-of-accounts, bank-feed or journal API and no
// vendor concept separate from its expense documents, so this connector
// synthesizes default accounts, derives vendors from expenses, maps expenses
// into bills, and reports bank transactions and journal entries as empty.
package pitix

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/booksync/connector"
	"github.com/shopspring/decimal"
)

type Connector struct {
	client *client
}

var _ connector.AccountingConnector = (*Connector)(nil)

func NewConnector(apiKey string) (*Connector, error) {
	c, err := newClient(apiKey)
	if err != nil {
		return nil, err
	}
	return &Connector{client: c}, nil
}

// Provider record shapes. Amount fields arrive as json.Number because PitiX
// emits them inconsistently as strings or numbers.

type pitixCustomer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Mobile    string `json:"mobile"`
	Currency  string `json:"currency"`
	UpdatedAt string `json:"updated_at"`
}

type pitixVendor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type pitixSale struct {
	ID             string      `json:"id"`
	SaleNumber     string      `json:"sale_number"`
	SaleDate       string      `json:"sale_date"`
	DueDate        string      `json:"due_date"`
	SaleStatus     string      `json:"sale_status"`
	PaymentStatus  string      `json:"payment_status"`
	CustomerId     string      `json:"customer_id"`
	Currency       string      `json:"currency"`
	NetAmount      json.Number `json:"net_amount"`
	TaxAmount      json.Number `json:"tax_amount"`
	DiscountAmount json.Number `json:"discount_amount"`
	ShippingAmount json.Number `json:"shipping_amount"`
	PaidAmount     json.Number `json:"paid_amount"`
	Notes          string      `json:"notes"`
}

type pitixExpense struct {
	ID            string      `json:"id"`
	ExpenseNumber string      `json:"expense_number"`
	ExpenseDate   string      `json:"expense_date"`
	DueDate       string      `json:"due_date"`
	Status        string      `json:"status"`
	Vendor        pitixVendor `json:"vendor"`
	Currency      string      `json:"currency"`
	Amount        json.Number `json:"amount"`
	TaxAmount     json.Number `json:"tax_amount"`
	PaidAmount    json.Number `json:"paid_amount"`
	Description   string      `json:"description"`
}

type pitixPayment struct {
	ID            string      `json:"id"`
	PaymentNumber string      `json:"payment_number"`
	PaymentDate   string      `json:"payment_date"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	Method        string      `json:"method"`
	CustomerId    string      `json:"customer_id"`
	SaleId        string      `json:"sale_id"`
	ExpenseId     string      `json:"expense_id"`
}

func (c *Connector) FetchCustomers(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedContact], error) {
	resp, err := c.client.getList(ctx, "/v1/customers", listParams(toParams(opts)))
	if err != nil {
		return connector.FetchResult[connector.NormalizedContact]{}, err
	}

	items := make([]connector.NormalizedContact, 0, len(resp.records()))
	for _, raw := range resp.records() {
		var cust pitixCustomer
		if err := json.Unmarshal(raw, &cust); err != nil {
			return connector.FetchResult[connector.NormalizedContact]{}, fmt.Errorf("decode pitix customer: %w", err)
		}
		name := strings.TrimSpace(cust.Name)
		if name == "" {
			name = "PitiX Customer " + strings.TrimSpace(cust.ID)
		}
		items = append(items, connector.NormalizedContact{
			ExternalId:  strings.TrimSpace(cust.ID),
			ContactType: connector.ContactTypeCustomer,
			Name:        name,
			Email:       strings.TrimSpace(cust.Email),
			Phone:       strings.TrimSpace(cust.Phone),
			Mobile:      strings.TrimSpace(cust.Mobile),
			Currency:    strings.TrimSpace(cust.Currency),
			RawData:     raw,
		})
	}
	return pageResult(items, resp), nil
}

// FetchVendors walks the expense endpoint and surfaces each page's distinct
// embedded vendors. The same vendor reappearing on a later page is harmless:
// the upsert layer dedupes on external id.
func (c *Connector) FetchVendors(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedContact], error) {
	resp, err := c.client.getList(ctx, "/v1/expenses", listParams(toParams(opts)))
	if err != nil {
		return connector.FetchResult[connector.NormalizedContact]{}, err
	}

	seen := map[string]bool{}
	items := make([]connector.NormalizedContact, 0)
	for _, raw := range resp.records() {
		var exp pitixExpense
		if err := json.Unmarshal(raw, &exp); err != nil {
			return connector.FetchResult[connector.NormalizedContact]{}, fmt.Errorf("decode pitix expense: %w", err)
		}
		vendorID := strings.TrimSpace(exp.Vendor.ID)
		if vendorID == "" || seen[vendorID] {
			continue
		}
		seen[vendorID] = true

		name := strings.TrimSpace(exp.Vendor.Name)
		if name == "" {
			name = "PitiX Vendor " + vendorID
		}
		vendorRaw, _ := json.Marshal(exp.Vendor)
		items = append(items, connector.NormalizedContact{
			ExternalId:  vendorID,
			ContactType: connector.ContactTypeVendor,
			Name:        name,
			Email:       strings.TrimSpace(exp.Vendor.Email),
			Phone:       strings.TrimSpace(exp.Vendor.Phone),
			RawData:     vendorRaw,
		})
	}
	return pageResult(items, resp), nil
}

func (c *Connector) FetchInvoices(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedInvoice], error) {
	resp, err := c.client.getList(ctx, "/v1/sales", listParams(toParams(opts)))
	if err != nil {
		return connector.FetchResult[connector.NormalizedInvoice]{}, err
	}

	now := time.Now()
	items := make([]connector.NormalizedInvoice, 0, len(resp.records()))
	for _, raw := range resp.records() {
		var sale pitixSale
		if err := json.Unmarshal(raw, &sale); err != nil {
			return connector.FetchResult[connector.NormalizedInvoice]{}, fmt.Errorf("decode pitix sale: %w", err)
		}

		total := decimalFromNumber(sale.NetAmount).
			Add(decimalFromNumber(sale.TaxAmount)).
			Add(decimalFromNumber(sale.ShippingAmount))
		dueDate := parseTimeOrNil(sale.DueDate)
		status := mapSaleStatus(sale.SaleStatus, sale.PaymentStatus, dueDate, now)
		paid := paidAmountForSale(sale, total, status)

		number := strings.TrimSpace(sale.SaleNumber)
		if number == "" {
			number = "PITIX-" + strings.TrimSpace(sale.ID)
		}

		items = append(items, connector.NormalizedInvoice{
			ExternalId:        strings.TrimSpace(sale.ID),
			InvoiceNumber:     number,
			ContactExternalId: strings.TrimSpace(sale.CustomerId),
			IssueDate:         parseTimeOrNow(sale.SaleDate),
			DueDate:           dueDate,
			Status:            status,
			Currency:          strings.TrimSpace(sale.Currency),
			Total:             total,
			PaidAmount:        paid,
			Memo:              strings.TrimSpace(sale.Notes),
			RawData:           raw,
		})
	}
	return pageResult(items, resp), nil
}

// FetchBills maps PitiX expense documents into bills; the provider has no
// standalone bill concept.
func (c *Connector) FetchBills(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedBill], error) {
	resp, err := c.client.getList(ctx, "/v1/expenses", listParams(toParams(opts)))
	if err != nil {
		return connector.FetchResult[connector.NormalizedBill]{}, err
	}

	now := time.Now()
	items := make([]connector.NormalizedBill, 0, len(resp.records()))
	for _, raw := range resp.records() {
		var exp pitixExpense
		if err := json.Unmarshal(raw, &exp); err != nil {
			return connector.FetchResult[connector.NormalizedBill]{}, fmt.Errorf("decode pitix expense: %w", err)
		}

		total := decimalFromNumber(exp.Amount).Add(decimalFromNumber(exp.TaxAmount))
		dueDate := parseTimeOrNil(exp.DueDate)
		status := mapExpenseStatus(exp.Status, dueDate, now)
		paid := decimalFromNumber(exp.PaidAmount)
		if status == connector.BillStatusPaid && paid.IsZero() {
			paid = total
		}

		number := strings.TrimSpace(exp.ExpenseNumber)
		if number == "" {
			number = "PITIX-EXP-" + strings.TrimSpace(exp.ID)
		}

		items = append(items, connector.NormalizedBill{
			ExternalId:       strings.TrimSpace(exp.ID),
			BillNumber:       number,
			VendorExternalId: strings.TrimSpace(exp.Vendor.ID),
			IssueDate:        parseTimeOrNow(exp.ExpenseDate),
			DueDate:          dueDate,
			Status:           status,
			Currency:         strings.TrimSpace(exp.Currency),
			Total:            total,
			PaidAmount:       paid,
			Memo:             strings.TrimSpace(exp.Description),
			RawData:          raw,
		})
	}
	return pageResult(items, resp), nil
}

func (c *Connector) FetchPayments(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedPayment], error) {
	resp, err := c.client.getList(ctx, "/v1/payments", listParams(toParams(opts)))
	if err != nil {
		return connector.FetchResult[connector.NormalizedPayment]{}, err
	}

	items := make([]connector.NormalizedPayment, 0, len(resp.records()))
	for _, raw := range resp.records() {
		var pay pitixPayment
		if err := json.Unmarshal(raw, &pay); err != nil {
			return connector.FetchResult[connector.NormalizedPayment]{}, fmt.Errorf("decode pitix payment: %w", err)
		}
		items = append(items, connector.NormalizedPayment{
			ExternalId:        strings.TrimSpace(pay.ID),
			PaymentNumber:     strings.TrimSpace(pay.PaymentNumber),
			PaymentDate:       parseTimeOrNow(pay.PaymentDate),
			Amount:            decimalFromNumber(pay.Amount),
			Currency:          strings.TrimSpace(pay.Currency),
			Method:            strings.TrimSpace(pay.Method),
			ContactExternalId: strings.TrimSpace(pay.CustomerId),
			InvoiceExternalId: strings.TrimSpace(pay.SaleId),
			BillExternalId:    strings.TrimSpace(pay.ExpenseId),
			RawData:           raw,
		})
	}
	return pageResult(items, resp), nil
}

// FetchAccounts synthesizes the fixed default chart; PitiX has no
// chart-of-accounts API. The raw payload is a small static document so
// re-syncs short-circuit on the payload hash.
func (c *Connector) FetchAccounts(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedAccount], error) {
	items := make([]connector.NormalizedAccount, 0, len(defaultAccounts))
	for _, acc := range defaultAccounts {
		raw, _ := json.Marshal(map[string]string{
			"code": acc.code,
			"name": acc.name,
			"type": string(acc.accountType),
		})
		items = append(items, connector.NormalizedAccount{
			ExternalId:  "pitix-default-" + acc.code,
			Name:        acc.name,
			Code:        acc.code,
			AccountType: acc.accountType,
			Description: "Default account for PitiX imports",
			IsActive:    true,
			RawData:     raw,
		})
	}
	return connector.FetchResult[connector.NormalizedAccount]{Items: items, HasMore: false}, nil
}

var defaultAccounts = []struct {
	code        string
	name        string
	accountType connector.AccountType
}{
	{"1000", "Cash", connector.AccountTypeAsset},
	{"1100", "Accounts Receivable", connector.AccountTypeAsset},
	{"2000", "Accounts Payable", connector.AccountTypeLiability},
	{"4000", "Sales", connector.AccountTypeIncome},
	{"5000", "Cost of Goods Sold", connector.AccountTypeExpense},
}

// PitiX has no bank feed; nothing to sync is not a failure.
func (c *Connector) FetchBankTransactions(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedBankTransaction], error) {
	return connector.Empty[connector.NormalizedBankTransaction](), nil
}

// PitiX has no general ledger.
func (c *Connector) FetchJournalEntries(ctx context.Context, opts connector.FetchOptions) (connector.FetchResult[connector.NormalizedJournalEntry], error) {
	return connector.Empty[connector.NormalizedJournalEntry](), nil
}

func (c *Connector) TestConnection(ctx context.Context) bool {
	_, err := c.client.getList(ctx, "/v1/customers", listParams(fetchParams{limit: 1}))
	return err == nil
}

func (c *Connector) Close() error {
	if c.client != nil && c.client.http != nil {
		c.client.http.CloseIdleConnections()
	}
	return nil
}

func toParams(opts connector.FetchOptions) fetchParams {
	p := fetchParams{
		cursor: strings.TrimSpace(opts.Cursor),
		limit:  opts.PageSize,
	}
	if p.limit <= 0 {
		p.limit = 200
	}
	if opts.UpdatedSince != nil {
		p.updatedSince = opts.UpdatedSince.UTC().Format(time.RFC3339)
	}
	return p
}

func pageResult[T any](items []T, resp listResponse) connector.FetchResult[T] {
	return connector.FetchResult[T]{
		Items:      items,
		HasMore:    resp.hasMore(),
		NextCursor: resp.NextCursor,
		TotalCount: resp.TotalCount,
	}
}

func paidAmountForSale(sale pitixSale, total decimal.Decimal, status connector.InvoiceStatus) decimal.Decimal {
	paid := decimalFromNumber(sale.PaidAmount)
	if status == connector.InvoiceStatusPaid && paid.IsZero() {
		return total
	}
	return paid
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	if num.String() == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return decimal.Zero
}

func parseTimeOrNow(value string) time.Time {
	if t := parseTimeOrNil(value); t != nil {
		return *t
	}
	return time.Now()
}

func parseTimeOrNil(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t
	}
	return nil
}
