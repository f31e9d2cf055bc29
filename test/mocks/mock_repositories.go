package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/amazonpay-service/internal/domain"
	"github.com/kevin07696/amazonpay-service/internal/domain/ports"
)

// MockOrderStateRepository is an in-memory implementation of
// OrderStateRepository. Reads return copies so callers observe persisted
// state, not shared pointers.
type MockOrderStateRepository struct {
	mu      sync.Mutex
	states  map[string]domain.OrderPaymentState
	history map[string][]string

	CreateErr error
	UpdateErr error
}

// NewMockOrderStateRepository creates a new in-memory order state repository
func NewMockOrderStateRepository() *MockOrderStateRepository {
	return &MockOrderStateRepository{
		states:  make(map[string]domain.OrderPaymentState),
		history: make(map[string][]string),
	}
}

// Seed stores a state directly, bypassing error injection
func (m *MockOrderStateRepository) Seed(state *domain.OrderPaymentState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.OrderID] = *state
}

// State returns a copy of the stored state, or nil
func (m *MockOrderStateRepository) State(orderID string) *domain.OrderPaymentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[orderID]; ok {
		return &state
	}
	return nil
}

// History returns the recorded audit messages for an order
func (m *MockOrderStateRepository) History(orderID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history[orderID]...)
}

func (m *MockOrderStateRepository) Create(ctx context.Context, tx ports.DBTX, state *domain.OrderPaymentState) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.OrderID] = *state
	return nil
}

func (m *MockOrderStateRepository) GetByOrderID(ctx context.Context, db ports.DBTX, orderID string) (*domain.OrderPaymentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[orderID]
	if !ok {
		return nil, domain.ErrNoRows
	}
	return &state, nil
}

func (m *MockOrderStateRepository) GetByOrderReferenceID(ctx context.Context, db ports.DBTX, orderReferenceID string) (*domain.OrderPaymentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, state := range m.states {
		if state.OrderReferenceID == orderReferenceID {
			found := state
			return &found, nil
		}
	}
	return nil, domain.ErrNoRows
}

func (m *MockOrderStateRepository) Update(ctx context.Context, tx ports.DBTX, state *domain.OrderPaymentState) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[state.OrderID]; !ok {
		return domain.ErrNoRows
	}
	m.states[state.OrderID] = *state
	return nil
}

func (m *MockOrderStateRepository) MarkCaptured(ctx context.Context, tx ports.DBTX, orderID, captureID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[orderID]
	if !ok {
		return false, domain.ErrNoRows
	}
	if state.Captured {
		return false, nil
	}
	state.Captured = true
	state.CaptureID = captureID
	m.states[orderID] = state
	return true, nil
}

func (m *MockOrderStateRepository) AppendHistory(ctx context.Context, db ports.DBTX, orderID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[orderID] = append(m.history[orderID], message)
	return nil
}

func (m *MockOrderStateRepository) ListHistory(ctx context.Context, db ports.DBTX, orderID string) ([]*domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]*domain.HistoryEntry, 0, len(m.history[orderID]))
	for i, message := range m.history[orderID] {
		entries = append(entries, &domain.HistoryEntry{
			ID:        int64(i + 1),
			OrderID:   orderID,
			Message:   message,
			CreatedAt: time.Now(),
		})
	}
	return entries, nil
}

// MockLedgerRepository is an in-memory implementation of LedgerRepository
type MockLedgerRepository struct {
	mu   sync.Mutex
	txns map[string]domain.Transaction

	CreateErr error
}

// NewMockLedgerRepository creates a new in-memory ledger
func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{txns: make(map[string]domain.Transaction)}
}

// Seed stores a transaction directly
func (m *MockLedgerRepository) Seed(txn *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[txn.ID] = *txn
}

// Transaction returns a copy of the stored entry, or nil
func (m *MockLedgerRepository) Transaction(id string) *domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn, ok := m.txns[id]; ok {
		return &txn
	}
	return nil
}

// All returns copies of every stored entry
func (m *MockLedgerRepository) All() []*domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*domain.Transaction, 0, len(m.txns))
	for _, txn := range m.txns {
		found := txn
		all = append(all, &found)
	}
	return all
}

func (m *MockLedgerRepository) Create(ctx context.Context, tx ports.DBTX, txn *domain.Transaction) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[txn.ID] = *txn
	return nil
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[id]
	if !ok {
		return nil, domain.ErrNoRows
	}
	return &txn, nil
}

func (m *MockLedgerRepository) Finalize(ctx context.Context, tx ports.DBTX, id string, status domain.TransactionStatus, gatewayTxnID, message string) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrAlreadyFinalized
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[id]
	if !ok {
		return false, domain.ErrNoRows
	}
	if txn.Status.IsTerminal() {
		return false, nil
	}
	txn.Status = status
	if gatewayTxnID != "" {
		txn.GatewayTransactionID = gatewayTxnID
	}
	if message != "" {
		txn.Message = message
	}
	m.txns[id] = txn
	return true, nil
}

func (m *MockLedgerRepository) ExistsForGatewayTransaction(ctx context.Context, db ports.DBTX, gatewayTxnID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range m.txns {
		if txn.GatewayTransactionID == gatewayTxnID {
			return true, nil
		}
	}
	return false, nil
}

// MockRefundRepository is an in-memory implementation of RefundRepository
type MockRefundRepository struct {
	mu      sync.Mutex
	refunds map[string]domain.OpenRefund
	nextID  int64

	CreateErr error
}

// NewMockRefundRepository creates a new in-memory open refund store
func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{refunds: make(map[string]domain.OpenRefund)}
}

// Open returns a copy of the stored open refund, or nil
func (m *MockRefundRepository) Open(refundID string) *domain.OpenRefund {
	m.mu.Lock()
	defer m.mu.Unlock()
	if refund, ok := m.refunds[refundID]; ok {
		return &refund
	}
	return nil
}

func (m *MockRefundRepository) Create(ctx context.Context, tx ports.DBTX, refund *domain.OpenRefund) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	refund.ID = m.nextID
	m.refunds[refund.RefundID] = *refund
	return nil
}

func (m *MockRefundRepository) GetByRefundID(ctx context.Context, db ports.DBTX, refundID string) (*domain.OpenRefund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refund, ok := m.refunds[refundID]
	if !ok {
		return nil, domain.ErrNoRows
	}
	return &refund, nil
}

func (m *MockRefundRepository) ListOpen(ctx context.Context, db ports.DBTX) ([]*domain.OpenRefund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	open := make([]*domain.OpenRefund, 0, len(m.refunds))
	for _, refund := range m.refunds {
		found := refund
		open = append(open, &found)
	}
	return open, nil
}

func (m *MockRefundRepository) Delete(ctx context.Context, tx ports.DBTX, refundID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refunds, refundID)
	return nil
}

// MockAgreementRepository is an in-memory implementation of
// AgreementRepository
type MockAgreementRepository struct {
	mu         sync.Mutex
	agreements map[string]domain.BillingAgreement
	txns       map[string]domain.AgreementTransaction
	nextID     int64
}

// NewMockAgreementRepository creates a new in-memory agreement store
func NewMockAgreementRepository() *MockAgreementRepository {
	return &MockAgreementRepository{
		agreements: make(map[string]domain.BillingAgreement),
		txns:       make(map[string]domain.AgreementTransaction),
	}
}

func agreementTxnKey(agreementID, invoiceID string) string {
	return agreementID + "/" + invoiceID
}

// Seed stores an agreement directly
func (m *MockAgreementRepository) Seed(agreement *domain.BillingAgreement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agreement.ID == 0 {
		m.nextID++
		agreement.ID = m.nextID
	}
	m.agreements[agreement.AgreementID] = *agreement
}

// Agreement returns a copy of the stored agreement, or nil
func (m *MockAgreementRepository) Agreement(agreementID string) *domain.BillingAgreement {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agreement, ok := m.agreements[agreementID]; ok {
		return &agreement
	}
	return nil
}

// Attempt returns a copy of the billing attempt record, or nil
func (m *MockAgreementRepository) Attempt(agreementID, invoiceID string) *domain.AgreementTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn, ok := m.txns[agreementTxnKey(agreementID, invoiceID)]; ok {
		return &txn
	}
	return nil
}

func (m *MockAgreementRepository) Create(ctx context.Context, tx ports.DBTX, agreement *domain.BillingAgreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	agreement.ID = m.nextID
	m.agreements[agreement.AgreementID] = *agreement
	return nil
}

func (m *MockAgreementRepository) GetByAgreementID(ctx context.Context, db ports.DBTX, agreementID string) (*domain.BillingAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agreement, ok := m.agreements[agreementID]
	if !ok {
		return nil, domain.ErrNoRows
	}
	return &agreement, nil
}

func (m *MockAgreementRepository) GetByGlobalProcessID(ctx context.Context, db ports.DBTX, globalProcessID string) (*domain.BillingAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var newest *domain.BillingAgreement
	for _, agreement := range m.agreements {
		if agreement.GlobalProcessID != globalProcessID {
			continue
		}
		found := agreement
		if newest == nil || found.ID > newest.ID {
			newest = &found
		}
	}
	if newest == nil {
		return nil, domain.ErrNoRows
	}
	return newest, nil
}

func (m *MockAgreementRepository) List(ctx context.Context, db ports.DBTX, filter ports.ListAgreementsFilter) ([]*domain.BillingAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]*domain.BillingAgreement, 0, len(m.agreements))
	for _, agreement := range m.agreements {
		if filter.ActiveOnly && !agreement.Active {
			continue
		}
		found := agreement
		list = append(list, &found)
	}
	return list, nil
}

func (m *MockAgreementRepository) SetActive(ctx context.Context, tx ports.DBTX, agreementID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	agreement, ok := m.agreements[agreementID]
	if !ok {
		return domain.ErrNoRows
	}
	agreement.Active = active
	m.agreements[agreementID] = agreement
	return nil
}

func (m *MockAgreementRepository) SetSuspended(ctx context.Context, tx ports.DBTX, agreementID string, suspended bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	agreement, ok := m.agreements[agreementID]
	if !ok {
		return domain.ErrNoRows
	}
	agreement.Suspended = suspended
	m.agreements[agreementID] = agreement
	return nil
}

func (m *MockAgreementRepository) GetOrCreateTransaction(ctx context.Context, tx ports.DBTX, agreementID, invoiceID string) (*domain.AgreementTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := agreementTxnKey(agreementID, invoiceID)
	if txn, ok := m.txns[key]; ok {
		return &txn, nil
	}
	m.nextID++
	txn := domain.AgreementTransaction{
		ID:          m.nextID,
		AgreementID: agreementID,
		InvoiceID:   invoiceID,
		CreatedAt:   time.Now(),
	}
	m.txns[key] = txn
	return &txn, nil
}

func (m *MockAgreementRepository) UpdateTransaction(ctx context.Context, tx ports.DBTX, txn *domain.AgreementTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := agreementTxnKey(txn.AgreementID, txn.InvoiceID)
	stored, ok := m.txns[key]
	if !ok {
		return domain.ErrNoRows
	}
	stored.AuthorizationID = txn.AuthorizationID
	stored.TransactionID = txn.TransactionID
	stored.RawResponse = txn.RawResponse
	stored.ProviderTimestamp = txn.ProviderTimestamp
	m.txns[key] = stored
	return nil
}

func (m *MockAgreementRepository) IncrementCaptureAttempts(ctx context.Context, tx ports.DBTX, agreementID, invoiceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := agreementTxnKey(agreementID, invoiceID)
	txn, ok := m.txns[key]
	if !ok {
		return 0, domain.ErrNoRows
	}
	txn.CaptureAttempts++
	m.txns[key] = txn
	return txn.CaptureAttempts, nil
}

func (m *MockAgreementRepository) MarkTransactionCompleted(ctx context.Context, tx ports.DBTX, txn *domain.AgreementTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := agreementTxnKey(txn.AgreementID, txn.InvoiceID)
	stored, ok := m.txns[key]
	if !ok {
		return false, domain.ErrNoRows
	}
	if stored.Completed {
		return false, nil
	}
	stored.Completed = true
	stored.AuthorizationID = txn.AuthorizationID
	stored.TransactionID = txn.TransactionID
	stored.RawResponse = txn.RawResponse
	stored.ProviderTimestamp = txn.ProviderTimestamp
	m.txns[key] = stored
	return true, nil
}

// MockInvoiceSource is an in-memory implementation of InvoiceSource
type MockInvoiceSource struct {
	mu       sync.Mutex
	invoices map[string]domain.Invoice
	order    []string
}

// NewMockInvoiceSource creates a new in-memory invoice source
func NewMockInvoiceSource() *MockInvoiceSource {
	return &MockInvoiceSource{invoices: make(map[string]domain.Invoice)}
}

// Seed stores an invoice directly
func (m *MockInvoiceSource) Seed(invoice *domain.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[invoice.ID]; !ok {
		m.order = append(m.order, invoice.ID)
	}
	m.invoices[invoice.ID] = *invoice
}

// Invoice returns a copy of the stored invoice, or nil
func (m *MockInvoiceSource) Invoice(id string) *domain.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if invoice, ok := m.invoices[id]; ok {
		return &invoice
	}
	return nil
}

func (m *MockInvoiceSource) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	invoice, ok := m.invoices[id]
	if !ok {
		return nil, domain.ErrNoRows
	}
	return &invoice, nil
}

func (m *MockInvoiceSource) ListUnpaid(ctx context.Context, db ports.DBTX, limit int32) ([]*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	unpaid := make([]*domain.Invoice, 0, len(m.invoices))
	for _, id := range m.order {
		invoice := m.invoices[id]
		if invoice.Paid {
			continue
		}
		if limit > 0 && int32(len(unpaid)) >= limit {
			break
		}
		found := invoice
		unpaid = append(unpaid, &found)
	}
	return unpaid, nil
}

func (m *MockInvoiceSource) MarkPaid(ctx context.Context, tx ports.DBTX, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	invoice, ok := m.invoices[id]
	if !ok {
		return domain.ErrNoRows
	}
	invoice.Paid = true
	m.invoices[id] = invoice
	return nil
}
