package ap

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/ledger"
	"github.com/odyssey-erp/odyssey-books/internal/ledger/ledgertest"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type memoryAPRepo struct {
	mu        sync.Mutex
	ledger    *ledgertest.Store
	suppliers map[int64]Supplier
	bills     map[int64]Bill
	items     map[int64][]BillItem
	payments  map[int64]Payment
	nextID    int64
	failOn    string
}

type memoryAPTx struct {
	*ledgertest.Store
	repo *memoryAPRepo
}

func newMemoryAPRepo(store *ledgertest.Store) *memoryAPRepo {
	return &memoryAPRepo{
		ledger:    store,
		suppliers: make(map[int64]Supplier),
		bills:     make(map[int64]Bill),
		items:     make(map[int64][]BillItem),
		payments:  make(map[int64]Payment),
	}
}

func (r *memoryAPRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	restoreLedger := r.ledger.Snapshot()
	bills := make(map[int64]Bill, len(r.bills))
	for k, v := range r.bills {
		bills[k] = v
	}
	items := make(map[int64][]BillItem, len(r.items))
	for k, v := range r.items {
		items[k] = append([]BillItem(nil), v...)
	}
	payments := make(map[int64]Payment, len(r.payments))
	for k, v := range r.payments {
		payments[k] = v
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryAPTx{Store: r.ledger, repo: r}); err != nil {
		restoreLedger()
		r.bills, r.items, r.payments, r.nextID = bills, items, payments, nextID
		return err
	}
	return nil
}

func (r *memoryAPRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (t *memoryAPTx) GetSupplier(_ context.Context, id int64) (Supplier, error) {
	s, ok := t.repo.suppliers[id]
	if !ok {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, nil
}

func lastNumber(prefix string, numbers []string) string {
	last := ""
	for _, n := range numbers {
		if strings.HasPrefix(n, prefix) && (len(n) > len(last) || (len(n) == len(last) && n > last)) {
			last = n
		}
	}
	return last
}

func (t *memoryAPTx) LastBillNumber(_ context.Context, monthPrefix string) (string, error) {
	var numbers []string
	for _, b := range t.repo.bills {
		numbers = append(numbers, b.BillNumber)
	}
	return lastNumber(monthPrefix, numbers), nil
}

func (t *memoryAPTx) InsertBill(_ context.Context, bill Bill) (Bill, error) {
	bill.ID = t.repo.id()
	t.repo.bills[bill.ID] = bill
	return bill, nil
}

func (t *memoryAPTx) GetBill(_ context.Context, id int64) (Bill, error) {
	b, ok := t.repo.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	b.Items = nil
	b.Supplier = nil
	return b, nil
}

func (t *memoryAPTx) GetBillForUpdate(ctx context.Context, id int64) (Bill, error) {
	return t.GetBill(ctx, id)
}

func (t *memoryAPTx) UpdateBill(_ context.Context, bill Bill) error {
	if t.repo.failOn == "UpdateBill" {
		return errors.New("update bill failed")
	}
	if _, ok := t.repo.bills[bill.ID]; !ok {
		return ErrBillNotFound
	}
	bill.Items = nil
	bill.Supplier = nil
	t.repo.bills[bill.ID] = bill
	return nil
}

func (t *memoryAPTx) DeleteBill(_ context.Context, id int64) error {
	delete(t.repo.bills, id)
	return nil
}

func (t *memoryAPTx) ListBillItems(_ context.Context, billID int64) ([]BillItem, error) {
	return append([]BillItem(nil), t.repo.items[billID]...), nil
}

func (t *memoryAPTx) InsertBillItems(_ context.Context, billID int64, items []BillItem) ([]BillItem, error) {
	out := make([]BillItem, 0, len(items))
	for _, it := range items {
		it.ID = t.repo.id()
		it.BillID = billID
		out = append(out, it)
	}
	t.repo.items[billID] = append(t.repo.items[billID], out...)
	return out, nil
}

func (t *memoryAPTx) DeleteBillItems(_ context.Context, billID int64) error {
	delete(t.repo.items, billID)
	return nil
}

func (t *memoryAPTx) LastPaymentNumber(_ context.Context, monthPrefix string) (string, error) {
	var numbers []string
	for _, p := range t.repo.payments {
		numbers = append(numbers, p.PaymentNumber)
	}
	return lastNumber(monthPrefix, numbers), nil
}

func (t *memoryAPTx) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	p.ID = t.repo.id()
	t.repo.payments[p.ID] = p
	return p, nil
}

func (t *memoryAPTx) GetPaymentForUpdate(_ context.Context, id int64) (Payment, error) {
	p, ok := t.repo.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (t *memoryAPTx) UpdatePaymentStatus(_ context.Context, id int64, status PaymentStatus) error {
	p, ok := t.repo.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.Status = status
	t.repo.payments[id] = p
	return nil
}

func (t *memoryAPTx) DeletePayment(_ context.Context, id int64) error {
	delete(t.repo.payments, id)
	return nil
}

func (t *memoryAPTx) CountPayments(_ context.Context, billID int64) (int, error) {
	n := 0
	for _, p := range t.repo.payments {
		if p.BillID == billID {
			n++
		}
	}
	return n, nil
}

func (t *memoryAPTx) ListPayments(_ context.Context, billID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range t.repo.payments {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeLocker struct {
	keys     []string
	released int
	err      error
}

func (l *fakeLocker) Acquire(_ context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}

var testNow = time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

type apFixture struct {
	store    *ledgertest.Store
	repo     *memoryAPRepo
	audit    *ledgertest.AuditRecorder
	ledger   *ledger.Service
	svc      *Service
	bank     ledger.Account
	office   ledger.Account
	travel   ledger.Account
	payables ledger.Account
	supplier Supplier
}

func newAPFixture() apFixture {
	store := ledgertest.NewStore()
	f := apFixture{store: store, audit: &ledgertest.AuditRecorder{}}
	f.bank = store.AddAccount(ledger.Account{Code: "1120", Name: "Bank", Nature: ledger.NatureAsset, IsBankOrCash: true, OpeningBalance: 500})
	f.office = store.AddAccount(ledger.Account{Code: "6100", Name: "Office supplies", Nature: ledger.NatureExpense})
	f.travel = store.AddAccount(ledger.Account{Code: "6200", Name: "Travel", Nature: ledger.NatureExpense})
	f.payables = store.AddAccount(ledger.Account{Code: "2110", Name: "Trade Payables", Nature: ledger.NatureLiability, IsSystem: true})
	f.repo = newMemoryAPRepo(store)
	f.supplier = Supplier{ID: 900, Name: "Acme Paper"}
	f.repo.suppliers[f.supplier.ID] = f.supplier
	f.ledger = ledger.NewService(store, f.audit, ledger.WellKnownCodes{TradePayables: "2110"}, nil)
	f.ledger.WithNow(func() time.Time { return testNow })
	f.svc = NewService(f.repo, f.ledger, f.audit, nil)
	f.svc.WithNow(func() time.Time { return testNow })
	return f
}

func (f apFixture) billInput(status BillStatus) BillInput {
	return BillInput{
		SupplierID: f.supplier.ID,
		BillDate:   testNow,
		Status:     status,
		Items: []BillItemInput{
			{ExpenseAccountID: f.office.ID, Description: "paper", Amount: 100},
			{ExpenseAccountID: f.travel.ID, Description: "taxi", Amount: 50},
		},
	}
}

func (f apFixture) payment(billID int64, amount float64) PaymentInput {
	return PaymentInput{
		BillID:           billID,
		PaymentAccountID: f.bank.ID,
		PaymentDate:      testNow,
		Amount:           amount,
		Method:           MethodBank,
	}
}

func (f apFixture) balance(t *testing.T, acc ledger.Account) float64 {
	t.Helper()
	bal, err := f.ledger.ComputeBalance(context.Background(), acc.ID, nil)
	require.NoError(t, err)
	return bal
}

func TestCreateBillPostsToTradePayables(t *testing.T) {
	f := newAPFixture()
	bill, err := f.svc.CreateBill(context.Background(), 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)

	require.Equal(t, "BILL-2025050001", bill.BillNumber)
	require.Equal(t, 150.0, bill.TotalAmount)
	require.Equal(t, BillStatusUnpaid, bill.Status)
	require.Len(t, bill.Items, 2)
	require.NotNil(t, bill.Supplier)
	require.Equal(t, int64(7), bill.CreatedBy)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Equal(t, ledger.RefBill, entry.ReferenceType)
	require.Equal(t, bill.ID, entry.ReferenceID)
	require.Len(t, entry.Lines, 3)
	require.Equal(t, f.office.ID, entry.Lines[0].AccountID)
	require.Equal(t, 100.0, entry.Lines[0].Debit)
	require.Equal(t, f.travel.ID, entry.Lines[1].AccountID)
	require.Equal(t, 50.0, entry.Lines[1].Debit)
	require.Equal(t, f.payables.ID, entry.Lines[2].AccountID)
	require.Equal(t, 150.0, entry.Lines[2].Credit)
	require.Equal(t, 150.0, f.balance(t, f.payables))
}

func TestCreateBillUsesSupplierPayableAccount(t *testing.T) {
	f := newAPFixture()
	own := f.store.AddAccount(ledger.Account{Code: "2120", Name: "Acme payable", Nature: ledger.NatureLiability})
	f.supplier.PayableAccountID = &own.ID
	f.repo.suppliers[f.supplier.ID] = f.supplier

	_, err := f.svc.CreateBill(context.Background(), 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)
	require.Equal(t, 150.0, f.balance(t, own))
	require.Zero(t, f.balance(t, f.payables))
}

func TestCreateBillMissingPayableAccountRollsBack(t *testing.T) {
	f := newAPFixture()
	f.ledger = ledger.NewService(f.store, f.audit, ledger.WellKnownCodes{TradePayables: "2999"}, nil)
	f.svc = NewService(f.repo, f.ledger, f.audit, nil)

	_, err := f.svc.CreateBill(context.Background(), 7, f.billInput(BillStatusUnpaid))
	require.ErrorIs(t, err, shared.ErrConfigurationMissing)
	require.Empty(t, f.repo.bills)
	require.Empty(t, f.store.Entries())
}

func TestCreateDraftBillDoesNotPost(t *testing.T) {
	f := newAPFixture()
	bill, err := f.svc.CreateBill(context.Background(), 7, f.billInput(""))
	require.NoError(t, err)
	require.Equal(t, BillStatusDraft, bill.Status)
	require.Equal(t, 150.0, bill.TotalAmount)
	require.Empty(t, f.store.Entries())

	posted, err := f.svc.PostBill(context.Background(), 7, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusUnpaid, posted.Status)
	require.Len(t, f.store.Entries(), 1)

	_, err = f.svc.PostBill(context.Background(), 7, bill.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestCreateBillValidation(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()

	in := f.billInput(BillStatusUnpaid)
	in.Items = nil
	_, err := f.svc.CreateBill(ctx, 7, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = f.billInput(BillStatusPaid)
	_, err = f.svc.CreateBill(ctx, 7, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = f.billInput(BillStatusUnpaid)
	in.Items[0].Amount = 0
	_, err = f.svc.CreateBill(ctx, 7, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = f.billInput(BillStatusUnpaid)
	in.SupplierID = 12345
	_, err = f.svc.CreateBill(ctx, 7, in)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBillItemsMustBeDebitNormal(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	accrued := f.store.AddAccount(ledger.Account{Code: "2300", Name: "Accrued liabilities", Nature: ledger.NatureLiability})
	sales := f.store.AddAccount(ledger.Account{Code: "4100", Name: "Product Sales", Nature: ledger.NatureRevenue})

	for _, acc := range []ledger.Account{accrued, sales} {
		in := f.billInput(BillStatusUnpaid)
		in.Items[1].ExpenseAccountID = acc.ID
		_, err := f.svc.CreateBill(ctx, 7, in)
		require.ErrorIs(t, err, shared.ErrValidation, acc.Code)
		require.NotErrorIs(t, err, shared.ErrImbalancedEntry, acc.Code)
	}
	require.Empty(t, f.repo.bills)
	require.Empty(t, f.store.Entries())

	draft, err := f.svc.CreateBill(ctx, 7, f.billInput(""))
	require.NoError(t, err)
	in := f.billInput(BillStatusUnpaid)
	in.Items[0].ExpenseAccountID = accrued.ID
	_, err = f.svc.UpdateBill(ctx, 7, draft.ID, in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateBillReversesAndReposts(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)
	original := f.store.Entries()[0]

	in := f.billInput("")
	in.Items = []BillItemInput{{ExpenseAccountID: f.office.ID, Description: "toner", Amount: 80}}
	updated, err := f.svc.UpdateBill(ctx, 8, bill.ID, in)
	require.NoError(t, err)
	require.Equal(t, 80.0, updated.TotalAmount)
	require.Equal(t, BillStatusUnpaid, updated.Status)
	require.Len(t, updated.Items, 1)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	require.NotEqual(t, original.ID, entries[0].ID)
	require.Equal(t, 80.0, f.balance(t, f.payables))
	require.Equal(t, 80.0, f.balance(t, f.office))
	require.Zero(t, f.balance(t, f.travel))

	require.Len(t, f.audit.Logs, 1)
	require.Equal(t, "journal.reverse", f.audit.Logs[0].Action)
	require.Equal(t, original.EntryNumber, f.audit.Logs[0].EntityID)
}

func TestBillEditAndDeleteGuards(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)

	_, err = f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 40))
	require.NoError(t, err)

	_, err = f.svc.UpdateBill(ctx, 7, bill.ID, f.billInput(""))
	require.ErrorIs(t, err, ErrNotEditable)
	require.ErrorIs(t, f.svc.DeleteBill(ctx, 7, bill.ID), ErrNotDeletable)

	require.True(t, Bill{Status: BillStatusDraft}.CanEdit(3))
	require.True(t, Bill{Status: BillStatusUnpaid}.CanDelete(0))
	require.False(t, Bill{Status: BillStatusUnpaid}.CanDelete(1))
	require.False(t, Bill{Status: BillStatusPaid}.CanEdit(0))
}

func TestDeleteBillReversesPosting(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteBill(ctx, 9, bill.ID))
	require.Empty(t, f.store.Entries())
	require.Empty(t, f.repo.bills)
	require.Empty(t, f.repo.items)
	require.Zero(t, f.balance(t, f.payables))

	_, err = f.svc.GetBill(ctx, bill.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	actions := []string{}
	for _, l := range f.audit.Logs {
		actions = append(actions, l.Action)
	}
	require.Equal(t, []string{"journal.reverse", "bill.delete"}, actions)
}

func TestFullPaymentThenOverpaymentRejected(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)

	payment, err := f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 150))
	require.NoError(t, err)
	require.Equal(t, "PAY-2025050001", payment.PaymentNumber)
	require.Equal(t, PaymentStatusPosted, payment.Status)

	bill, err = f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusPaid, bill.Status)
	require.Equal(t, 150.0, bill.PaidAmount)

	require.Zero(t, f.balance(t, f.payables))
	require.Equal(t, 350.0, f.balance(t, f.bank))
	require.Equal(t, 350.0, f.store.Account(f.bank.ID).CurrentBalance)

	_, err = f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 0.01))
	require.ErrorIs(t, err, shared.ErrBalanceExceeded)
	require.NotErrorIs(t, err, ErrNotPayable)
	require.Len(t, f.store.Entries(), 2)
}

func TestPaymentExceedingRemainingBalance(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)

	_, err = f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 100))
	require.NoError(t, err)
	bill, err = f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusPartiallyPaid, bill.Status)

	_, err = f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 50.01))
	require.ErrorIs(t, err, shared.ErrBalanceExceeded)
	require.ErrorIs(t, err, ErrExceedsBalance)

	payments, err := f.svc.ListPayments(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
}

func TestPaymentAgainstDraftBillRejected(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusDraft))
	require.NoError(t, err)
	_, err = f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 10))
	require.ErrorIs(t, err, ErrNotPayable)
}

func TestPaymentAccountMustBeBankOrCash(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)
	in := f.payment(bill.ID, 10)
	in.PaymentAccountID = f.office.ID
	_, err = f.svc.CreatePayment(ctx, 7, in)
	require.ErrorIs(t, err, ErrPaymentAccount)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDraftPaymentPostsLater(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)

	in := f.payment(bill.ID, 60)
	in.Status = PaymentStatusDraft
	payment, err := f.svc.CreatePayment(ctx, 7, in)
	require.NoError(t, err)
	require.Equal(t, PaymentStatusDraft, payment.Status)
	require.Len(t, f.store.Entries(), 1)
	require.Equal(t, 500.0, f.store.Account(f.bank.ID).CurrentBalance)

	bill, err = f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Equal(t, 60.0, bill.PaidAmount)
	require.Equal(t, BillStatusPartiallyPaid, bill.Status)

	posted, err := f.svc.PostPayment(ctx, 7, payment.ID)
	require.NoError(t, err)
	require.Equal(t, PaymentStatusPosted, posted.Status)
	require.Len(t, f.store.Entries(), 2)
	require.Equal(t, 440.0, f.store.Account(f.bank.ID).CurrentBalance)
	require.Equal(t, 440.0, f.balance(t, f.bank))

	_, err = f.svc.PostPayment(ctx, 7, payment.ID)
	require.ErrorIs(t, err, ErrPaymentPosted)
}

func TestDeletePaymentRestoresBalances(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)
	payment, err := f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 150))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeletePayment(ctx, 8, payment.ID))

	bill, err = f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusUnpaid, bill.Status)
	require.Zero(t, bill.PaidAmount)
	require.Equal(t, 500.0, f.store.Account(f.bank.ID).CurrentBalance)
	require.Equal(t, 500.0, f.balance(t, f.bank))
	require.Equal(t, 150.0, f.balance(t, f.payables))
	require.Len(t, f.store.Entries(), 1)

	variances, err := f.ledger.ReconcileCashAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, variances)

	require.ErrorIs(t, f.svc.DeletePayment(ctx, 8, payment.ID), ErrPaymentNotFound)
}

func TestDeleteDraftPaymentLeavesCashAlone(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)
	in := f.payment(bill.ID, 30)
	in.Status = PaymentStatusDraft
	payment, err := f.svc.CreatePayment(ctx, 7, in)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeletePayment(ctx, 7, payment.ID))
	require.Equal(t, 500.0, f.store.Account(f.bank.ID).CurrentBalance)
	bill, err = f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusUnpaid, bill.Status)
}

func TestCreatePaymentRollsBackOnFailure(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)

	f.store.FailOn("AdjustCurrentBalance", errors.New("balance write failed"))
	_, err = f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 150))
	require.EqualError(t, err, "balance write failed")

	bill, err = f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusUnpaid, bill.Status)
	require.Zero(t, bill.PaidAmount)
	require.Empty(t, f.repo.payments)
	require.Len(t, f.store.Entries(), 1)
	require.Equal(t, 500.0, f.store.Account(f.bank.ID).CurrentBalance)
}

func TestCreatePaymentUsesLocker(t *testing.T) {
	f := newAPFixture()
	ctx := context.Background()
	bill, err := f.svc.CreateBill(ctx, 7, f.billInput(BillStatusUnpaid))
	require.NoError(t, err)

	locker := &fakeLocker{}
	f.svc.SetLocker(locker)
	_, err = f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 10))
	require.NoError(t, err)
	require.Equal(t, []string{shared.PaymentLockKey(bill.ID)}, locker.keys)
	require.Equal(t, 1, locker.released)

	locker.err = shared.Conflictf("locked")
	_, err = f.svc.CreatePayment(ctx, 7, f.payment(bill.ID, 10))
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestUpdateStatus(t *testing.T) {
	cases := []struct {
		bill Bill
		want BillStatus
	}{
		{Bill{Status: BillStatusDraft, TotalAmount: 10, PaidAmount: 10}, BillStatusDraft},
		{Bill{Status: BillStatusUnpaid, TotalAmount: 10}, BillStatusUnpaid},
		{Bill{Status: BillStatusUnpaid, TotalAmount: 10, PaidAmount: 4}, BillStatusPartiallyPaid},
		{Bill{Status: BillStatusPartiallyPaid, TotalAmount: 10, PaidAmount: 10}, BillStatusPaid},
		{Bill{Status: BillStatusPaid, TotalAmount: 10, PaidAmount: 0}, BillStatusUnpaid},
	}
	for _, tc := range cases {
		b := tc.bill
		b.UpdateStatus()
		require.Equal(t, tc.want, b.Status)
	}
}
