package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/observability"
	"github.com/meshfin/financeiro-api/internal/infra/resilience"
	"github.com/meshfin/financeiro-api/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var admin = &domain.User{ID: 1, Name: "Admin", Type: domain.UserAdmin, Active: true}

func meshEst(id int64, name string) domain.Establishment {
	return domain.Establishment{ID: id, Name: name, Type: domain.ProviderZoop, TaxID: "11222333000181", Key: "k", Identifier: "mkt", Seller: "s", Region: 1}
}

func useEst(id int64, name string) domain.Establishment {
	return domain.Establishment{ID: id, Name: name, Type: domain.ProviderUse, TaxID: "11222333000181", Key: "k", Identifier: "cred", Region: 2}
}

type fixture struct {
	ests    *fakeEstStore
	terms   *fakeTermStore
	zoop    *fakeZoop
	use     *fakeUse
	lookup  *fakeLookup
	metrics *observability.Metrics
	svc     *service.ReconciliationService
}

func newFixture(ests ...domain.Establishment) *fixture {
	f := &fixture{
		ests:    newEstStore(ests...),
		terms:   &fakeTermStore{},
		zoop:    &fakeZoop{txs: map[int64][]domain.ZoopTransaction{}, balances: map[int64]domain.Money{}, errs: map[int64]error{}, panics: map[int64]bool{}},
		use:     &fakeUse{receivables: map[int64][]domain.UseReceivable{}, balances: map[int64]domain.Money{}, errs: map[int64]error{}},
		lookup:  &fakeLookup{serials: map[string]string{}},
		metrics: observability.NewMetrics(),
	}
	f.svc = service.NewReconciliationService(
		f.zoop,
		f.use,
		f.ests,
		f.terms,
		service.NewTerminalResolver(f.lookup, zap.NewNop()),
		resilience.NewBulkhead(2),
		f.metrics,
		zap.NewNop(),
	)
	return f
}

func meshRequest(ids ...int64) domain.AggregationRequest {
	return domain.AggregationRequest{
		StartDate:        "2024-03-01",
		EndDate:          "2024-03-02",
		EstablishmentIDs: ids,
		Principal:        admin,
	}
}

func assertMoney(t *testing.T, want string, got domain.Money) {
	t.Helper()
	assert.Truef(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got.String())
}

func TestMeshTransactions_InvalidDatesMakeNoCalls(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
	}{
		{"invalid month", "2024-13-01", "2024-03-02"},
		{"missing end", "2024-03-01", ""},
		{"wrong format", "01/03/2024", "2024-03-02"},
		{"impossible day", "2024-02-30", "2024-03-02"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(meshEst(1, "A"))
			req := meshRequest()
			req.StartDate, req.EndDate = tc.start, tc.end

			_, err := f.svc.MeshTransactions(context.Background(), req)

			var ve *domain.ErrValidation
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, 0, f.zoop.calls())
			assert.Equal(t, 0, f.terms.listCalls)
		})
	}
}

func TestMeshTransactions_ZoopWindowIsBusinessDay(t *testing.T) {
	f := newFixture(meshEst(1, "A"))

	_, err := f.svc.MeshTransactions(context.Background(), meshRequest(1))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC), f.zoop.lastStart.UTC())
	assert.Equal(t, time.Date(2024, 3, 3, 3, 59, 59, int(999*time.Millisecond), time.UTC), f.zoop.lastEnd.UTC())
}

func TestMeshTransactions_Pagination(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"), meshEst(2, "Bravo"), meshEst(3, "Charlie"))
	req := meshRequest(1, 2, 3)
	req.Page, req.PerPage = 2, 1

	res, err := f.svc.MeshTransactions(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Data, 1)
	assert.Equal(t, "Bravo", res.Data[0].Name)
	assert.Equal(t, domain.PageMeta{CurrentPage: 2, TotalPages: 3, TotalItems: 3}, res.Meta)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, f.terms.listCalls)
}

func TestMeshTransactions_PageBeyondRangeIsEmpty(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"))
	req := meshRequest(1)
	req.Page, req.PerPage = 5, 10

	res, err := f.svc.MeshTransactions(context.Background(), req)
	require.NoError(t, err)

	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Equal(t, domain.PageMeta{CurrentPage: 5, TotalPages: 1, TotalItems: 1}, res.Meta)
}

func TestMeshTransactions_DefaultPagination(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"))

	res, err := f.svc.MeshTransactions(context.Background(), meshRequest(1))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Meta.CurrentPage)
	assert.Equal(t, 1, res.Meta.TotalPages)
}

func TestMeshTransactions_FailureIsIsolated(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"), meshEst(2, "Bravo"), meshEst(3, "Charlie"))
	f.zoop.errs[2] = &domain.ErrExternalService{Service: "zoop", Err: errProvider}
	f.zoop.panics[3] = true

	res, err := f.svc.MeshTransactions(context.Background(), meshRequest(1, 2, 3))
	require.NoError(t, err)

	require.Len(t, res.Data, 1)
	assert.Equal(t, "Alfa", res.Data[0].Name)
	assert.Equal(t, 1, res.Meta.TotalItems)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, int64(2), res.Errors[0].EstablishmentID)
	assert.Contains(t, res.Errors[0].Message, "Erro ao processar o estabelecimento Bravo: ")
	assert.Contains(t, res.Errors[0].Message, "provider unavailable")
	assert.Equal(t, int64(3), res.Errors[1].EstablishmentID)
	assert.Equal(t, "Erro ao processar o estabelecimento Charlie: boom", res.Errors[1].Message)

	snap := f.metrics.GetAggregationSnapshot()
	assert.Equal(t, int64(1), snap.EstablishmentsOK)
	assert.Equal(t, int64(2), snap.EstablishmentsFailed)
}

func TestMeshTransactions_CancelledContextAborts(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.MeshTransactions(ctx, meshRequest(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMeshTransactions_Normalization(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"))
	desc := "Caixa 1"
	f.terms.terms = []domain.Terminal{
		{ID: 1, Serial: "SER-LOCAL", Description: &desc, Type: 1, Identifier: "pos-local", EstablishmentID: 1},
		{ID: 2, Serial: "SER-NODESC", Type: 1, Identifier: "pos-nodesc", EstablishmentID: 1},
	}
	f.lookup.serials["pos-remote"] = "SER-REMOTE"
	f.zoop.balances[1] = money("1234.56")
	f.zoop.txs[1] = []domain.ZoopTransaction{
		{
			ID: "tx-1", Amount: money("10.005"), Fees: money("0.30"), Status: "succeeded", PaymentType: "credit",
			PaymentMethod: &domain.ZoopPaymentMethod{HolderName: "MARIA", First4Digits: "5555", Last4Digits: "4444"},
			PointOfSale:   &domain.ZoopPointOfSale{IdentificationNumber: "pos-local"},
			UpdatedAt:     "2024-03-02T02:30:00Z",
		},
		{
			ID: "tx-2", Amount: money("5.001"), Fees: money("0.10"), Status: "canceled", PaymentType: "voucher",
			PointOfSale: &domain.ZoopPointOfSale{IdentificationNumber: "pos-remote"},
			UpdatedAt:   "2024-03-01T15:00:00Z",
		},
		{
			ID: "tx-3", Amount: money("1"), Fees: money("0"), Status: "pending", PaymentType: "pix",
			PointOfSale: &domain.ZoopPointOfSale{IdentificationNumber: "pos-remote"},
			UpdatedAt:   "2024-03-01T16:00:00Z",
		},
		{
			ID: "tx-4", Amount: money("1"), Fees: money("0"), PaymentType: "debit",
			UpdatedAt: "2024-03-01T17:00:00Z",
		},
		{
			ID: "tx-5", Amount: money("1"), Fees: money("0"), PaymentType: "debit",
			PointOfSale: &domain.ZoopPointOfSale{IdentificationNumber: "pos-missing"},
			UpdatedAt:   "2024-03-01T18:00:00Z",
		},
		{
			ID: "tx-6", Amount: money("1"), Fees: money("0"), PaymentType: "debit",
			PointOfSale: &domain.ZoopPointOfSale{IdentificationNumber: "pos-nodesc"},
			UpdatedAt:   "2024-03-01T19:00:00Z",
		},
	}

	res, err := f.svc.MeshTransactions(context.Background(), meshRequest(1))
	require.NoError(t, err)
	require.Len(t, res.Data, 1)

	sum := res.Data[0]
	assert.Equal(t, "11222333000181", sum.TaxID)
	assert.Equal(t, 6, sum.Balance.Count)
	assertMoney(t, "19.01", sum.Balance.Total)
	assertMoney(t, "0.4", sum.Balance.Fee)
	assertMoney(t, "1234.56", sum.Balance.Balance)

	byID := map[string]domain.NormalizedTransaction{}
	for _, tx := range sum.Balance.Transactions {
		byID[tx.ID] = tx
	}

	tx1 := byID["tx-1"]
	assert.Equal(t, "MARIA", tx1.Customer)
	assert.Equal(t, service.LabelCredit, tx1.PaymentMethod)
	assert.Equal(t, service.StatusSucceeded, tx1.Status)
	assert.Equal(t, "5555", tx1.FirstDigits)
	assert.Equal(t, "4444", tx1.LastDigits)
	assert.Equal(t, "Caixa 1", tx1.Terminal)
	assert.Equal(t, "2024-03-01", tx1.PaymentDate)
	assert.Equal(t, "22:30", tx1.PaymentTime)

	tx2 := byID["tx-2"]
	assert.Equal(t, "", tx2.Customer)
	assert.Equal(t, service.LabelOther, tx2.PaymentMethod)
	assert.Equal(t, service.StatusCanceled, tx2.Status)
	assert.Equal(t, "0000", tx2.FirstDigits)
	assert.Equal(t, "0000", tx2.LastDigits)
	assert.Equal(t, "SER-REMOTE", tx2.Terminal)

	assert.Equal(t, "", byID["tx-3"].Status)
	assert.Equal(t, "SER-REMOTE", byID["tx-3"].Terminal)
	assert.Equal(t, domain.TerminalNotFound, byID["tx-4"].Terminal)
	assert.Equal(t, domain.TerminalNotFound, byID["tx-5"].Terminal)
	assert.Equal(t, "SER-NODESC", byID["tx-6"].Terminal)

	assert.Equal(t, 1, f.lookup.calls["pos-remote"], "remote lookups are memoized per establishment")
	assert.Equal(t, 0, f.lookup.calls["pos-local"])
}

func TestMeshTransactions_SortsByBusinessDateThenCustomer(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"))
	holder := func(name string) *domain.ZoopPaymentMethod { return &domain.ZoopPaymentMethod{HolderName: name} }
	f.zoop.txs[1] = []domain.ZoopTransaction{
		{ID: "next-day", PaymentMethod: holder("ALICE"), UpdatedAt: "2024-03-02T12:00:00Z"},
		{ID: "zeca", PaymentMethod: holder("ZECA"), UpdatedAt: "2024-03-01T12:00:00Z"},
		{ID: "alvaro", PaymentMethod: holder("ÁLVARO"), UpdatedAt: "2024-03-01T19:00:00Z"},
		{ID: "bruno", PaymentMethod: holder("BRUNO"), UpdatedAt: "2024-03-01T10:00:00Z"},
		// 23:00 of the previous day in UTC-4.
		{ID: "prev-day", PaymentMethod: holder("ANA"), UpdatedAt: "2024-03-01T03:00:00Z"},
	}

	res, err := f.svc.MeshTransactions(context.Background(), meshRequest(1))
	require.NoError(t, err)

	var ids []string
	for _, tx := range res.Data[0].Balance.Transactions {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"prev-day", "alvaro", "bruno", "zeca", "next-day"}, ids)
}

func TestMeshTransactions_Eligibility(t *testing.T) {
	t.Run("no ids and unrestricted principal", func(t *testing.T) {
		f := newFixture(meshEst(1, "Alfa"))
		_, err := f.svc.MeshTransactions(context.Background(), meshRequest())
		var fe *domain.ErrForbidden
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "Usuário não possui unidades associadas para acesso.", fe.Error())
		assert.Equal(t, 0, f.zoop.calls())
	})

	t.Run("no ids and empty entitlement list", func(t *testing.T) {
		f := newFixture(meshEst(1, "Alfa"))
		req := meshRequest()
		req.EstablishmentIDs = nil
		req.Principal = &domain.User{ID: 2, Units: []int64{}}
		_, err := f.svc.MeshTransactions(context.Background(), req)
		var fe *domain.ErrForbidden
		require.ErrorAs(t, err, &fe)
	})

	t.Run("no ids uses entitlements", func(t *testing.T) {
		f := newFixture(meshEst(1, "Alfa"), meshEst(2, "Bravo"))
		req := meshRequest()
		req.EstablishmentIDs = nil
		req.Principal = &domain.User{ID: 2, Units: []int64{2}}
		res, err := f.svc.MeshTransactions(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, res.Data, 1)
		assert.Equal(t, int64(2), res.Data[0].ID)
	})

	t.Run("requested ids outside entitlements", func(t *testing.T) {
		f := newFixture(meshEst(1, "Alfa"), meshEst(2, "Bravo"))
		req := meshRequest(1)
		req.Principal = &domain.User{ID: 2, Units: []int64{2}}
		_, err := f.svc.MeshTransactions(context.Background(), req)
		var fe *domain.ErrForbidden
		require.ErrorAs(t, err, &fe)
	})

	t.Run("requested ids intersected with entitlements", func(t *testing.T) {
		f := newFixture(meshEst(1, "Alfa"), meshEst(2, "Bravo"))
		req := meshRequest(1, 2)
		req.Principal = &domain.User{ID: 2, Units: []int64{2}}
		res, err := f.svc.MeshTransactions(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, res.Data, 1)
		assert.Equal(t, "Bravo", res.Data[0].Name)
	})

	t.Run("only other family requested", func(t *testing.T) {
		f := newFixture(meshEst(1, "Alfa"), useEst(3, "Use"))
		_, err := f.svc.MeshTransactions(context.Background(), meshRequest(3))
		var nf *domain.ErrNotFound
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Unidades dos tipos 1 e 2 não localizadas", nf.Error())
	})
}

func TestUseTransactions_Normalization(t *testing.T) {
	f := newFixture(useEst(3, "Use Centro"), meshEst(1, "Alfa"))
	f.use.balances[3] = money("1234.5")
	f.use.receivables[3] = []domain.UseReceivable{
		{
			PayerName: "JOSE", ChargeAmount: money("150"), OrderNumber: "P-1", Note: "mensalidade",
			ChargeType: "BOLETO_PIX", DocumentDate: "2024-02-20T00:00:00-03:00", DueDate: "2024-03-05",
			Payments: []domain.UsePayment{
				{AmountPaid: money("100"), MerchantFee: money("1.5"), SettledAt: "2024-03-01T10:00:00-03:00", PaymentOrigin: "PIX"},
				{AmountPaid: money("50.004"), MerchantFee: money("1"), SettledAt: "2024-03-02T09:00:00-03:00", PaymentOrigin: "BOLETO"},
			},
		},
		{
			PayerName: "ANA", ChargeAmount: money("20"), ChargeType: "PIX_AVULSO",
			Payments: []domain.UsePayment{
				{AmountPaid: money("20"), MerchantFee: money("0.2"), SettledAt: "2024-03-01T10:00:00-03:00", PaymentOrigin: "PIX"},
			},
		},
		{PayerName: "SEM PAGAMENTO", ChargeType: "BOLETO_PIX"},
	}

	req := meshRequest(3, 1)
	res, err := f.svc.UseTransactions(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)

	sum := res.Data[0]
	assert.Equal(t, "Use Centro", sum.Name)
	assert.Equal(t, 3, sum.Balance.Count)
	assertMoney(t, "170", sum.Balance.Total)
	assertMoney(t, "2.7", sum.Balance.Fee)
	assertMoney(t, "1234.5", sum.Balance.Balance)

	txs := sum.Balance.Transactions
	assert.Equal(t, "ANA", txs[0].Customer)
	assert.Equal(t, service.LabelPix, txs[0].PaymentMethod)
	assert.Equal(t, "JOSE", txs[1].Customer)
	assert.Equal(t, service.LabelBoletoQRCode, txs[1].PaymentMethod)
	assert.Equal(t, "2024-03-01", txs[1].PaymentDate)
	assert.Equal(t, "2024-02-20", txs[1].DocumentDate)
	assert.Equal(t, "2024-03-05", txs[1].DueDate)
	require.NotNil(t, txs[1].ChargeAmount)
	assertMoney(t, "150", *txs[1].ChargeAmount)
	assert.Equal(t, "P-1", txs[1].Order)
	assert.Equal(t, "BOLETO_PIX", txs[1].Origin)
	assert.Equal(t, "PIX_AVULSO", txs[0].Origin)
	assert.Equal(t, service.LabelBoleto, txs[2].PaymentMethod)
	assert.Equal(t, "2024-03-02", txs[2].PaymentDate)
	assert.Empty(t, txs[2].Terminal)
}

func TestUseTransactions_SameDaySortsByCustomer(t *testing.T) {
	f := newFixture(useEst(3, "Use Centro"))
	f.use.receivables[3] = []domain.UseReceivable{
		{PayerName: "Zeca", ChargeType: "PIX_AVULSO", Payments: []domain.UsePayment{
			{AmountPaid: money("10"), SettledAt: "2024-03-01T08:00:00-03:00", PaymentOrigin: "PIX"},
		}},
		{PayerName: "Ana", ChargeType: "PIX_AVULSO", Payments: []domain.UsePayment{
			{AmountPaid: money("20"), SettledAt: "2024-03-01T15:00:00-03:00", PaymentOrigin: "PIX"},
		}},
		{PayerName: "Bia", ChargeType: "BOLETO_PIX", Payments: []domain.UsePayment{
			{AmountPaid: money("5"), SettledAt: "2024-02-29T23:00:00-03:00", PaymentOrigin: "BOLETO"},
		}},
	}

	res, err := f.svc.UseTransactions(context.Background(), meshRequest(3))
	require.NoError(t, err)
	require.Len(t, res.Data, 1)

	var customers []string
	for _, tx := range res.Data[0].Balance.Transactions {
		customers = append(customers, tx.Customer)
	}
	assert.Equal(t, []string{"Bia", "Ana", "Zeca"}, customers)
}

func TestUseTransactions_OnlyType3(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"))

	_, err := f.svc.UseTransactions(context.Background(), meshRequest(1))
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Unidades do tipo 3 não localizadas", nf.Error())
	assert.Equal(t, 0, f.use.calls)
}

func TestUseTransactions_FailureIsIsolated(t *testing.T) {
	f := newFixture(useEst(3, "Alfa"), useEst(4, "Bravo"))
	f.use.errs[3] = errProvider

	res, err := f.svc.UseTransactions(context.Background(), meshRequest(3, 4))
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Bravo", res.Data[0].Name)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Erro ao processar o estabelecimento Alfa: provider unavailable", res.Errors[0].Message)
}

func TestRequestPayout(t *testing.T) {
	f := newFixture(meshEst(1, "Alfa"), useEst(3, "Use"))

	var nf *domain.ErrNotFound
	err := f.svc.RequestPayout(context.Background(), 99)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Estabelecimento não encontrado", nf.Error())

	var ve *domain.ErrValidation
	require.ErrorAs(t, f.svc.RequestPayout(context.Background(), 1), &ve)

	require.NoError(t, f.svc.RequestPayout(context.Background(), 3))
	assert.Equal(t, []int64{3}, f.use.payouts)
}
