package service_test

import (
	"context"
	"testing"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassifyZoopPayment(t *testing.T) {
	tests := map[string]string{
		"debit":   service.LabelDebit,
		"credit":  service.LabelCredit,
		"pix":     service.LabelPix,
		"boleto":  service.LabelOther,
		"":        service.LabelOther,
		"CREDIT":  service.LabelOther,
		"voucher": service.LabelOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, service.ClassifyZoopPayment(in), in)
	}
}

func TestClassifyZoopStatus(t *testing.T) {
	assert.Equal(t, service.StatusSucceeded, service.ClassifyZoopStatus("succeeded"))
	assert.Equal(t, service.StatusCanceled, service.ClassifyZoopStatus("canceled"))
	assert.Equal(t, "", service.ClassifyZoopStatus("pending"))
	assert.Equal(t, "", service.ClassifyZoopStatus(""))
}

func TestClassifyUsePayment(t *testing.T) {
	tests := []struct {
		origin, chargeType, want string
	}{
		{"PIX", "BOLETO_PIX", service.LabelBoletoQRCode},
		{"BOLETO", "BOLETO_PIX", service.LabelBoleto},
		{"PIX", "PIX_AVULSO", service.LabelPix},
		{"BOLETO", "PIX_AVULSO", service.LabelOther},
		{"", "", service.LabelOther},
		{"CARTAO", "BOLETO_PIX", service.LabelOther},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, service.ClassifyUsePayment(tc.origin, tc.chargeType), "%s/%s", tc.origin, tc.chargeType)
	}
}

func TestParseDateRange(t *testing.T) {
	start, end, err := service.ParseDateRange("2024-02-29", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", start.Format("2006-01-02"))
	assert.Equal(t, "2024-03-01", end.Format("2006-01-02"))

	_, _, err = service.ParseDateRange("2024-03-05", "2024-03-01")
	assert.NoError(t, err, "reversed ranges are accepted")

	for _, bad := range [][2]string{
		{"2023-02-29", "2023-03-01"},
		{"2024-3-01", "2024-03-01"},
		{"2024-03-01", "2024-03-01T00:00:00"},
		{"", "2024-03-01"},
	} {
		_, _, err := service.ParseDateRange(bad[0], bad[1])
		var ve *domain.ErrValidation
		require.ErrorAs(t, err, &ve, "%v", bad)
		assert.Equal(t, "Parâmetros dataInicial e dataFinal são obrigatórios e devem estar no formato aaaa-mm-dd", ve.Error())
	}
}

func TestResolveLabel(t *testing.T) {
	desc := "Balcão"
	local := []domain.Terminal{
		{Serial: "S-1", Description: &desc, Identifier: "pos-1"},
		{Serial: "S-2", Identifier: "pos-2"},
		{Serial: "S-DUP", Identifier: "pos-1"},
		{Serial: "S-BLANK", Identifier: ""},
	}
	lookup := &fakeLookup{serials: map[string]string{"pos-3": "S-3", "pos-blank": ""}}
	r := service.NewTerminalResolver(lookup, zap.NewNop())
	est := &domain.Establishment{ID: 1}
	tx := func(id string) domain.ZoopTransaction {
		if id == "" {
			return domain.ZoopTransaction{}
		}
		return domain.ZoopTransaction{PointOfSale: &domain.ZoopPointOfSale{IdentificationNumber: id}}
	}
	ctx := context.Background()

	assert.Equal(t, domain.TerminalNotFound, r.ResolveLabel(ctx, tx(""), est, local))
	assert.Equal(t, "Balcão", r.ResolveLabel(ctx, tx("pos-1"), est, local))
	assert.Equal(t, "S-2", r.ResolveLabel(ctx, tx("pos-2"), est, local))
	assert.Equal(t, "S-3", r.ResolveLabel(ctx, tx("pos-3"), est, local))
	assert.Equal(t, domain.TerminalNotFound, r.ResolveLabel(ctx, tx("pos-blank"), est, local))
	assert.Equal(t, domain.TerminalNotFound, r.ResolveLabel(ctx, tx("pos-unknown"), est, local))
	assert.Equal(t, 0, lookup.calls["pos-1"])
	assert.Equal(t, 1, lookup.calls["pos-3"])

	noRemote := service.NewTerminalResolver(nil, zap.NewNop())
	assert.Equal(t, domain.TerminalNotFound, noRemote.ResolveLabel(ctx, tx("pos-3"), est, nil))
}
