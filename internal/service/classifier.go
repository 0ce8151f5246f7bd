package service

// Display labels for payment methods and statuses.
const (
	LabelDebit        = "DEBIT"
	LabelCredit       = "CREDIT"
	LabelPix          = "PIX"
	LabelBoleto       = "BOLETO"
	LabelBoletoQRCode = "BOLETO QRCODE"
	LabelOther        = "OTHER"

	StatusSucceeded = "SUCCEEDED"
	StatusCanceled  = "CANCELED"
)

var zoopPaymentLabels = map[string]string{
	"debit":  LabelDebit,
	"credit": LabelCredit,
	"pix":    LabelPix,
}

var zoopStatusLabels = map[string]string{
	"succeeded": StatusSucceeded,
	"canceled":  StatusCanceled,
}

type useCombination struct {
	origin     string // origem_pagamento
	chargeType string // tipo_cobranca
}

var usePaymentLabels = map[useCombination]string{
	{origin: "PIX", chargeType: "BOLETO_PIX"}:    LabelBoletoQRCode,
	{origin: "BOLETO", chargeType: "BOLETO_PIX"}: LabelBoleto,
	{origin: "PIX", chargeType: "PIX_AVULSO"}:    LabelPix,
}

// ClassifyZoopPayment maps a Zoop payment_type to its label; unknown codes are OTHER.
func ClassifyZoopPayment(paymentType string) string {
	if label, ok := zoopPaymentLabels[paymentType]; ok {
		return label
	}
	return LabelOther
}

// ClassifyZoopStatus maps a Zoop status to its label; unknown statuses map to "".
func ClassifyZoopStatus(status string) string {
	return zoopStatusLabels[status]
}

// ClassifyUsePayment maps a (payment origin, charge type) pair to its label.
// Unknown combinations are OTHER.
func ClassifyUsePayment(origin, chargeType string) string {
	if label, ok := usePaymentLabels[useCombination{origin: origin, chargeType: chargeType}]; ok {
		return label
	}
	return LabelOther
}
