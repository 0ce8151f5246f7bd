package domain

import "time"

// TerminalNotFound is the label used when a transaction's terminal cannot be identified.
const TerminalNotFound = "TERMINAL NOT FOUND"

// ============================================================
// Zoop (provider types 1 and 2) raw payloads
// ============================================================

// ZoopTransaction is one card/PIX transaction as returned by Zoop.
type ZoopTransaction struct {
	ID            string             `json:"id"`
	Amount        Money              `json:"amount"`
	Fees          Money              `json:"fees"`
	Status        string             `json:"status"`
	PaymentType   string             `json:"payment_type"`
	PaymentMethod *ZoopPaymentMethod `json:"payment_method"`
	PointOfSale   *ZoopPointOfSale   `json:"point_of_sale"`
	UpdatedAt     string             `json:"updated_at"`
}

// ZoopPaymentMethod carries the card holder data of a transaction.
type ZoopPaymentMethod struct {
	HolderName   string `json:"holder_name"`
	First4Digits string `json:"first4_digits"`
	Last4Digits  string `json:"last4_digits"`
}

// ZoopPointOfSale identifies the device that captured a transaction.
type ZoopPointOfSale struct {
	IdentificationNumber string `json:"identification_number"`
}

// TerminalID returns the point-of-sale identifier, or "" when absent.
func (t ZoopTransaction) TerminalID() string {
	if t.PointOfSale == nil {
		return ""
	}
	return t.PointOfSale.IdentificationNumber
}

// ZoopTransactionPage is one page of the transaction search.
// Items is nil when the page carries no "items" key.
type ZoopTransactionPage struct {
	Items      []ZoopTransaction `json:"items"`
	TotalPages int               `json:"total_pages"`
	Limit      int               `json:"limit"`
}

// ZoopBalance is the seller balance response. CurrentBalance is in cents.
type ZoopBalance struct {
	Items *struct {
		CurrentBalance *Money `json:"current_balance"`
	} `json:"items"`
}

// ============================================================
// Use (provider type 3) raw payloads
// ============================================================

// UseReceivable is a paid charge ("cobrança paga") with its payments.
type UseReceivable struct {
	PayerName    string       `json:"sacado_razao"`
	ChargeAmount Money        `json:"valor_cobranca"`
	OrderNumber  string       `json:"pedido_numero"`
	Note         string       `json:"observacao"`
	ChargeType   string       `json:"tipo_cobranca"`
	DocumentDate string       `json:"data_documento"`
	DueDate      string       `json:"data_vencimento"`
	Payments     []UsePayment `json:"pagamentos"`
}

// UsePayment is one settlement of a receivable.
type UsePayment struct {
	AmountPaid    Money  `json:"valor_pago"`
	MerchantFee   Money  `json:"valor_taxa_credenciado"`
	SettledAt     string `json:"data_quitacao"`
	PaymentOrigin string `json:"origem_pagamento"`
}

// UseBalance is the Use balance response, in the provider's native unit.
type UseBalance struct {
	CurrentBalance Money `json:"saldo_atual"`
}

// ============================================================
// Normalized output
// ============================================================

// NormalizedTransaction is the provider-independent view of one payment.
// Zoop-only and Use-only fields are omitted when empty.
type NormalizedTransaction struct {
	ID            string    `json:"id,omitempty"`
	Status        string    `json:"status,omitempty"`
	Customer      string    `json:"cliente"`
	ChargeAmount  *Money    `json:"valor_boleto,omitempty"`
	Order         string    `json:"pedido,omitempty"`
	Note          string    `json:"observacao,omitempty"`
	Origin        string    `json:"origem,omitempty"`
	PaymentMethod string    `json:"forma_pagamento"`
	FirstDigits   string    `json:"primeiros_digitos,omitempty"`
	LastDigits    string    `json:"ultimos_digitos,omitempty"`
	DocumentDate  string    `json:"data_documento,omitempty"`
	DueDate       string    `json:"data_vencimento,omitempty"`
	PaymentDate   string    `json:"data_pagamento"`
	PaymentTime   string    `json:"hora,omitempty"`
	Terminal      string    `json:"terminal,omitempty"`
	Total         Money     `json:"total"`
	Fee           Money     `json:"taxa"`
	PaidAt        time.Time `json:"-"`
}

// SummaryBalance holds the totals of one establishment for the requested period.
type SummaryBalance struct {
	Count        int                     `json:"quantidade"`
	Total        Money                   `json:"total"`
	Fee          Money                   `json:"tarifa"`
	Balance      Money                   `json:"saldo"`
	Transactions []NormalizedTransaction `json:"transacoes"`
}

// EstablishmentSummary is the aggregated result for one establishment.
type EstablishmentSummary struct {
	ID      int64          `json:"id"`
	Name    string         `json:"estabelecimento"`
	Region  int            `json:"regiao"`
	TaxID   string         `json:"cnpj"`
	Payout  bool           `json:"repasse"`
	Balance SummaryBalance `json:"saldo"`
}

// AggregationError records why one establishment is missing from the result.
type AggregationError struct {
	EstablishmentID int64  `json:"unidade_id"`
	Message         string `json:"value"`
}

// PageMeta describes offset pagination over establishment summaries.
type PageMeta struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
}

// AggregationResult is the paginated, best-effort output of an aggregation.
type AggregationResult struct {
	Data   []EstablishmentSummary
	Meta   PageMeta
	Errors []AggregationError
}

// AggregationRequest is what the HTTP boundary hands to the aggregation core.
type AggregationRequest struct {
	StartDate        string
	EndDate          string
	EstablishmentIDs []int64
	Page             int
	PerPage          int
	Principal        *User
}
