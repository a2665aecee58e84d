// Package mapper converts raw source records into destination entities,
// applying normalization, field-length truncation and defaults. Records
// missing their identifying field map to nothing and are skipped.
package mapper

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/areluna/finimport/internal/entity"
	"github.com/areluna/finimport/internal/normalize"
	"github.com/areluna/finimport/internal/source"
)

// Column aliases per destination field. Sources disagree on naming:
// re-exported CSVs carry destination column names, the original
// spreadsheet carries Portuguese headers.
var (
	colsID             = []string{"id", "ID", "Id"}
	colsName           = []string{"name", "Nome", "full_name"}
	colsFirstName      = []string{"first_name"}
	colsLastName       = []string{"last_name"}
	colsEmail          = []string{"email", "E-mail", "Email"}
	colsPhone          = []string{"phone", "Telefone"}
	colsMobile         = []string{"mobile", "Telemóvel", "Telemovel"}
	colsTaxID          = []string{"tax_id", "NIF"}
	colsBirthDate      = []string{"birth_date", "Data Nascimento"}
	colsAddress        = []string{"address", "Morada"}
	colsCity           = []string{"city", "Cidade"}
	colsState          = []string{"state", "Distrito"}
	colsPostalCode     = []string{"postal_code", "Código postal", "Codigo postal"}
	colsCountry        = []string{"country", "País", "Pais"}
	colsNotes          = []string{"notes", "Observações", "Observacoes"}
	colsStatus         = []string{"status", "Estado"}
	colsClientID       = []string{"client_id"}
	colsContractID     = []string{"contract_id"}
	colsContractNumber = []string{"contract_number", "Nº Contrato", "N Contrato"}
	colsDescription    = []string{"description", "Curso", "Descrição", "Descricao"}
	colsValue          = []string{"value", "total_amount", "Valor Total", "Valor", "Total"}
	colsStartDate      = []string{"start_date", "Data Início", "Data Inicio", "Início", "Inicio"}
	colsEndDate        = []string{"end_date", "Data Fim", "Fim"}
	colsFrequency      = []string{"payment_frequency"}
	colsAmount         = []string{"amount", "Valor", "Valor de Parcela"}
	colsDueDate        = []string{"due_date", "Data Vencimento", "Vencimento"}
	colsPaidDate       = []string{"paid_date", "Data Pagamento"}
	colsPaymentMethod  = []string{"payment_method", "Método", "Metodo"}
	colsIBAN           = []string{"IBAN", "iban"}
	colsDownPayment    = []string{"down_payment", "Entrada", "Valor de Entrada"}
)

type Config struct {
	// DefaultCountry substitutes an absent client country.
	DefaultCountry string
	// WarnLowDownPayment flags contracts whose down payment is under 30%
	// of the total. Only one source variant carries this business rule,
	// so it warns instead of rejecting, and is off unless asked for.
	WarnLowDownPayment bool
}

// Mapper carries the per-run state needed for email disambiguation; one
// Mapper serves one entity-type pass.
type Mapper struct {
	cfg        Config
	log        *logrus.Logger
	seenEmails map[string]struct{}
}

func New(cfg Config, log *logrus.Logger) *Mapper {
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = "Portugal"
	}
	return &Mapper{
		cfg:        cfg,
		log:        log,
		seenEmails: make(map[string]struct{}),
	}
}

// MapClient maps a source row to a Client. Returns ok=false when the row
// has no usable display name.
func (m *Mapper) MapClient(rec source.Record) (*entity.Client, bool) {
	first := rec.Get(colsFirstName...)
	last := rec.Get(colsLastName...)
	if first == "" && last == "" {
		first, last = entity.SplitName(rec.Get(colsName...))
	}
	if first == "" && last == "" {
		return nil, false
	}

	sourceID := rec.Get(colsID...)

	c := &entity.Client{
		SourceID:   sourceID,
		FirstName:  truncated(first, entity.MaxNameLen),
		LastName:   truncated(last, entity.MaxNameLen),
		Email:      m.email(rec, sourceID),
		Phone:      normalize.Truncate(rec.Get(colsPhone...), entity.MaxPhoneLen),
		Mobile:     normalize.Truncate(rec.Get(colsMobile...), entity.MaxPhoneLen),
		TaxID:      normalize.Truncate(rec.Get(colsTaxID...), entity.MaxTaxIDLen),
		BirthDate:  dateOrNil(rec.Get(colsBirthDate...)),
		Address:    normalize.Truncate(rec.Get(colsAddress...), entity.MaxAddressLen),
		City:       normalize.Truncate(rec.Get(colsCity...), entity.MaxCityLen),
		State:      normalize.Truncate(rec.Get(colsState...), entity.MaxStateLen),
		PostalCode: normalize.Truncate(rec.Get(colsPostalCode...), entity.MaxPostalCodeLen),
		Country:    truncated(defaulted(rec.Get(colsCountry...), m.cfg.DefaultCountry), entity.MaxCountryLen),
		Notes:      m.clientNotes(rec),
		Status:     defaulted(strings.ToLower(rec.Get(colsStatus...)), "active"),
		ExternalID: entity.ExternalID(entity.KindClient, sourceID),
	}
	return c, true
}

// email validates and de-duplicates an email across the pass. A repeated
// address gets a suffix derived from the source row id so that distinct
// people sharing a mailbox do not collide on the destination's
// uniqueness constraint.
func (m *Mapper) email(rec source.Record, sourceID string) *string {
	raw := rec.Get(colsEmail...)
	if raw == "" || !strings.Contains(raw, "@") {
		return nil
	}
	addr := raw
	if _, dup := m.seenEmails[strings.ToLower(addr)]; dup && sourceID != "" {
		local, domain, _ := strings.Cut(addr, "@")
		frag := sourceID
		if len(frag) > 8 {
			frag = frag[:8]
		}
		addr = fmt.Sprintf("%s_%s@%s", local, frag, domain)
	}
	m.seenEmails[strings.ToLower(addr)] = struct{}{}
	return normalize.Truncate(addr, entity.MaxEmailLen)
}

func (m *Mapper) clientNotes(rec source.Record) *string {
	if notes := rec.Get(colsNotes...); notes != "" {
		return normalize.Truncate(notes, entity.MaxDescriptionLen)
	}
	if iban := rec.Get(colsIBAN...); iban != "" {
		return normalize.Truncate("IBAN: "+iban, entity.MaxDescriptionLen)
	}
	return nil
}

// MapContract maps a source row to a Contract. Returns ok=false when the
// row carries no way to link a client (neither id nor name).
func (m *Mapper) MapContract(rec source.Record) (*entity.Contract, bool) {
	clientSourceID := rec.Get(colsClientID...)
	clientName := rec.Get(colsName...)
	if clientSourceID == "" && clientName == "" {
		return nil, false
	}

	sourceID := rec.Get(colsID...)

	ref := entity.LinkRef{SourceID: clientSourceID, Name: clientName}
	if ext := entity.ExternalID(entity.KindClient, clientSourceID); ext != nil {
		ref.ExternalID = *ext
	}

	status := strings.ToLower(rec.Get(colsStatus...))
	if _, ok := entity.ContractStatuses[status]; !ok {
		status = "active"
	}

	c := &entity.Contract{
		SourceID:         sourceID,
		ClientRef:        ref,
		ContractNumber:   normalize.Truncate(rec.Get(colsContractNumber...), entity.MaxContractNumberLen),
		Description:      normalize.Truncate(rec.Get(colsDescription...), entity.MaxDescriptionLen),
		TotalAmount:      normalize.Monetary(rec.Get(colsValue...)),
		StartDate:        dateOrNil(rec.Get(colsStartDate...)),
		EndDate:          dateOrNil(rec.Get(colsEndDate...)),
		Status:           status,
		PaymentFrequency: defaulted(strings.ToLower(rec.Get(colsFrequency...)), "monthly"),
		Notes:            normalize.Truncate(rec.Get(colsNotes...), entity.MaxDescriptionLen),
		ExternalID:       entity.ExternalID(entity.KindContract, sourceID),
	}
	if c.TotalAmount.IsNegative() {
		c.TotalAmount = c.TotalAmount.Abs()
	}
	m.checkDownPayment(rec, c)
	return c, true
}

func (m *Mapper) checkDownPayment(rec source.Record, c *entity.Contract) {
	if !m.cfg.WarnLowDownPayment || !rec.Has(colsDownPayment...) || !c.TotalAmount.IsPositive() {
		return
	}
	down := normalize.Monetary(rec.Get(colsDownPayment...))
	minimum := c.TotalAmount.Mul(decimal.NewFromFloat(0.3))
	if down.LessThan(minimum) {
		m.log.WithFields(logrus.Fields{
			"contract":     c.Key(),
			"down_payment": down.String(),
			"total":        c.TotalAmount.String(),
		}).Warn("down payment under 30% of contract total")
	}
}

// MapPayment maps a source row to a Payment. Returns ok=false when the
// row has no contract link.
func (m *Mapper) MapPayment(rec source.Record) (*entity.Payment, bool) {
	contractSourceID := rec.Get(colsContractID...)
	if contractSourceID == "" {
		return nil, false
	}

	sourceID := rec.Get(colsID...)

	ref := entity.LinkRef{SourceID: contractSourceID}
	if ext := entity.ExternalID(entity.KindContract, contractSourceID); ext != nil {
		ref.ExternalID = *ext
	}

	status := strings.ToLower(rec.Get(colsStatus...))
	if _, ok := entity.PaymentStatuses[status]; !ok {
		status = "pending"
	}

	p := &entity.Payment{
		SourceID:      sourceID,
		ContractRef:   ref,
		Amount:        normalize.Monetary(rec.Get(colsAmount...)),
		DueDate:       dateOrNil(rec.Get(colsDueDate...)),
		PaidDate:      dateOrNil(rec.Get(colsPaidDate...)),
		Status:        status,
		PaymentMethod: normalize.Truncate(rec.Get(colsPaymentMethod...), entity.MaxPaymentMethodLen),
		Notes:         normalize.Truncate(rec.Get(colsNotes...), entity.MaxDescriptionLen),
		ExternalID:    entity.ExternalID(entity.KindPayment, sourceID),
	}
	if p.Amount.IsNegative() {
		p.Amount = p.Amount.Abs()
	}
	// paid_date implies the row was settled; best effort, sources disagree
	if p.PaidDate != nil && p.Status == "pending" {
		p.Status = "paid"
	}
	return p, true
}

func dateOrNil(raw string) *string {
	if iso, ok := normalize.Date(raw); ok {
		return &iso
	}
	return nil
}

func defaulted(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func truncated(s string, max int) string {
	if t := normalize.Truncate(s, max); t != nil {
		return *t
	}
	return ""
}
