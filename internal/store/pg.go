package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/areluna/finimport/internal/entity"
	"github.com/areluna/finimport/internal/resolver"
)

// DefaultPageSize is the page used when reading complete row sets. The
// destination silently caps unpaged selects, so every read that must see
// all rows pages through them explicitly.
const DefaultPageSize = 1000

type PG struct {
	pool     *pgxpool.Pool
	log      *logrus.Logger
	PageSize int
}

func Connect(ctx context.Context, connString string, log *logrus.Logger) (*PG, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return &PG{pool: pool, log: log, PageSize: DefaultPageSize}, nil
}

func (p *PG) Close() {
	p.pool.Close()
}

func (p *PG) pageSize() int {
	if p.PageSize > 0 {
		return p.PageSize
	}
	return DefaultPageSize
}

// ClientRefs returns the resolution keys of every persisted client.
func (p *PG) ClientRefs(ctx context.Context) ([]resolver.Ref, error) {
	var refs []resolver.Ref
	size := p.pageSize()
	for offset := 0; ; offset += size {
		rows, err := p.pool.Query(ctx, `
			SELECT id, COALESCE(external_id, ''), COALESCE(first_name, ''), COALESCE(last_name, '')
			FROM clients ORDER BY id LIMIT $1 OFFSET $2`, size, offset)
		if err != nil {
			return nil, fmt.Errorf("list clients: %w", err)
		}
		n := 0
		for rows.Next() {
			var r resolver.Ref
			var first, last string
			if err := rows.Scan(&r.ID, &r.ExternalID, &first, &last); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan client ref: %w", err)
			}
			r.NameKey = entity.NameKey(first, last)
			refs = append(refs, r)
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("list clients: %w", err)
		}
		if n < size {
			return refs, nil
		}
	}
}

// ContractRefs returns the resolution keys of every persisted contract.
func (p *PG) ContractRefs(ctx context.Context) ([]resolver.Ref, error) {
	var refs []resolver.Ref
	size := p.pageSize()
	for offset := 0; ; offset += size {
		rows, err := p.pool.Query(ctx, `
			SELECT id, COALESCE(external_id, '')
			FROM contracts ORDER BY id LIMIT $1 OFFSET $2`, size, offset)
		if err != nil {
			return nil, fmt.Errorf("list contracts: %w", err)
		}
		n := 0
		for rows.Next() {
			var r resolver.Ref
			if err := rows.Scan(&r.ID, &r.ExternalID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan contract ref: %w", err)
			}
			refs = append(refs, r)
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("list contracts: %w", err)
		}
		if n < size {
			return refs, nil
		}
	}
}

const clientColumns = `first_name, last_name, email, phone, mobile, tax_id, birth_date,
	address, city, state, postal_code, country, notes, status, external_id`

const clientConflict = `ON CONFLICT (external_id) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	email = EXCLUDED.email,
	phone = EXCLUDED.phone,
	mobile = EXCLUDED.mobile,
	tax_id = EXCLUDED.tax_id,
	birth_date = EXCLUDED.birth_date,
	address = EXCLUDED.address,
	city = EXCLUDED.city,
	state = EXCLUDED.state,
	postal_code = EXCLUDED.postal_code,
	country = EXCLUDED.country,
	notes = EXCLUDED.notes,
	status = EXCLUDED.status,
	updated_at = NOW()`

func clientArgs(c entity.Client) []any {
	return []any{
		c.FirstName, c.LastName, c.Email, c.Phone, c.Mobile, c.TaxID, pgDate(c.BirthDate),
		c.Address, c.City, c.State, c.PostalCode, c.Country, c.Notes, c.Status, c.ExternalID,
	}
}

// UpsertClients writes clients in batches keyed by external_id. Rows
// without an external_id insert plainly and will duplicate on re-runs;
// production imports always derive one.
func (p *PG) UpsertClients(ctx context.Context, clients []entity.Client, batchSize int) BatchResult {
	return p.upsert(ctx, "clients", clientColumns, clientConflict, len(clients), batchSize,
		func(i int) ([]any, string) { return clientArgs(clients[i]), clients[i].Key() })
}

const contractColumns = `client_id, contract_number, description, total_amount,
	start_date, end_date, status, payment_frequency, notes, external_id`

const contractConflict = `ON CONFLICT (external_id) DO UPDATE SET
	client_id = EXCLUDED.client_id,
	description = EXCLUDED.description,
	total_amount = EXCLUDED.total_amount,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	status = EXCLUDED.status,
	payment_frequency = EXCLUDED.payment_frequency,
	updated_at = NOW()`

func contractArgs(c entity.Contract) []any {
	return []any{
		c.ClientID, c.ContractNumber, c.Description, c.TotalAmount.String(),
		pgDate(c.StartDate), pgDate(c.EndDate), c.Status, c.PaymentFrequency, c.Notes, c.ExternalID,
	}
}

func (p *PG) UpsertContracts(ctx context.Context, contracts []entity.Contract, batchSize int) BatchResult {
	return p.upsert(ctx, "contracts", contractColumns, contractConflict, len(contracts), batchSize,
		func(i int) ([]any, string) { return contractArgs(contracts[i]), contracts[i].Key() })
}

const paymentColumns = `contract_id, amount, due_date, paid_date, status, payment_method, notes, external_id`

const paymentConflict = `ON CONFLICT (external_id) DO UPDATE SET
	contract_id = EXCLUDED.contract_id,
	amount = EXCLUDED.amount,
	due_date = EXCLUDED.due_date,
	paid_date = EXCLUDED.paid_date,
	status = EXCLUDED.status,
	updated_at = NOW()`

func paymentArgs(pay entity.Payment) []any {
	return []any{
		pay.ContractID, pay.Amount.String(), pgDate(pay.DueDate), pgDate(pay.PaidDate),
		pay.Status, pay.PaymentMethod, pay.Notes, pay.ExternalID,
	}
}

func (p *PG) UpsertPayments(ctx context.Context, payments []entity.Payment, batchSize int) BatchResult {
	return p.upsert(ctx, "payments", paymentColumns, paymentConflict, len(payments), batchSize,
		func(i int) ([]any, string) { return paymentArgs(payments[i]), payments[i].Key() })
}

func (p *PG) upsert(
	ctx context.Context,
	table, columns, conflict string,
	total, batchSize int,
	row func(i int) (args []any, key string),
) BatchResult {
	colCount := strings.Count(columns, ",") + 1

	write := func(lo, hi int) error {
		args := make([]any, 0, (hi-lo)*colCount)
		for i := lo; i < hi; i++ {
			rowArgs, _ := row(i)
			args = append(args, rowArgs...)
		}
		sql := multiInsertSQL(table, columns, conflict, colCount, hi-lo)
		_, err := p.pool.Exec(ctx, sql, args...)
		return err
	}

	res := runBatches(total, batchSize,
		func(lo, hi int) error {
			err := write(lo, hi)
			if err != nil {
				p.log.WithFields(logrus.Fields{
					"table": table,
					"rows":  hi - lo,
				}).Warnf("batch write failed, retrying per row: %v", err)
			}
			return err
		},
		func(i int) (string, error) {
			args, key := row(i)
			sql := multiInsertSQL(table, columns, conflict, colCount, 1)
			_, err := p.pool.Exec(ctx, sql, args...)
			return key, err
		},
	)

	p.log.WithFields(logrus.Fields{
		"table":     table,
		"attempted": res.Attempted,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
	}).Info("upsert pass finished")
	return res
}

// multiInsertSQL builds a single multi-row conflict-aware insert.
func multiInsertSQL(table, columns, conflict string, colCount, rowCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, columns)
	arg := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < colCount; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteByte(')')
	}
	b.WriteByte('\n')
	b.WriteString(conflict)
	return b.String()
}

func pgDate(iso *string) pgtype.Date {
	if iso == nil {
		return pgtype.Date{}
	}
	t, err := time.Parse("2006-01-02", *iso)
	if err != nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// PaymentRow is the slice of a payment the diagnostics need.
type PaymentRow struct {
	ID     int64
	Status string
	Amount decimal.Decimal
}

// SumPaymentsByStatus computes the store-side filtered aggregate.
func (p *PG) SumPaymentsByStatus(ctx context.Context, status string) (decimal.Decimal, error) {
	var sum string
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM payments WHERE status = $1`, status,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	d, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: parse %q: %w", sum, err)
	}
	return d, nil
}

// AllPayments fetches the complete payment set, paging past any
// server-side row cap, for client-side aggregation.
func (p *PG) AllPayments(ctx context.Context) ([]PaymentRow, error) {
	var out []PaymentRow
	size := p.pageSize()
	for offset := 0; ; offset += size {
		rows, err := p.pool.Query(ctx, `
			SELECT id, status, amount::text
			FROM payments ORDER BY id LIMIT $1 OFFSET $2`, size, offset)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		n := 0
		for rows.Next() {
			var r PaymentRow
			var amount string
			if err := rows.Scan(&r.ID, &r.Status, &amount); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan payment: %w", err)
			}
			d, err := decimal.NewFromString(amount)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("parse amount %q: %w", amount, err)
			}
			r.Amount = d
			out = append(out, r)
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		if n < size {
			return out, nil
		}
	}
}

// TableCounts returns the row count per destination table.
func (p *PG) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 3)
	for _, table := range []string{"clients", "contracts", "payments"} {
		var n int64
		if err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// OrphanCounts reports referential-integrity violations: contracts whose
// client is missing and payments whose contract is missing. A correct
// import always yields zeros, because unresolved rows are skipped
// instead of written.
func (p *PG) OrphanCounts(ctx context.Context) (orphanContracts, orphanPayments int64, err error) {
	err = p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM contracts c
		LEFT JOIN clients cl ON cl.id = c.client_id
		WHERE cl.id IS NULL`).Scan(&orphanContracts)
	if err != nil {
		return 0, 0, fmt.Errorf("count orphan contracts: %w", err)
	}
	err = p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM payments p
		LEFT JOIN contracts c ON c.id = p.contract_id
		WHERE c.id IS NULL`).Scan(&orphanPayments)
	if err != nil {
		return 0, 0, fmt.Errorf("count orphan payments: %w", err)
	}
	return orphanContracts, orphanPayments, nil
}
