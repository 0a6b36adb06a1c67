package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stockflow-app/invoice-ingest/internal/domain/catalog"
)

// Repository persists processed invoices. Writes are all-or-nothing per
// invoice: the header row and every line item commit in one transaction.
type Repository struct {
	db catalog.PgxPool
}

// NewRepository creates an invoice repository over a pgx pool.
func NewRepository(db catalog.PgxPool) *Repository {
	return &Repository{db: db}
}

// SaveInvoice writes the invoice header and its parsed, matched line items
// in a single transaction and returns the new invoice id.
func (r *Repository) SaveInvoice(ctx context.Context, supplierID uuid.UUID, report *Report) (uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin invoice tx: %w", err)
	}
	defer tx.Rollback(ctx)

	invoiceID := uuid.New()
	h := report.Header
	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (
			id, supplier_id, supplier_name, invoice_number, invoice_date,
			customer_ref, delivery_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, invoiceID, supplierID, h.SupplierName, h.InvoiceNumber, h.InvoiceDate,
		h.CustomerRef, h.DeliveryNumber)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert invoice: %w", err)
	}

	for _, item := range report.Items {
		res := item.Resolution
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_line_items (
				invoice_id, source_index, supplier_code, name, pack_size,
				unit_size, quantity, unit_cost, line_total,
				matched_product_id, match_state, auto_matched
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, invoiceID, item.Item.SourceIndex, item.Item.Code, item.Item.Name,
			item.Item.PackSize, item.Item.UnitSize, item.Item.Quantity,
			item.Item.UnitCost, item.Item.LineTotal,
			item.BestMatchID, string(res.State), res.AutoMatched)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert line item %d: %w", item.Item.SourceIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit invoice tx: %w", err)
	}
	return invoiceID, nil
}
