package migration

import (
	"context"
	"database/sql"
	"fmt"
)

// LedgerTable is the table the migrations create.
const LedgerTable = "generation_records"

// LedgerInfo summarizes the rows of the generation ledger.
type LedgerInfo struct {
	Exists   bool
	Total    int64
	ByStatus map[string]int64
}

// readLedger counts ledger rows per status. A table that has not been
// created yet is reported with Exists=false.
func readLedger(ctx context.Context, db *sql.DB) (*LedgerInfo, error) {
	var reg sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)::text", LedgerTable).Scan(&reg); err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", LedgerTable, err)
	}

	info := &LedgerInfo{ByStatus: make(map[string]int64)}
	if !reg.Valid {
		return info, nil
	}
	info.Exists = true

	rows, err := db.QueryContext(ctx, "SELECT status, COUNT(*) FROM "+LedgerTable+" GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", LedgerTable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan %s counts: %w", LedgerTable, err)
		}
		info.ByStatus[status] = n
		info.Total += n
	}
	return info, rows.Err()
}
