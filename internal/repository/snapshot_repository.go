package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// tenantTables lists every table included in a tenant snapshot, in a stable
// order so exports are reproducible.
var tenantTables = []string{
	"students",
	"faculty",
	"subjects",
	"divisions",
	"timetable_entries",
	"attendance_records",
	"fees",
	"weekly_tests",
	"test_results",
	"challenges",
	"challenge_completions",
	"badges",
	"student_badges",
	"homework",
	"announcements",
}

// SnapshotRepository dumps one tenant's rows for backup archives.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new instance of SnapshotRepository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Tables returns the snapshot table list.
func (r *SnapshotRepository) Tables() []string {
	out := make([]string, len(tenantTables))
	copy(out, tenantTables)
	return out
}

// ExportTenant reads every tenant-scoped table into generic row maps keyed by
// table name. Byte values are stringified so the result marshals to JSON.
func (r *SnapshotRepository) ExportTenant(ctx context.Context, tuitionID string) (map[string][]map[string]interface{}, error) {
	export := make(map[string][]map[string]interface{}, len(tenantTables))
	for _, table := range tenantTables {
		query := fmt.Sprintf(`SELECT * FROM %s WHERE tuition_id = $1`, table)
		rows, err := r.db.QueryxContext(ctx, query, tuitionID)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", table, err)
		}
		var tableRows []map[string]interface{}
		for rows.Next() {
			row := map[string]interface{}{}
			if err := rows.MapScan(row); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s row: %w", table, err)
			}
			for k, v := range row {
				if b, ok := v.([]byte); ok {
					row[k] = string(b)
				}
			}
			tableRows = append(tableRows, row)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("snapshot %s: %w", table, err)
		}
		rows.Close()
		export[table] = tableRows
	}
	return export, nil
}
