package calibdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every statement of the store. It runs either on the pool
// or on a transaction.
type Queries struct {
	q querier
}

// Reference table columns, indexed by month - 1.
var monthColumns = [12]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

func monthColumn(m time.Month) (string, error) {
	if m < time.January || m > time.December {
		return "", fmt.Errorf("invalid month %d", m)
	}
	return monthColumns[m-1], nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
