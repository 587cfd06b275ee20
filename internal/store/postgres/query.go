package postgres

import (
	"fmt"
	"strings"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// where accumulates positional filter clauses.
type where struct {
	clauses []string
	args    []any
}

func newWhere() *where { return &where{} }

// add appends a clause whose single placeholder is written as "?".
func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

// window renders the WHERE clause plus the ListOpts time range, newest
// first ordering and pagination.
func (w *where) window(opts domain.ListOpts) string {
	if opts.Since != nil {
		w.add("created_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		w.add("created_at <= ?", *opts.Until)
	}

	var b strings.Builder
	if len(w.clauses) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(w.clauses, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		w.args = append(w.args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(w.args))
	}
	if opts.Offset > 0 {
		w.args = append(w.args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(w.args))
	}
	return b.String()
}
