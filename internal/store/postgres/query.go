package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

const defaultListLimit = 50

// listQuery appends the ListOpts filters on timeCol to base, newest first.
func listQuery(base, timeCol string, opts domain.ListOpts) (string, []any) {
	var (
		b    strings.Builder
		args []any
		cond []string
	)
	b.WriteString(base)

	if opts.Since != nil {
		args = append(args, *opts.Since)
		cond = append(cond, fmt.Sprintf("%s >= $%d", timeCol, len(args)))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		cond = append(cond, fmt.Sprintf("%s <= $%d", timeCol, len(args)))
	}
	if len(cond) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(cond, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s DESC", timeCol)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}
