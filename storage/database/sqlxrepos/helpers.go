package sqlxrepos

import (
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/optioeducation/optio/core"
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a psql unique constraint violation,
// optionally on the named constraint.
func isUniqueViolation(err error, constraint ...string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != pqUniqueViolation {
		return false
	}
	if len(constraint) == 0 {
		return true
	}
	return pqErr.Constraint == constraint[0]
}

// condBuilder accumulates WHERE conditions with positional args.
// Each condition holds a single "?" that gets rewritten to the next $n.
type condBuilder struct {
	conds []string
	args  []interface{}
}

func (b *condBuilder) add(cond string, args ...interface{}) {
	for _, arg := range args {
		b.args = append(b.args, arg)
		cond = strings.Replace(cond, "?", "$"+strconv.Itoa(len(b.args)), 1)
	}
	b.conds = append(b.conds, cond)
}

// set renders the accumulated conditions as an UPDATE ... SET list.
func (b *condBuilder) set() string {
	return strings.Join(b.conds, ", ")
}

func (b *condBuilder) where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// orderClause renders an ORDER BY clause, falling back to deflt when no
// ordering was requested.
func orderClause(ordering []core.DBOrdering, deflt string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + deflt
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// pageClause renders LIMIT/OFFSET for a DBPage; a zero page renders nothing.
func pageClause(page core.DBPage, args *[]interface{}) string {
	var clause string
	if page.Limit > 0 {
		*args = append(*args, page.Limit)
		clause += " LIMIT $" + strconv.Itoa(len(*args))
	}
	if page.Offset > 0 {
		*args = append(*args, page.Offset)
		clause += " OFFSET $" + strconv.Itoa(len(*args))
	}
	return clause
}
