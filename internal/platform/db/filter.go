package db

import (
	"strconv"
	"strings"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains returns an ILIKE pattern matching term anywhere, with the
// wildcards in term taken literally.
func Contains(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// Filter builds an AND-ed WHERE clause with positional arguments. Every "?"
// in a condition is bound to that condition's value.
type Filter struct {
	conds []string
	args  []any
}

// ScopeFilter starts a filter restricted to tenantID unless all is set.
func ScopeFilter(all bool, tenantID int64) *Filter {
	return &Filter{conds: []string{`($1::bool OR tenant_id=$2)`}, args: []any{all, tenantID}}
}

// Where adds a condition with one bound value.
func (f *Filter) Where(cond string, value any) *Filter {
	f.args = append(f.args, value)
	f.conds = append(f.conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(f.args))))
	return f
}

// Raw adds a condition without arguments.
func (f *Filter) Raw(cond string) *Filter {
	f.conds = append(f.conds, cond)
	return f
}

// SQL renders "WHERE ... ORDER BY orderBy LIMIT $n OFFSET $m" and the
// matching arguments.
func (f *Filter) SQL(orderBy string, limit, offset int) (string, []any) {
	args := append(append([]any(nil), f.args...), limit, offset)
	n := len(args)
	return " WHERE " + strings.Join(f.conds, " AND ") +
		" ORDER BY " + orderBy +
		" LIMIT $" + strconv.Itoa(n-1) + " OFFSET $" + strconv.Itoa(n), args
}
