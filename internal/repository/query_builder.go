package repository

import (
	"fmt"
	"strings"

	"product-catalog/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes a search term match literally inside an ILIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// buildProductFilter turns the search and price parts of a query into a
// WHERE clause with positional arguments. An empty clause matches every row.
func buildProductFilter(q domain.ProductQuery) (string, []interface{}) {
	var conditions []string
	args := []interface{}{}

	if term := strings.TrimSpace(q.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR sku ILIKE $%d)", n, n, n))
	}

	if q.MinPrice != nil {
		args = append(args, *q.MinPrice)
		conditions = append(conditions, fmt.Sprintf("price >= $%d", len(args)))
	}

	if q.MaxPrice != nil {
		args = append(args, *q.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// buildOrderClause resolves the sort key against the whitelist. Unknown keys
// fall back to the default sort, and id breaks ties in the same direction.
func buildOrderClause(q domain.ProductQuery) string {
	column, ok := domain.SortFields[q.SortBy]
	if !ok {
		column = domain.SortFields[domain.DefaultSortField]
	}

	direction := "DESC"
	if q.SortOrder == domain.SortOrderAsc {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s, id %s", column, direction, direction)
}

// buildPageClause appends LIMIT/OFFSET arguments unless the query is unlimited.
func buildPageClause(q domain.ProductQuery, args []interface{}) (string, []interface{}) {
	if q.Unlimited() {
		return "", args
	}
	args = append(args, q.Limit, q.Offset())
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
