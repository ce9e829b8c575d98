package repositories

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Column is a fixed, qualified column of the student listing query.
// Only these constants ever reach a structural SQL position.
type Column string

const (
	ColumnID            Column = "s.id"
	ColumnStudentID     Column = "s.student_id"
	ColumnFirstName     Column = "s.first_name"
	ColumnLastName      Column = "s.last_name"
	ColumnGender        Column = "s.gender"
	ColumnClassName     Column = "s.class_name"
	ColumnGuardianName  Column = "s.guardian_name"
	ColumnAdmissionDate Column = "s.admission_date"
	ColumnStatus        Column = "s.status"
)

// Operator is the comparison applied by a clause
type Operator int

const (
	OpEq Operator = iota
	OpNotEq
	// OpContains matches the value anywhere in the column, case-insensitively
	OpContains
	// OpHasPrefix matches columns starting with the value, case-sensitively
	OpHasPrefix
)

// Clause is a single bound comparison
type Clause struct {
	Column   Column
	Operator Operator
	Value    any
}

// condition is either a single clause or an OR-group of clauses
type condition struct {
	anyOf []Clause
}

// Predicate is an ordered conjunction of clauses and OR-groups
type Predicate struct {
	conditions []condition
}

// NewPredicate returns an empty predicate that matches every row
func NewPredicate() *Predicate {
	return &Predicate{}
}

// Where appends a clause that must hold
func (p *Predicate) Where(column Column, op Operator, value any) *Predicate {
	p.conditions = append(p.conditions, condition{anyOf: []Clause{{Column: column, Operator: op, Value: value}}})
	return p
}

// AnyOf appends a group of clauses of which at least one must hold
func (p *Predicate) AnyOf(clauses ...Clause) *Predicate {
	if len(clauses) > 0 {
		p.conditions = append(p.conditions, condition{anyOf: clauses})
	}
	return p
}

// Len returns the number of top-level conditions
func (p *Predicate) Len() int {
	if p == nil {
		return 0
	}
	return len(p.conditions)
}

// Clauses returns every clause in order, flattening OR-groups
func (p *Predicate) Clauses() []Clause {
	if p == nil {
		return nil
	}
	var clauses []Clause
	for _, c := range p.conditions {
		clauses = append(clauses, c.anyOf...)
	}
	return clauses
}

// Sqlizer renders the predicate for squirrel's Where. An empty predicate renders nothing.
func (p *Predicate) Sqlizer() (squirrel.Sqlizer, error) {
	where := squirrel.And{}
	if p == nil {
		return where, nil
	}

	for _, c := range p.conditions {
		if len(c.anyOf) == 1 {
			s, err := c.anyOf[0].sqlizer()
			if err != nil {
				return nil, err
			}
			where = append(where, s)
			continue
		}

		group := squirrel.Or{}
		for _, clause := range c.anyOf {
			s, err := clause.sqlizer()
			if err != nil {
				return nil, err
			}
			group = append(group, s)
		}
		where = append(where, group)
	}
	return where, nil
}

func (c Clause) sqlizer() (squirrel.Sqlizer, error) {
	col := string(c.Column)
	switch c.Operator {
	case OpEq:
		return squirrel.Eq{col: c.Value}, nil
	case OpNotEq:
		return squirrel.NotEq{col: c.Value}, nil
	case OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("contains clause on %s needs a string value, got %T", col, c.Value)
		}
		return squirrel.ILike{col: "%" + escapeLike(s) + "%"}, nil
	case OpHasPrefix:
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("prefix clause on %s needs a string value, got %T", col, c.Value)
		}
		return squirrel.Like{col: escapeLike(s) + "%"}, nil
	default:
		return nil, fmt.Errorf("unknown operator %d on %s", c.Operator, col)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE wildcards in user input
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SortOrder is ASC or DESC
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// DefaultSortField is used whenever the requested field is not sortable
const DefaultSortField = "last_name"

// Sort is a resolved, allow-listed ordering
type Sort struct {
	Column Column
	Order  SortOrder
}

// sortableColumns is the sort allow-list keyed by request field name
var sortableColumns = map[string]Column{
	"first_name":     ColumnFirstName,
	"last_name":      ColumnLastName,
	"student_id":     ColumnStudentID,
	"class":          ColumnClassName,
	"admission_date": ColumnAdmissionDate,
}

// isValidSortField checks if the provided sort field is allowed
func isValidSortField(field string) bool {
	_, ok := sortableColumns[field]
	return ok
}

// ResolveSort maps request text onto an allow-listed column and direction.
// Unknown fields fall back to last_name and unknown orders to ascending.
func ResolveSort(field, order string) Sort {
	field = strings.ToLower(strings.TrimSpace(field))
	if !isValidSortField(field) {
		field = DefaultSortField
	}

	dir := SortAsc
	if strings.EqualFold(strings.TrimSpace(order), "desc") {
		dir = SortDesc
	}
	return Sort{Column: sortableColumns[field], Order: dir}
}

// orderBy returns the ORDER BY terms, with the identifier and row id as tie-breakers
func (s Sort) orderBy() []string {
	if s.Column == "" {
		s = ResolveSort("", "")
	}
	terms := []string{fmt.Sprintf("%s %s", s.Column, s.Order)}
	if s.Column != ColumnStudentID {
		terms = append(terms, fmt.Sprintf("%s ASC", ColumnStudentID))
	}
	return append(terms, fmt.Sprintf("%s ASC", ColumnID))
}
