package sqlstore

import (
	"strconv"
	"time"

	"persondir/pkg/domain"
)

// Dialect captures the statements and error codes that differ between
// database/sql backends. Everything else in Store is shared SQL.
type Dialect struct {
	Name string
	// DDL is the schema script applied by ApplySchema.
	DDL string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// MaxRowsPerInsert bounds one multi-row INSERT statement.
	MaxRowsPerInsert int
	// DateArg converts a birth date into the driver bind value.
	DateArg func(time.Time) any
	// IsUniqueViolation recognises the driver's unique-constraint error.
	IsUniqueViolation func(error) bool
	// ExplainPrefix is prepended to a query to obtain its plan.
	ExplainPrefix string
	// ClassifyPlan turns explain output lines into a Plan.
	ClassifyPlan func(lines []string) domain.Plan
	// IndexColumn decorates a column inside CREATE INDEX.
	IndexColumn func(column string) string
	// ListIndexesSQL selects secondary index names on the employees table.
	ListIndexesSQL string
	AnalyzeSQL     string
	TruncateSQL    string
	Capabilities   domain.Capabilities
}

// QuestionPlaceholder renders "?" parameters.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders "$n" parameters.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// PlainColumn leaves index columns undecorated.
func PlainColumn(column string) string { return column }
