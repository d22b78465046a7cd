package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundlesDeclareUniqueConstraint(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite(), "postgres": Postgres()} {
		stmts := SplitStatements(ddl)
		require.Len(t, stmts, 1, name)
		assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS "+Table, name)
		assert.Contains(t, stmts[0], "CONSTRAINT "+UniqueConstraint+" UNIQUE (full_name, birth_date)", name)
		assert.True(t, strings.HasSuffix(stmts[0], ";"), name)
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- leading comment
CREATE TABLE a (id INT);

   -- indented comment
CREATE INDEX idx_a ON a (id);
ANALYZE`
	stmts := SplitStatements(script)
	assert.Equal(t, []string{
		"CREATE TABLE a (id INT);",
		"CREATE INDEX idx_a ON a (id);",
		"ANALYZE",
	}, stmts)
}
