package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates(t *testing.T) {
	assert.True(t, InternalImportForbidden("persondir/internal/loader"))
	assert.False(t, InternalImportForbidden("persondir/pkg/domain"))

	assert.True(t, DriverImportForbidden("modernc.org/sqlite"))
	assert.True(t, DriverImportForbidden("github.com/jackc/pgx/v5/stdlib"))
	assert.True(t, DriverImportForbidden("database/sql"))
	assert.True(t, DriverImportForbidden("persondir/internal/infra/persistence/memory"))
	assert.False(t, DriverImportForbidden("persondir/pkg/domain"))
	assert.False(t, DriverImportForbidden("context"))
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
	}
	write("a.go", "package x\n\nimport (\n\t\"database/sql\"\n\t\"fmt\"\n)\n\nvar _ = sql.ErrNoRows\nvar _ = fmt.Sprint\n")
	write("a_test.go", "package x\n\nimport \"modernc.org/sqlite\"\n")
	write("notes.txt", "import \"database/sql\"")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	viols, err := directImportViolations(dir, DriverImportForbidden)
	require.NoError(t, err)
	assert.Equal(t, []string{"database/sql (in a.go)"}, viols)

	_, err = directImportViolations(filepath.Join(dir, "missing"), DriverImportForbidden)
	assert.Error(t, err)
}

func TestAssertNoDirectImportsPassesOnCleanDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package x\n\nimport \"context\"\n\nvar _ context.Context\n"), 0o600))
	AssertNoDirectImports(t, dir, DriverImportForbidden, "pipeline code")
}
