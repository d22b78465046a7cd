package loader

import (
	"testing"

	"persondir/testutil"
)

func TestNoDriverImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.DriverImportForbidden, "loader reaches storage through interfaces")
}
