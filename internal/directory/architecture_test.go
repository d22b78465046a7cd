package directory

import (
	"testing"

	"persondir/testutil"
)

func TestNoDriverImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.DriverImportForbidden, "directory reaches storage through interfaces")
}
