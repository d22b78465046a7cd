package indexdemo

import (
	"testing"

	"persondir/testutil"
)

func TestNoDriverImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.DriverImportForbidden, "indexdemo reaches storage through interfaces")
}
