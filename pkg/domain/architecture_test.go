package domain

import (
	"testing"

	"persondir/testutil"
)

func TestDomainDependsOnNothingInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain types are shared by every layer")
	testutil.AssertNoDirectImports(t, ".", testutil.DriverImportForbidden, "domain is storage agnostic")
}
