package sim

import (
	"strings"
	"testing"

	"growcore/testutil"
)

// The simulation core is pure computation over domain types. Persistence,
// blob storage and the service layer must never leak into it.
func TestSimPackageStaysPure(t *testing.T) {
	forbidden := func(path string) bool {
		return testutil.InfraImportForbidden(path) ||
			strings.HasSuffix(path, "/internal/core") ||
			strings.HasSuffix(path, "/internal/blob")
	}
	testutil.AssertNoDirectImports(t, ".", forbidden, "sim must not import core, blob or infra packages")
}
