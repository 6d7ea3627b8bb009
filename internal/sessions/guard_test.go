package sessions_test

// The guard blank import must live in the external test package: guard
// imports internal/app, which imports this package, so importing it from
// the in-package tests is an import cycle. Its init still runs before any
// test in this binary.
import (
	_ "github.com/atriumhq/atrium/internal/testing/guard"
)
