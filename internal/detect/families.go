// internal/detect/families.go
package detect

// Family identifies one category of external check
type Family string

const (
	FamilyTypecheck Family = "typecheck"
	FamilyBuild     Family = "build"
	FamilyLint      Family = "lint"
	FamilyStylelint Family = "stylelint"
	FamilyTest      Family = "test"
)

// Families lists all supported check families in execution order
var Families = []Family{FamilyTypecheck, FamilyBuild, FamilyLint, FamilyStylelint, FamilyTest}

// ParserKind selects the output adapter for a tool command
type ParserKind string

const (
	ParserTSC       ParserKind = "tsc"
	ParserESLint    ParserKind = "eslint-json"
	ParserStylelint ParserKind = "stylelint-json"
	ParserGeneric   ParserKind = "generic"
	ParserJest      ParserKind = "jest"
)
