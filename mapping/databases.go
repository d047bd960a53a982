// Package mapping holds small lookup tables shared by the dialect
// registry and the SQL builder: which SQL dialects HTNQL targets, and how
// each spells the filter operators §3 defines.
package mapping

// SupportedDialects lists the SQL dialects the Dialect Registry knows how
// to quote identifiers and validate syntax for.
var SupportedDialects = []string{
	"postgres",
	"mysql",
}

// IsSupportedDialect reports whether name is one of SupportedDialects.
func IsSupportedDialect(name string) bool {
	for _, d := range SupportedDialects {
		if d == name {
			return true
		}
	}
	return false
}
