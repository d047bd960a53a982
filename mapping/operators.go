package mapping

// OperatorMap is the runtime mapping the SQL builder uses to render each
// of §3's eight filter operators for a given dialect. Both supported
// dialects render the operator set identically; the table exists so a
// future dialect can diverge (as MySQL's ILIKE-as-LIKE substitution would,
// were ILIKE in scope) without touching the builder.
var OperatorMap = map[string]map[string]string{
	"postgres": {
		"=": "=", "!=": "!=", "<": "<", ">": ">", "<=": "<=", ">=": ">=",
		"IN": "IN", "LIKE": "LIKE",
	},
	"mysql": {
		"=": "=", "!=": "!=", "<": "<", ">": ">", "<=": "<=", ">=": ">=",
		"IN": "IN", "LIKE": "LIKE",
	},
}

// Operator looks up how dialect spells op, returning ("", false) for an
// unknown dialect or operator.
func Operator(dialect, op string) (string, bool) {
	byOp, ok := OperatorMap[dialect]
	if !ok {
		return "", false
	}
	spelling, ok := byOp[op]
	return spelling, ok
}
