package upstream

import "strings"

// operationName returns the name of the first operation in a GraphQL document,
// used as a low-cardinality metrics label.
func operationName(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '(' || r == '{'
	})
	for i, f := range fields {
		if (f == "query" || f == "mutation") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "anonymous"
}
