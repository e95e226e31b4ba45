package codegen

import (
	"strings"
	"unicode"
)

// commonInitialisms are kept upper case in generated identifiers
var commonInitialisms = map[string]bool{
	"id": true, "url": true, "uri": true, "uuid": true, "ip": true, "api": true,
	"http": true, "json": true, "sql": true, "html": true, "xml": true,
}

// toPascalCase converts snake_case and kebab-case names to PascalCase
func toPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	for i, part := range parts {
		lower := strings.ToLower(part)
		if commonInitialisms[lower] {
			parts[i] = strings.ToUpper(lower)
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}

	name := strings.Join(parts, "")
	if name == "" {
		return "X"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "X" + name
	}
	return name
}

// toSingular undoes simple English plurals of table names
func toSingular(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(lower, "sses"), strings.HasSuffix(lower, "xes"), strings.HasSuffix(lower, "zes"):
		return s[:len(s)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"):
		return s
	case strings.HasSuffix(lower, "s") && len(s) > 1:
		return s[:len(s)-1]
	}
	return s
}

// typeName derives the entity type name for a table
func typeName(table string) string {
	return toPascalCase(toSingular(table))
}

// fileName derives the generated file name for a table
func fileName(table string) string {
	return strings.ToLower(strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(table)) + ".go"
}
