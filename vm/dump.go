package vm

import (
	"strings"
)

// Dump returns the debug representation DUMP writes: Number(5), String(hi),
// Boolean(true), Null(), Identifier(x), and Function(+, [Number(1), Number(2)])
// for unevaluated operations.
func Dump(v Value) string {
	var b strings.Builder
	writeDump(&b, v)
	return b.String()
}

func writeDump(b *strings.Builder, v Value) {
	switch v := v.(type) {
	case Integer:
		b.WriteString("Number(")
		b.WriteString(v.String())
		b.WriteByte(')')
	case Text:
		b.WriteString("String(")
		b.WriteString(string(v))
		b.WriteByte(')')
	case Boolean:
		b.WriteString("Boolean(")
		b.WriteString(v.String())
		b.WriteByte(')')
	case Null:
		b.WriteString("Null()")
	case Identifier:
		b.WriteString("Identifier(")
		b.WriteString(string(v))
		b.WriteByte(')')
	case *Operation:
		b.WriteString("Function(")
		b.WriteByte(v.Fn.Name)
		b.WriteString(", [")
		for i, arg := range v.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeDump(b, arg)
		}
		b.WriteString("])")
	default:
		b.WriteString("Unknown()")
	}
}
