package script

import (
	"fmt"
	"io"
	"strings"
)

// Inspect writes a diagnostic rendering of t to w.
//
// A call prints as many arguments as its function declares, not as many as
// were passed. Calls to unknown functions print every argument.
func Inspect(w io.Writer, t *Term) {
	switch t.Kind() {
	case KindIdentifier:
		fmt.Fprint(w, t.text)
	case KindString:
		fmt.Fprintf(w, "\"%s\"", t.text)
	case KindNumber:
		fmt.Fprintf(w, "%d", t.number)
	case KindBoolean:
		fmt.Fprintf(w, "%t", t.boolean)
	case KindCall:
		name, n := t.text, len(t.args)
		if fn := Describe(t.handler); fn != nil {
			name, n = fn.Name, fn.Arity
		}
		fmt.Fprintf(w, "%s(", name)
		for i := 0; i < n && i < len(t.args); i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			Inspect(w, t.args[i])
		}
		fmt.Fprint(w, ")")
	case KindBinding:
		fmt.Fprintf(w, "%s=", t.text)
		Inspect(w, t.value)
	default:
		fmt.Fprint(w, "Unknown")
	}
}

// InspectString returns what Inspect would write.
func InspectString(t *Term) string {
	var sb strings.Builder
	Inspect(&sb, t)
	return sb.String()
}
