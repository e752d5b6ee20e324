package assert

import "fmt"

// Assert panics with msg when the condition does not hold. Used only for
// startup wiring that cannot proceed in a broken state.
func Assert(condition bool, msg string, other ...any) {
	if !condition {
		panic(fmt.Sprint(append([]any{msg}, other...)...))
	}
}

func AssertNil(value any, msg string, other ...any) {
	Assert(value == nil, msg, other...)
}
