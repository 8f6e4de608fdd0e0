package api

import "fmt"

// ICE ("internal compiler error") represents a condition the backend
// considers impossible: an illegal Value Representation type pair, a
// non-LIFO scratch pop, a stack-discipline violation in the Function
// Context, and so on (spec.md §4.1, §4.2, §7). ICEs are not recoverable
// and are always raised via panic(ICE{...}), never returned as an error.
type ICE struct {
	Op      string
	Message string
}

func (e ICE) Error() string {
	return fmt.Sprintf("ICE in %s: %s", e.Op, e.Message)
}

// Raise panics with an ICE built from op and the formatted message. Call
// sites name the operation that discovered the impossible condition, e.g.
// "valuerep.Widen" or "funcctx.popLocal".
func Raise(op, format string, args ...any) {
	panic(ICE{Op: op, Message: fmt.Sprintf(format, args...)})
}
