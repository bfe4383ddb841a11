package clocks

import "github.com/wippyai/wasi-adapter/wasi/preview2"

func clockOf(resources *preview2.ResourceTable, handle uint32, kind preview2.ClockKind) bool {
	r, ok := resources.Get(handle)
	if !ok {
		return false
	}
	c, ok := r.(*preview2.ClockResource)
	return ok && c.Kind() == kind
}
