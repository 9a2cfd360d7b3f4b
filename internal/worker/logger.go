package worker

// debugf receives claim and lease traces. It is a no-op until a host wires it
// to a debug log.
var debugf func(format string, args ...interface{})

// SetDebugLog routes worker traces to fn. Pass nil to silence them.
func SetDebugLog(fn func(format string, args ...interface{})) {
	debugf = fn
}

func debugLog(format string, args ...interface{}) {
	if debugf != nil {
		debugf(format, args...)
	}
}
