package pitch

var debugf func(format string, args ...interface{})

// SetDebugLog routes dispatch traces to fn. Pass nil to silence them.
func SetDebugLog(fn func(format string, args ...interface{})) {
	debugf = fn
}

func debugLog(format string, args ...interface{}) {
	if debugf != nil {
		debugf(format, args...)
	}
}
