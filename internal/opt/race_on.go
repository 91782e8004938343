//go:build race

package opt

// Race_ reports whether the binary was built with the race detector.
// Stress loops scale down their iteration counts when it is set.
const Race_ = true
