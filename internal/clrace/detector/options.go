package detector

import "os"

// UniformWritesEnv is the environment variable that, when present (any
// value), disables the uniform-write filter.
const UniformWritesEnv = "OCLGRIND_UNIFORM_WRITES"

// Options carries the detector's single tunable. Read once at
// construction; immutable afterwards.
type Options struct {
	// AllowUniformWrites filters benign simultaneous stores of identical
	// values: a store byte equal to the current memory content is not
	// treated as a conflict. Default true.
	AllowUniformWrites bool
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{AllowUniformWrites: true}
}

// OptionsFromEnv derives options from the process environment: setting
// OCLGRIND_UNIFORM_WRITES turns the uniform-write filter off.
func OptionsFromEnv() Options {
	_, set := os.LookupEnv(UniformWritesEnv)

	return Options{AllowUniformWrites: !set}
}
