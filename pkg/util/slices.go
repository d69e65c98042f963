package util

// Map returns f applied to every element of in, preserving order.
func Map[A any, B any](in []A, f func(A) B) []B {
	out := make([]B, len(in))
	for i, a := range in {
		out[i] = f(a)
	}
	return out
}
