package runner

import "iter"

// Slice yields every element of items once, in order.
func Slice[R any](items []R) iter.Seq[R] {
	return func(yield func(R) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

// Cycle yields the elements of items in order, forever. An empty slice yields nothing.
// Each pass re-ranges items, so the sequence can be iterated any number of times.
func Cycle[R any](items []R) iter.Seq[R] {
	return func(yield func(R) bool) {
		if len(items) == 0 {
			return
		}
		for {
			for _, item := range items {
				if !yield(item) {
					return
				}
			}
		}
	}
}

// Repeat yields the result of next, forever.
func Repeat[R any](next func() R) iter.Seq[R] {
	return func(yield func(R) bool) {
		for {
			if !yield(next()) {
				return
			}
		}
	}
}

// Take yields at most n elements of seq.
func Take[R any](seq iter.Seq[R], n int) iter.Seq[R] {
	return func(yield func(R) bool) {
		if n <= 0 {
			return
		}
		taken := 0
		for item := range seq {
			if !yield(item) {
				return
			}
			taken++
			if taken >= n {
				return
			}
		}
	}
}

// Concat yields every element of each sequence in turn.
func Concat[R any](seqs ...iter.Seq[R]) iter.Seq[R] {
	return func(yield func(R) bool) {
		for _, seq := range seqs {
			for item := range seq {
				if !yield(item) {
					return
				}
			}
		}
	}
}
