// Package stream provides a small pull-based iterator used by every stage of
// the output pipeline. A consumer calls Next until it returns false and then
// checks Err. Producers only do work when pulled, so a slow consumer (the UI's
// stdin pipe) throttles the whole chain.
package stream

import (
	"bufio"
	"errors"
	"io"
)

// Stream yields values of type T one at a time.
type Stream[T any] interface {
	// Next advances to the next value. It returns false when the stream is
	// exhausted or failed.
	Next() bool
	// Value returns the current value. Only valid after Next returned true.
	Value() T
	// Err returns the first error encountered, if any.
	Err() error
}

// Func adapts a pull function to a Stream. The function returns the next
// value, whether one was produced, and an error.
type Func[T any] func() (T, bool, error)

type funcStream[T any] struct {
	pull Func[T]
	cur  T
	err  error
	done bool
}

// FromFunc returns a Stream backed by pull.
func FromFunc[T any](pull Func[T]) Stream[T] {
	return &funcStream[T]{pull: pull}
}

func (s *funcStream[T]) Next() bool {
	if s.done {
		return false
	}
	v, ok, err := s.pull()
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if !ok {
		s.done = true
		return false
	}
	s.cur = v
	return true
}

func (s *funcStream[T]) Value() T   { return s.cur }
func (s *funcStream[T]) Err() error { return s.err }

// FromSlice returns a Stream over the given values.
func FromSlice[T any](values []T) Stream[T] {
	i := 0
	return FromFunc(func() (T, bool, error) {
		var zero T
		if i >= len(values) {
			return zero, false, nil
		}
		v := values[i]
		i++
		return v, true, nil
	})
}

// Collect drains s into a slice.
func Collect[T any](s Stream[T]) ([]T, error) {
	var out []T
	for s.Next() {
		out = append(out, s.Value())
	}
	return out, s.Err()
}

// Map applies fn to every value of s.
func Map[T, U any](s Stream[T], fn func(T) U) Stream[U] {
	return FromFunc(func() (U, bool, error) {
		var zero U
		if !s.Next() {
			return zero, false, s.Err()
		}
		return fn(s.Value()), true, nil
	})
}

// Tee calls fn with every value before passing it on. An error from fn stops
// the stream.
func Tee[T any](s Stream[T], fn func(T) error) Stream[T] {
	return FromFunc(func() (T, bool, error) {
		var zero T
		if !s.Next() {
			return zero, false, s.Err()
		}
		v := s.Value()
		if err := fn(v); err != nil {
			return zero, false, err
		}
		return v, true, nil
	})
}

// Lines reads r line by line. Each value keeps its trailing "\n"; the last
// line has none if the input did not end with one.
func Lines(r io.Reader) Stream[string] {
	br := bufio.NewReader(r)
	return FromFunc(func() (string, bool, error) {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return line, line != "", nil
			}
			return "", false, err
		}
		return line, true, nil
	})
}
