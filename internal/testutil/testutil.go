package testutil

import (
	"testing"
	"time"
)

func Assert[T comparable](t testing.TB, expected T, value T, message string) {
	t.Helper()

	if expected != value {
		t.Fatalf("%s: expected %v got %v", message, expected, value)
	}
}

func AssertSlice[T comparable](t testing.TB, expected []T, value []T, message string) {
	t.Helper()

	if len(expected) != len(value) {
		t.Fatalf("%s: expected %v got %v", message, expected, value)
	}

	for i := range expected {
		if expected[i] != value[i] {
			t.Fatalf("%s: expected %v got %v (index %d)", message, expected, value, i)
		}
	}
}

func AssertErr(t testing.TB, expected error, value error, message string) {
	t.Helper()

	if expected == nil && value == nil {
		return
	}

	if expected == nil || value == nil || expected.Error() != value.Error() {
		t.Fatalf("%s: expected %v got %v", message, expected, value)
	}
}

func IsNil(t testing.TB, value interface{}, message string) {
	t.Helper()

	if value != nil {
		t.Fatalf("%s: expected nil got %v", message, value)
	}
}

func IsNotNil(t testing.TB, value interface{}, message string) {
	t.Helper()

	if value == nil {
		t.Fatalf("%s: expected not nil got nil", message)
	}
}

// Receive waits for a value on ch, failing the test after timeout.
func Receive[T any](t testing.TB, ch <-chan T, timeout time.Duration, message string) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("%s: timed out after %s", message, timeout)
	}

	var zero T

	return zero
}
