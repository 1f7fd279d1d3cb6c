package dyn_test

import (
	"errors"
	"fmt"
	"testing"

	"go.followtheprocess.codes/dyn"
	"go.followtheprocess.codes/test"
)

func TestEmpty(t *testing.T) {
	test.Equal(t, dyn.Empty().Len(), 0)
	test.Equal(t, dyn.Empty(), dyn.Empty(), test.Context("Empty must return the canonical singleton"))

	// The zero value behaves as empty too
	var zero dyn.Scope
	test.Equal(t, zero.Len(), 0)

	port := dyn.New("port", 8080)
	_, ok := port.From(zero)
	test.Equal(t, ok, false)
}

func TestExtend(t *testing.T) {
	port := dyn.New("port", 8080)
	host := dyn.Declare[string]("host")

	t.Run("no bindings returns the receiver", func(t *testing.T) {
		s := dyn.Empty().Extend(port.To(1234))
		test.Equal(t, s.Extend(), s)
	})

	t.Run("adds and overwrites", func(t *testing.T) {
		s := dyn.Empty().Extend(port.To(1234))
		s2 := s.Extend(port.To(5678), host.To("localhost"))

		got, ok := port.From(s2)
		test.True(t, ok)
		test.Equal(t, got, 5678)

		gotHost, ok := host.From(s2)
		test.True(t, ok)
		test.Equal(t, gotHost, "localhost")
	})

	t.Run("never mutates the original", func(t *testing.T) {
		s := dyn.Empty().Extend(port.To(1234))
		_ = s.Extend(port.To(9999), host.To("example.com"))

		got, ok := port.From(s)
		test.True(t, ok)
		test.Equal(t, got, 1234, test.Context("extension must not change the original scope"))

		_, ok = host.From(s)
		test.Equal(t, ok, false)
	})

	t.Run("last pair wins", func(t *testing.T) {
		s := dyn.Empty().Extend(port.To(1), port.To(2))

		got, ok := port.From(s)
		test.True(t, ok)
		test.Equal(t, got, 2)
		test.Equal(t, s.Len(), 1)
	})

	t.Run("has reports presence not truthiness", func(t *testing.T) {
		flag := dyn.Declare[bool]("flag")
		s := dyn.Empty().Extend(flag.To(false))

		test.True(t, s.Has(flag))
		test.Equal(t, s.Len(), 1)
	})
}

// TestExtendStrategies pins the small and bulk extension paths to identical
// observable behaviour, including last pair wins across the threshold.
func TestExtendStrategies(t *testing.T) {
	const n = 20 // Comfortably above the bulk cutoff

	vars := make([]dyn.Var[int], n)
	for i := range n {
		vars[i] = dyn.Declare[int](fmt.Sprintf("v%d", i))
	}

	// One bulk extension vs the same pairs applied one at a time
	bindings := make([]dyn.Binding, 0, n+1)
	sequential := dyn.Empty()
	for i, v := range vars {
		bindings = append(bindings, v.To(i))
		sequential = sequential.Extend(v.To(i))
	}

	// A duplicate of the first variable, so the bulk path must honour
	// last pair wins too
	bindings = append(bindings, vars[0].To(-1))
	sequential = sequential.Extend(vars[0].To(-1))

	bulk := dyn.Empty().Extend(bindings...)

	test.Equal(t, bulk.Len(), sequential.Len())
	for _, v := range vars {
		fromBulk, okBulk := v.From(bulk)
		fromSeq, okSeq := v.From(sequential)

		test.Equal(t, okBulk, okSeq)
		test.Equal(t, fromBulk, fromSeq, test.Context("bulk and sequential extension disagree on %s", v.Name()))
	}

	got, ok := vars[0].From(bulk)
	test.True(t, ok)
	test.Equal(t, got, -1)
}

func TestExtendPairs(t *testing.T) {
	port := dyn.New("port", 8080)
	host := dyn.Declare[string]("host")

	tests := []struct {
		err    error  // Sentinel the returned error should match, nil for success
		name   string // Name of the test case
		pairs  []any  // Flat binding list in
		length int    // Expected number of bindings on success
	}{
		{name: "empty", pairs: nil, err: nil, length: 0},
		{name: "single pair", pairs: []any{port, 1234}, err: nil, length: 1},
		{name: "two pairs", pairs: []any{port, 1234, host, "localhost"}, err: nil, length: 2},
		{name: "last pair wins", pairs: []any{port, 1, port, 2}, err: nil, length: 1},
		{name: "nil value", pairs: []any{host, nil}, err: nil, length: 1},
		{name: "odd length", pairs: []any{port, 1234, host}, err: dyn.ErrOddPairs},
		{name: "key is not a var", pairs: []any{"port", 1234}, err: dyn.ErrNotAKey},
		{name: "value of the wrong type", pairs: []any{port, "not a port"}, err: dyn.ErrBadValue},
		{name: "bad pair after good ones", pairs: []any{port, 1234, host, 42}, err: dyn.ErrBadValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dyn.ExtendPairs(dyn.Empty(), tt.pairs...)
			test.WantErr(t, err, tt.err != nil)

			if tt.err != nil {
				test.True(t, errors.Is(err, tt.err), test.Context("got %v, want %v", err, tt.err))
				return
			}

			test.Equal(t, got.Len(), tt.length)
		})
	}

	t.Run("resolution through pairs", func(t *testing.T) {
		s, err := dyn.ExtendPairs(dyn.Empty(), port, 1, port, 2)
		test.Ok(t, err)

		got, ok := port.From(s)
		test.True(t, ok)
		test.Equal(t, got, 2)
	})
}

func TestString(t *testing.T) {
	a := dyn.New("alpha", 1)
	b := dyn.Declare[string]("beta")

	tests := []struct {
		name  string    // Name of the test case
		want  string    // Expected rendering
		scope dyn.Scope // Scope under test
	}{
		{name: "empty", scope: dyn.Empty(), want: "Scope{}"},
		{name: "zero value", scope: dyn.Scope{}, want: "Scope{}"},
		{name: "one binding", scope: dyn.Empty().Extend(a.To(42)), want: "Scope{alpha=42}"},
		{
			name:  "sorted by name",
			scope: dyn.Empty().Extend(b.To("two"), a.To(1)),
			want:  "Scope{alpha=1, beta=two}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.Equal(t, tt.scope.String(), tt.want)
		})
	}
}
