package funcs_test

import (
	"errors"
	"testing"

	"github.com/jrife/roost/funcs"
)

func TestTable(t *testing.T) {
	table := funcs.NewTable()
	table.RegisterPredicate("even", func(value interface{}) bool { return value.(int)%2 == 0 })
	table.RegisterKeyFunc("self", func(value interface{}) interface{} { return value })

	even, err := table.Predicate("even")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if !even(2) || even(3) {
		t.Fatalf("expected even to select even integers")
	}

	self, err := table.KeyFunc("self")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if self("k") != "k" {
		t.Fatalf("expected self to return its argument")
	}

	if _, err := table.Predicate("odd"); !errors.Is(err, funcs.ErrUnknownFunc) {
		t.Fatalf("expected ErrUnknownFunc, got %#v", err)
	}

	if _, err := table.KeyFunc("even"); !errors.Is(err, funcs.ErrUnknownFunc) {
		t.Fatalf("expected ErrUnknownFunc, got %#v", err)
	}
}
