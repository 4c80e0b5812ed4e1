package db

import (
	"strings"
	"testing"
)

func TestPrefixCols(t *testing.T) {
	got := prefixCols("o", "id, title,\n\tdeadline")
	want := "o.id, o.title, o.deadline"
	if got != want {
		t.Errorf("prefixCols = %q, want %q", got, want)
	}
}

func TestSelectColsPrefixed(t *testing.T) {
	got := prefixCols("o", selectCols)
	if strings.Contains(got, "o.o.") {
		t.Errorf("double prefix in %q", got)
	}
	if !strings.HasPrefix(got, "o.id") {
		t.Errorf("first column = %q", got)
	}
	if len(strings.Split(got, ",")) != len(strings.Split(selectCols, ",")) {
		t.Error("column count changed by prefixing")
	}
}
