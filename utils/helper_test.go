package utils

import (
	"reflect"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{"buyer@example.com", "a.b+tag@sub.example.co"}
	for _, e := range valid {
		if !IsValidEmail(e) {
			t.Errorf("IsValidEmail(%q) = false", e)
		}
	}
	invalid := []string{"", "not-an-email", "missing@tld", "@example.com"}
	for _, e := range invalid {
		if IsValidEmail(e) {
			t.Errorf("IsValidEmail(%q) = true", e)
		}
	}
}

func TestDereferencePtr(t *testing.T) {
	s := "Visa"
	if got := DereferencePtr(&s); got != "Visa" {
		t.Errorf("DereferencePtr(&s) = %q", got)
	}
	if got := DereferencePtr[string](nil); got != "" {
		t.Errorf("DereferencePtr(nil) = %q, want zero value", got)
	}
	n := 42
	if got := DereferencePtr(&n); got != 42 {
		t.Errorf("DereferencePtr(&n) = %d", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"a,b", []string{"a", "b"}},
		{" a , ,b, ", []string{"a", "b"}},
	}
	for _, c := range cases {
		if got := SplitAndTrim(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("SplitAndTrim(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
