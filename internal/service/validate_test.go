package service

import (
	"reflect"
	"testing"
)

func TestValidateAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"foo@bar.example", "foo@bar.example", true},
		{"  foo@bar.example  ", "foo@bar.example", true},
		{"Foo Bar <foo@bar.example>", "foo@bar.example", true},
		{"null@example", "", false}, // bare-label domain
		{"not-an-address", "", false},
		{"", "", false},
		{"a@b@c.example", "", false},
	}
	for _, tc := range cases {
		got, err := ValidateAddress("email", tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ValidateAddress(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("ValidateAddress(%q) expected error", tc.in)
			}
			if !IsValidationError(err) {
				t.Fatalf("ValidateAddress(%q) expected ValidationError, got %T", tc.in, err)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("ValidateAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateAddressListDedupsAndOrders(t *testing.T) {
	got, err := ValidateAddressList("cc", []string{"bravo@example.net", "", "Bravo@Example.net", "charlie@foobar.com"})
	if err != nil {
		t.Fatalf("ValidateAddressList returned error: %v", err)
	}
	want := []string{"bravo@example.net", "charlie@foobar.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ValidateAddressList = %v, want %v", got, want)
	}
}

func TestValidateAddressListFailsWhole(t *testing.T) {
	_, err := ValidateAddressList("cc", []string{"bravo@example.net", "bad address"})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
