package user

import (
	"errors"
	"testing"
)

func TestParseIdentifier(t *testing.T) {
	cases := []struct {
		in      string
		want    Identifier
		wantErr bool
	}{
		{in: "  Ana@Example.COM ", want: Identifier{Kind: IdentifierEmail, Value: "ana@example.com"}},
		{in: "+1 (555) 010-2030", want: Identifier{Kind: IdentifierPhone, Value: "+15550102030"}},
		{in: "555 0102", want: Identifier{Kind: IdentifierPhone, Value: "5550102"}},
		{in: "12+34", want: Identifier{Kind: IdentifierPhone, Value: "1234"}},
		{in: "   ", wantErr: true},
		{in: "call me", wantErr: true},
		{in: "+", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseIdentifier(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrEmptyIdentifier) {
					t.Fatalf("expected ErrEmptyIdentifier, got %v (%v)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseIdentifier(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}
