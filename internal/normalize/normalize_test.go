package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain integer", "45", "45", true},
		{"currency suffix", "45.900 TND", "45.900", true},
		{"currency prefix", "$19.99", "19.99", true},
		{"comma decimal", "45,90", "45.90", true},
		{"comma and period", "1,234.56", "1234.56", true},
		{"space thousands", "1 234", "1234", true},
		{"space around decimal", " 12.50 ", "12.50", true},
		{"empty", "", "", false},
		{"words only", "Contact us", "", false},
		{"whitespace only", "   ", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParsePrice(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParsePrice(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && !decimal.RequireFromString(tt.want).Equal(got) {
				t.Fatalf("ParsePrice(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePriceExactness(t *testing.T) {
	t.Parallel()

	got, ok := ParsePrice("45.900 TND")
	if !ok {
		t.Fatal("expected parseable price")
	}
	// The scale is preserved even though String() trims trailing zeros.
	if got.Exponent() != -3 {
		t.Fatalf("exponent = %d, want -3", got.Exponent())
	}
	if got.StringFixed(3) != "45.900" {
		t.Fatalf("got %s, want 45.900", got.StringFixed(3))
	}
}

func TestInStock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		found bool
		want  bool
	}{
		{"element missing", "", false, false},
		{"element present no text", "", true, true},
		{"in stock text", "In stock, ships today", true, true},
		{"disponible", "Disponible", true, true},
		{"out of stock english", "Out of stock", true, false},
		{"out of stock case", "OUT OF STOCK", true, false},
		{"rupture", "Rupture de stock", true, false},
		{"indisponible", "Produit indisponible", true, false},
		{"epuise", "Épuisé", true, false},
		{"unavailable", "Currently unavailable", true, false},
		{"whitespace text", "   ", true, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InStock(tt.text, tt.found); got != tt.want {
				t.Fatalf("InStock(%q, %v) = %v, want %v", tt.text, tt.found, got, tt.want)
			}
		})
	}
}
