package classify

import "testing"

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		sender  string
		pattern string
		want    bool
	}{
		{"taro@shop.example.com", "%@shop.example.com%", true},
		{"TARO@SHOP.EXAMPLE.COM", "%@shop.example.com%", true},
		{"taro@shop.example.com", "%@other.example.com%", false},
		// _ matches exactly one character.
		{"a@x1.example", "%@x_.example%", true},
		{"a@x12.example", "%@x_.example%", false},
		// Literal dots do not act as wildcards.
		{"a@shopXexample.com", "%@shop.example.com%", false},
		// Unanchored: the pattern may match anywhere.
		{"prefix taro@shop.example.com suffix", "%@shop.example.com%", true},
	}

	for _, tt := range tests {
		if got := MatchPattern(tt.sender, tt.pattern); got != tt.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v",
				tt.sender, tt.pattern, got, tt.want)
		}
	}
}

func TestDomainPattern(t *testing.T) {
	if got := DomainPattern("shop.example.com"); got != "%@shop.example.com%" {
		t.Fatalf("DomainPattern = %q", got)
	}
}
