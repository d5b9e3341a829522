package validate

import (
	"errors"
	"strings"
	"testing"
)

func newValidator(t *testing.T, patterns ...string) *RuleValidator {
	t.Helper()
	v, err := NewRuleValidator(5, 1000, patterns)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestLengthBounds(t *testing.T) {
	v := newValidator(t)

	cases := []struct {
		name string
		text string
		ok   bool
	}{
		{"too short", "abcd", false},
		{"at floor", "abcde", true},
		{"at ceiling", strings.Repeat("x", 1000), true},
		{"over ceiling", strings.Repeat("x", 1001), false},
		{"whitespace only", "     ", false},
		{"padded to floor", "  abcde  ", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.text)
			if tc.ok && err != nil {
				t.Fatalf("expected admissible, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestRejectionIsValidationError(t *testing.T) {
	v := newValidator(t)

	err := v.Validate("abcd")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if !strings.Contains(verr.Reason, "5") {
		t.Fatalf("rejection should name the violated bound, got %q", verr.Reason)
	}
}

func TestRuneCountNotBytes(t *testing.T) {
	v := newValidator(t)

	// Five runes, more than five bytes.
	if err := v.Validate("ñññññ"); err != nil {
		t.Fatalf("rune count should satisfy the floor, got %v", err)
	}
}

func TestDenylist(t *testing.T) {
	v := newValidator(t, `buy .* now`, `spamword`)

	if err := v.Validate("please BUY these now"); err == nil {
		t.Fatal("denylist match should reject")
	}
	if err := v.Validate("an ordinary secret"); err != nil {
		t.Fatalf("expected admissible, got %v", err)
	}
}

func TestInvalidDenyPattern(t *testing.T) {
	if _, err := NewRuleValidator(5, 1000, []string{"("}); err == nil {
		t.Fatal("invalid pattern should fail compilation")
	}
}
