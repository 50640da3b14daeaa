package normalize

import (
	"testing"
)

func TestParseName(t *testing.T) {
	parser := NewNameParser()

	tests := []struct {
		name  string
		input string
		want  Person
	}{
		{
			name:  "full six slot name",
			input: "DR. JAMES ARTHUR POPE JR",
			want:  Person{Prefix: "DR", First: "JAMES", Middle: "ARTHUR", Last: "POPE", Suffix: "JR"},
		},
		{
			name:  "inverted comma form",
			input: "BROYHILL, JAMES EDGAR",
			want:  Person{First: "JAMES", Middle: "EDGAR", Last: "BROYHILL"},
		},
		{
			name:  "simple first last",
			input: "John Smith",
			want:  Person{First: "JOHN", Last: "SMITH"},
		},
		{
			name:  "single token is last name",
			input: "MADONNA",
			want:  Person{Last: "MADONNA"},
		},
		{
			name:  "nickname in quotes kept as hint",
			input: `ROBERT "BOB" JONES SR`,
			want:  Person{First: "ROBERT", Last: "JONES", Suffix: "SR", Hint: "BOB"},
		},
		{
			name:  "nickname in parentheses",
			input: "WILLIAM (BILL) H SMITH",
			want:  Person{First: "WILLIAM", Middle: "H", Last: "SMITH", Hint: "BILL"},
		},
		{
			name:  "multiple middle names joined",
			input: "MARY ANNE LOUISE CARTER",
			want:  Person{First: "MARY", Middle: "ANNE LOUISE", Last: "CARTER"},
		},
		{
			name:  "professional suffix",
			input: "SUSAN B KOCH MD",
			want:  Person{First: "SUSAN", Middle: "B", Last: "KOCH", Suffix: "MD"},
		},
		{
			name:  "comma form with suffix",
			input: "POPE JR, JAMES",
			want:  Person{First: "JAMES", Last: "POPE", Suffix: "JR"},
		},
		{
			name:  "hyphenated surname stays one token",
			input: "MRS. MARY ANN SMITH-JONES",
			want:  Person{Prefix: "MRS", First: "MARY", Middle: "ANN", Last: "SMITH-JONES"},
		},
		{
			name:  "apostrophe surname stays one token",
			input: "SHAUN O'BRIEN",
			want:  Person{First: "SHAUN", Last: "O'BRIEN"},
		},
		{
			name:  "inverted hyphenated surname",
			input: "SMITH-JONES, MARY ANN",
			want:  Person{First: "MARY", Middle: "ANN", Last: "SMITH-JONES"},
		},
		{
			name:  "empty input",
			input: "   ",
			want:  Person{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(tt.input)
			if got.Prefix != tt.want.Prefix {
				t.Errorf("Prefix = %q, want %q", got.Prefix, tt.want.Prefix)
			}
			if got.First != tt.want.First {
				t.Errorf("First = %q, want %q", got.First, tt.want.First)
			}
			if got.Middle != tt.want.Middle {
				t.Errorf("Middle = %q, want %q", got.Middle, tt.want.Middle)
			}
			if got.Last != tt.want.Last {
				t.Errorf("Last = %q, want %q", got.Last, tt.want.Last)
			}
			if got.Suffix != tt.want.Suffix {
				t.Errorf("Suffix = %q, want %q", got.Suffix, tt.want.Suffix)
			}
			if got.Hint != tt.want.Hint {
				t.Errorf("Hint = %q, want %q", got.Hint, tt.want.Hint)
			}
		})
	}
}

func TestParseNameDeterministic(t *testing.T) {
	parser := NewNameParser()
	first := parser.Parse("DR. JAMES ARTHUR POPE JR")
	for i := 0; i < 10; i++ {
		again := parser.Parse("DR. JAMES ARTHUR POPE JR")
		if again != first {
			t.Fatalf("parse not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestComparisonForm(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Dr. James A. Pope, Jr.", "DR JAMES A POPE JR"},
		{"  smith,   john ", "SMITH JOHN"},
		{"O'BRIEN", "O BRIEN"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ComparisonForm(tt.input); got != tt.want {
			t.Errorf("ComparisonForm(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPersonDisplay(t *testing.T) {
	parser := NewNameParser()
	p := parser.Parse("BROYHILL, JAMES EDGAR")
	if got := p.Display(); got != "James Edgar Broyhill" {
		t.Errorf("Display() = %q, want %q", got, "James Edgar Broyhill")
	}
}
