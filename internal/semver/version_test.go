package semver

import "testing"

func TestParseAndString(t *testing.T) {
	v, err := Parse("1.4.0")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got, want := v.String(), "1.4.0"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}

	if _, err := Parse("1.4"); err == nil {
		t.Fatalf("Parse(\"1.4\") should fail: version must be fully qualified")
	}
}

func TestCompareOrdering(t *testing.T) {
	cases := []struct{ a, b string }{
		{"1.0.0", "1.0.1"},
		{"1.0.0", "1.1.0"},
		{"1.0.0", "2.0.0"},
		{"1.0.0-rc.1", "1.0.0"},
	}

	for _, c := range cases {
		a, b := MustParse(c.a), MustParse(c.b)
		if !a.LessThan(b) {
			t.Errorf("%s should be less than %s", c.a, c.b)
		}

		if !b.GreaterThan(a) {
			t.Errorf("%s should be greater than %s", c.b, c.a)
		}
	}
}

func TestPartialBest(t *testing.T) {
	known := []Version{
		MustParse("1.0.0"),
		MustParse("1.2.0"),
		MustParse("1.2.1"),
		MustParse("1.5.0"),
		MustParse("2.1.0"),
	}

	tests := []struct {
		req     string
		want    string
		wantErr bool
	}{
		{req: "1", want: "1.5.0"},
		{req: "1.1", wantErr: true},
		{req: "1.2", want: "1.2.1"},
		{req: "latest", want: "2.1.0"},
	}

	for _, tc := range tests {
		p, err := ParsePartial(tc.req)
		if err != nil {
			t.Fatalf("ParsePartial(%q): %v", tc.req, err)
		}

		got, ok := Best(p, known)
		if tc.wantErr {
			if ok {
				t.Errorf("Best(%q) = %s, want no match", tc.req, got)
			}

			continue
		}

		if !ok || got.String() != tc.want {
			t.Errorf("Best(%q) = %s, %v, want %s", tc.req, got, ok, tc.want)
		}
	}
}
