package utils

import (
	"reflect"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("")
	if err != nil || got != nil {
		t.Fatalf("empty input = %v, %v, want nil, nil", got, err)
	}

	got, err = ParseDate(" 2026-08-24 ")
	if err != nil {
		t.Fatalf("plain date: %v", err)
	}
	if want := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("plain date = %v, want %v", got, want)
	}

	got, err = ParseDate("2026-08-24T10:30:00Z")
	if err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if got.Hour() != 10 || got.Minute() != 30 {
		t.Fatalf("rfc3339 = %v", got)
	}

	if _, err = ParseDate("next tuesday"); err == nil {
		t.Fatal("garbage input accepted")
	}
}

func TestNormalizeLabels(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want []string
	}{
		{"json array", []interface{}{"bug", " ui ", ""}, []string{"bug", "ui"}},
		{"string slice", []string{" a", "b "}, []string{"a", "b"}},
		{"comma string", "bug, ui,,data ", []string{"bug", "ui", "data"}},
		{"number", 42, []string{}},
		{"nil", nil, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeLabels(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("NormalizeLabels(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseUint(t *testing.T) {
	if got := ParseUint("42"); got != 42 {
		t.Fatalf("ParseUint(42) = %d", got)
	}
	if got := ParseUint("abc"); got != 0 {
		t.Fatalf("ParseUint(abc) = %d, want 0", got)
	}
	if got := ParseUint("-1"); got != 0 {
		t.Fatalf("ParseUint(-1) = %d, want 0", got)
	}
}

func TestRateLimitKey(t *testing.T) {
	if got := RateLimitKey(7, "/api/v1/ai/sentiment"); got != "rl:7:/api/v1/ai/sentiment" {
		t.Fatalf("RateLimitKey = %q", got)
	}
}

func TestPointer(t *testing.T) {
	p := Pointer(5)
	if *p != 5 {
		t.Fatalf("*Pointer(5) = %d", *p)
	}
}
