package main

import "testing"

func TestReadUIMode(t *testing.T) {
	cases := []struct {
		input string
		want  uiMode
	}{
		{"", uiModeAuto},
		{"auto", uiModeAuto},
		{"AUTO", uiModeAuto},
		{"on", uiModeOn},
		{"off", uiModeOff},
	}
	for _, tc := range cases {
		got, err := readUIMode(tc.input)
		if err != nil {
			t.Fatalf("readUIMode(%q): %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("readUIMode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
	if _, err := readUIMode("bogus"); err == nil {
		t.Fatal("expected an error for an invalid --ui value")
	}
}

func TestShouldUseTUIHonorsExplicitModes(t *testing.T) {
	if !shouldUseTUI(uiModeOn) {
		t.Fatal("uiModeOn must always enable the live view")
	}
	if shouldUseTUI(uiModeOff) {
		t.Fatal("uiModeOff must always disable the live view")
	}
}
