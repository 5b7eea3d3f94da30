package main

import "testing"

func TestVerifyChecksAllPass(t *testing.T) {
	for _, c := range verifyChecks {
		if err := c.run(); err != nil {
			t.Errorf("%s: %v", c.name, err)
		}
	}
}
