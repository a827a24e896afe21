package main

import "testing"

func TestParseFlagsDefaults(t *testing.T) {
	f := parseFlags(nil)

	if f.limit != 0 || f.all || f.source != "" || f.sequential || f.workers != 0 {
		t.Fatalf("expected zero-value defaults, got %+v", f)
	}
}

func TestParseFlagsLongForm(t *testing.T) {
	f := parseFlags([]string{
		"--limit", "10",
		"--source", "findagrave",
		"--min-score", "75.5",
		"--sequential",
		"--workers", "4",
		"--verbose",
	})

	if f.limit != 10 {
		t.Errorf("limit = %d, want 10", f.limit)
	}

	if f.source != "findagrave" {
		t.Errorf("source = %q, want findagrave", f.source)
	}

	if f.minScore != 75.5 {
		t.Errorf("minScore = %v, want 75.5", f.minScore)
	}

	if !f.sequential {
		t.Error("sequential = false, want true")
	}

	if f.workers != 4 {
		t.Errorf("workers = %d, want 4", f.workers)
	}

	if !f.verbose {
		t.Error("verbose = false, want true")
	}
}

func TestParseFlagsShorthandVerbose(t *testing.T) {
	f := parseFlags([]string{"-v"})

	if !f.verbose {
		t.Error("expected -v to set verbose")
	}
}

func TestParseFlagsActionFlags(t *testing.T) {
	f := parseFlags([]string{"--review", "--all", "--http-addr", "127.0.0.1:9090"})

	if !f.review {
		t.Error("expected review flag set")
	}

	if !f.all {
		t.Error("expected all flag set")
	}

	if f.httpAddr != "127.0.0.1:9090" {
		t.Errorf("httpAddr = %q, want 127.0.0.1:9090", f.httpAddr)
	}
}
