package main

import (
	"testing"

	"github.com/phil-mansfield/gomoc/status"
)

func TestGetModeName(t *testing.T) {
	run, example := "run.config", ""
	name, err := getModeName(map[string]*string{
		"Run": &run, "ExampleConfig": &example,
	})
	if err != nil || name != "Run" {
		t.Errorf("Expected mode Run, got '%s', %v.", name, err)
	}

	example = "Run"
	if _, err := getModeName(map[string]*string{
		"Run": &run, "ExampleConfig": &example,
	}); err == nil {
		t.Errorf("Expected an error with two modes set.")
	}

	run, example = "", ""
	if _, err := getModeName(map[string]*string{
		"Run": &run, "ExampleConfig": &example,
	}); err == nil {
		t.Errorf("Expected an error with no modes set.")
	}
}

func TestExitCode(t *testing.T) {
	table := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{status.Errorf(status.ConvergenceFailure, "slow"), 2},
		{status.Errorf(status.Aborted, "stop"), 130},
		{status.Errorf(status.NumericFailure, "nan"), 1},
	}
	for i, line := range table {
		if code := exitCode(line.err); code != line.code {
			t.Errorf("%d) Expected exit code %d, got %d.", i, line.code, code)
		}
	}
}
