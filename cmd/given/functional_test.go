package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/funvibe/given/internal/config"
)

var (
	siteHeader = regexp.MustCompile(`(?m)^\S+:\d+-\d+ `)
	diagPrefix = regexp.MustCompile(`(?m)^\S+:\d+-\d+: `)
)

// TestFunctional runs the program descriptions under testdata through
// `graph` and `check` and compares the output with the .want files next
// to them. Spans are dropped, since they depend on the file layout.
func TestFunctional(t *testing.T) {
	var testFiles []string
	err := filepath.Walk("testdata", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !config.HasProgramExt(path) {
			return nil
		}
		if _, err := os.Stat(config.TrimProgramExt(path) + ".want"); err == nil {
			testFiles = append(testFiles, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk testdata: %v", err)
	}
	if len(testFiles) == 0 {
		t.Skip("No test files with .want found")
	}

	for _, testFile := range testFiles {
		testName := filepath.Base(config.TrimProgramExt(testFile))
		t.Run(testName, func(t *testing.T) {
			wantBytes, err := os.ReadFile(config.TrimProgramExt(testFile) + ".want")
			if err != nil {
				t.Fatalf("Failed to read .want file: %v", err)
			}
			want := strings.TrimSpace(string(wantBytes))

			_, graph, stderr := runArgs("--color", "never", "graph", testFile)
			if stderr != "" {
				t.Fatalf("graph failed: %s", stderr)
			}
			_, check, _ := runArgs("--color", "never", "check", "--no-store", testFile)

			got := siteHeader.ReplaceAllString(graph, "")
			if check = diagPrefix.ReplaceAllString(strings.TrimSpace(check), ""); check != "" {
				got = strings.TrimSpace(got) + "\n" + check
			}
			got = strings.TrimSpace(got)
			if got != want {
				t.Errorf("Output mismatch:\n--- want ---\n%s\n--- got ---\n%s", want, got)
			}
		})
	}
}
