// Command i18n-check verifies a strings file against the keys the feed
// looks up: every key present, no unknown keys, count placeholders intact.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gardencircle/internal/config"
)

// Finding is one problem in a strings file.
type Finding struct {
	Key      string
	Severity string // "error" or "warning"
	Message  string
}

// Report holds the result for one file.
type Report struct {
	File     string
	Checked  int
	Findings []Finding
}

// Failed reports whether any finding is an error.
func (r Report) Failed() bool {
	for _, f := range r.Findings {
		if f.Severity == "error" {
			return true
		}
	}
	return false
}

// Check compares strings with the known keys.
func Check(file string, strs map[string]string) Report {
	all, counted := config.Keys()
	r := Report{File: file, Checked: len(all)}

	known := make(map[string]bool, len(all))
	for _, k := range all {
		known[k] = true
		if _, ok := strs[k]; !ok && k != config.KeyEmptyMarkup {
			r.Findings = append(r.Findings, Finding{Key: k, Severity: "warning", Message: "missing, built-in string will be used"})
		}
	}
	for _, k := range counted {
		if v, ok := strs[k]; ok && strings.Count(v, "%d") != 1 {
			r.Findings = append(r.Findings, Finding{Key: k, Severity: "error", Message: fmt.Sprintf("needs exactly one %%d placeholder, got %q", v)})
		}
	}
	var unknown []string
	for k := range strs {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		r.Findings = append(r.Findings, Finding{Key: k, Severity: "warning", Message: "not used by the feed"})
	}
	return r
}

func printReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "%s: %d keys checked, %d findings\n", r.File, r.Checked, len(r.Findings))
	for _, f := range r.Findings {
		fmt.Fprintf(w, "  [%s] %s: %s\n", f.Severity, f.Key, f.Message)
	}
}

func main() {
	strict := flag.Bool("strict", false, "treat warnings as errors")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		files = []string{config.I18nPath()}
	}

	failed := false
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
			failed = true
			continue
		}
		var strs map[string]string
		if err := json.Unmarshal(data, &strs); err != nil {
			fmt.Fprintf(os.Stderr, "%s: invalid JSON: %v\n", file, err)
			failed = true
			continue
		}
		r := Check(file, strs)
		printReport(os.Stdout, r)
		if r.Failed() || (*strict && len(r.Findings) > 0) {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
