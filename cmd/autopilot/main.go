package main

import (
	"os"
	"path/filepath"
	"strings"

	"autopilot/internal/cli"
)

var subcommands = map[string]bool{
	"init":       true,
	"show":       true,
	"state":      true,
	"repl":       true,
	"help":       true,
	"completion": true,
}

func isScriptPath(s string) bool {
	if subcommands[s] {
		return false
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// rewriteScriptArgs turns `autopilot <script>` into `autopilot repl <script>`.
// Cobra treats the first positional token as a subcommand, so argv is
// rewritten before parsing. Persistent flags may come first.
func rewriteScriptArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}
	valueFlags := map[string]bool{
		"--format":    true,
		"--state-dir": true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isScriptPath(argv[i+1]) {
				return insertAt(argv, i+1, "repl")
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if isScriptPath(a) {
			return insertAt(argv, i, "repl")
		}
		return argv
	}
	return argv
}

func insertAt(argv []string, i int, words ...string) []string {
	out := make([]string, 0, len(argv)+len(words))
	out = append(out, argv[:i]...)
	out = append(out, words...)
	return append(out, argv[i:]...)
}

func main() {
	os.Args = rewriteScriptArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
