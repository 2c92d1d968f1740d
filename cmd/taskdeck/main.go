package main

import (
	"os"
	"strings"

	"taskdeck/internal/cli"
	"taskdeck/internal/query"
)

// knownCommands are the root subcommands plus cobra's built-ins. Anything
// else in the first positional slot is treated as the start of a query.
var knownCommands = map[string]bool{
	"open": true, "list": true, "board": true,
	"add": true, "done": true, "rm": true, "delete": true,
	"start": true, "stop": true,
	"views": true, "docs": true,
	"help": true, "completion": true,
}

func looksLikeQuery(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || knownCommands[s] {
		return false
	}
	if _, ok := query.NormalizeDomain(s); ok {
		return true
	}
	if strings.HasPrefix(s, "@") || strings.HasPrefix(s, "#") {
		return true
	}
	// p1, p<2, due:today, text~paint, ...
	for _, op := range []string{":", "=", "~", "<", ">"} {
		if strings.Contains(s, op) {
			return true
		}
	}
	if len(s) == 2 && (s[0] == 'p' || s[0] == 'P') && s[1] >= '0' && s[1] <= '9' {
		return true
	}
	switch strings.ToLower(s) {
	case "overdue", "today", "tomorrow":
		return true
	}
	return false
}

// rewriteQueryArgs lets `taskdeck @house p1` open the console directly.
//
// Cobra treats the first non-flag token as a subcommand, so we rewrite argv
// before parsing. Users often pass persistent flags first (e.g.
// `taskdeck --dir ... @house`), so we find the first positional token, not
// just argv[1].
func rewriteQueryArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":    true,
		"--format": true,
		"--theme":  true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") {
				continue
			}
			if valueFlags[a] {
				i++ // skip the flag's value
			}
			continue
		}

		// First positional token.
		if looksLikeQuery(a) {
			out := make([]string, 0, len(argv)+1)
			out = append(out, argv[:i]...)
			out = append(out, "open")
			out = append(out, argv[i:]...)
			return out
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteQueryArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
