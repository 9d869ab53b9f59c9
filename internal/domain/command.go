package domain

import "strings"

// Command is a fully built invocation of an external tool
type Command struct {
	Tool   string   // label used in logs and errors, e.g. "yt-dlp"
	Binary string   // path or name of the executable
	Args   []string // arguments, never shell-interpreted
}

// String renders the command as a copy-pasteable shell line.
// Only used for logging; execution never goes through a shell.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, QuoteArg(c.Binary))
	for _, a := range c.Args {
		parts = append(parts, QuoteArg(a))
	}
	return strings.Join(parts, " ")
}

const shellSpecial = " \t\n\r'\"$`\\!*?[](){}|;<>&~#%"

// QuoteArg single-quotes s when a POSIX shell would otherwise interpret it
func QuoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecial) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
