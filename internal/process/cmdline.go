package process

import (
	"strconv"
	"strings"
)

// cmdMeta are the characters cmd.exe interprets outside double quotes.
const cmdMeta = " \t&|<>^()%!\","

// cmdQuote joins argv into a single cmd.exe command line. Arguments holding
// whitespace or shell metacharacters are double-quoted using the
// CommandLineToArgvW escaping rules, so a path such as
// C:\Program Files\nodejs\npm.cmd survives as one argument.
func cmdQuote(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if !strings.ContainsAny(arg, cmdMeta) {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			// Backslashes before a quote are literal only when doubled.
			b.WriteString(strings.Repeat(`\`, slashes+1))
			slashes = 0
		default:
			slashes = 0
		}
		b.WriteByte(c)
	}
	// Trailing backslashes would otherwise escape the closing quote.
	b.WriteString(strings.Repeat(`\`, slashes))
	b.WriteByte('"')
	return b.String()
}

// shellCmdLine is the full cmd.exe invocation for argv. /S makes cmd strip
// exactly the outer pair of quotes and run the rest verbatim.
func shellCmdLine(argv []string) string {
	return `cmd /S /C "` + cmdQuote(argv) + `"`
}

// killTreeArgs is the taskkill invocation that force-kills pid and every
// process it spawned.
func killTreeArgs(pid int) []string {
	return []string{"taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)}
}
