package export

import (
	"fmt"
	"strings"
)

// BuildError is returned when the export build exits with a non-zero status.
// Tail holds the last lines of build output.
type BuildError struct {
	Command []string
	Code    int
	Tail    []string
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("build %q failed with exit status %d", strings.Join(e.Command, " "), e.Code)
	if len(e.Tail) > 0 {
		msg += ":\n" + strings.Join(e.Tail, "\n")
	}
	return msg
}
