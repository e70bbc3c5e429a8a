package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCmdQuote(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"plain", []string{"npm", "run", "dev"}, `npm run dev`},
		{"spaced path", []string{`C:\Program Files\nodejs\npm.cmd`, "install"}, `"C:\Program Files\nodejs\npm.cmd" install`},
		{"metacharacters", []string{"echo", "a&b", "x|y"}, `echo "a&b" "x|y"`},
		{"empty", []string{"node", ""}, `node ""`},
		{"embedded quote", []string{"echo", `say "hi"`}, `echo "say \"hi\""`},
		{"trailing backslash", []string{`C:\My Dir\`}, `"C:\My Dir\\"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cmdQuote(tt.argv))
		})
	}
}

func TestShellCmdLine(t *testing.T) {
	got := shellCmdLine([]string{`C:\Program Files\nodejs\npm.cmd`, "run", "dev"})
	assert.Equal(t, `cmd /S /C ""C:\Program Files\nodejs\npm.cmd" run dev"`, got)
}

func TestKillTreeArgs(t *testing.T) {
	assert.Equal(t, []string{"taskkill", "/T", "/F", "/PID", "4242"}, killTreeArgs(4242))
}
