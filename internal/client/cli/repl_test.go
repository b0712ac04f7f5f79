package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  []string
	err   error
}

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeExec) isLoggedIn() bool                   { return f.loggedIn }
func (f *fakeExec) Register(ctx context.Context) error { return f.record("register") }
func (f *fakeExec) Login(ctx context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Refresh(ctx context.Context) error { return f.record("refresh") }
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}
func (f *fakeExec) WhoAmI(ctx context.Context) error    { return f.record("whoami") }
func (f *fakeExec) RotateKey(ctx context.Context) error { return f.record("rotate-key") }
func (f *fakeExec) Keygen(ctx context.Context, args []string) error {
	f.args = args
	return f.record("keygen")
}

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	out := captureOutput(t)

	input := strings.NewReader(strings.Join([]string{
		"",
		"register",
		"login",
		"help",
		"whoami",
		"me",
		"refresh",
		"rotate-key",
		"keygen /tmp/k.pem 3072",
		"logout",
		"bogus",
		"exit",
		"whoami",
	}, "\n"))

	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "" }, bufio.NewScanner(input))

	assert.Equal(t, []string{"register", "login", "whoami", "whoami", "refresh", "rotate-key", "keygen", "logout"}, f.calls)
	assert.Equal(t, []string{"/tmp/k.pem", "3072"}, f.args)
	assert.Contains(t, *out, "Unknown command: bogus")
	assert.Contains(t, *out, "Bye!")
	assert.Contains(t, strings.Join(*out, "\n"), "rotate-key")
}

func TestRunREPL_HelpWhenLoggedOut(t *testing.T) {
	out := captureOutput(t)

	f := &fakeExec{}
	runREPL(context.Background(), f, func() string { return "" }, bufio.NewScanner(strings.NewReader("help\n")))

	assert.Contains(t, *out, "Available commands: register, login, keygen <path> [bits], exit")
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := captureOutput(t)

	f := &fakeExec{err: errors.New("unauthorized: refresh token reuse detected")}
	runREPL(context.Background(), f, func() string { return "(alice online)" },
		bufio.NewScanner(strings.NewReader("refresh\nwhoami\n")))

	assert.Equal(t, []string{"refresh", "whoami"}, f.calls)
	assert.Contains(t, *out, "Error: unauthorized: refresh token reuse detected")
	assert.Contains(t, *out, "ak> (alice online) > ")
}
