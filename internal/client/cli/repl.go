package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	RotateKey(ctx context.Context) error
	Keygen(ctx context.Context, args []string) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit". Command errors are printed and the loop continues.
//
//	Not logged in:  register, login, keygen <path> [bits], help, exit
//	Logged in:      whoami, refresh, logout, rotate-key, keygen <path> [bits], help, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("ak> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, refresh, logout, rotate-key, keygen <path> [bits], exit")
			} else {
				printlnFn("Available commands: register, login, keygen <path> [bits], exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "refresh":
			err = a.Refresh(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "whoami", "me":
			err = a.WhoAmI(ctx)

		case "rotate-key":
			err = a.RotateKey(ctx)

		case "keygen":
			err = a.Keygen(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
