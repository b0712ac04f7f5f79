package cli

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/keys"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var generateKey = func(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

// Register prompts for a username, email and password and creates the
// account. The password is asked twice.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	confirm, err := getPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	u, err := a.authService.Register(ctx, username, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (%s), role %s\n", u.Username, u.ID, u.Role)
	return nil
}

// Login prompts for a username or email and a password. The token pair is
// saved so the next run can resume.
func (a *App) Login(ctx context.Context) error {
	login, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}

	s, err := a.authService.Login(ctx, login, password)
	if err != nil {
		return err
	}
	a.setMode(ModeOnline)
	fmt.Fprintf(a.out, "Logged in, access token valid until %s\n", s.AccessExpiresAt.Format(time.RFC3339))
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	s, err := a.authService.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Tokens refreshed, access token valid until %s\n", s.AccessExpiresAt.Format(time.RFC3339))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	u, err := a.authService.WhoAmI(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s role=%s\n", u.Username, u.Email, u.ID, u.Role)
	return nil
}

func (a *App) RotateKey(ctx context.Context) error {
	kid, err := a.authService.RotateSigningKey(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signing key rotated, new kid %s\n", kid)
	return nil
}

// Keygen writes a fresh RSA signing key to args[0] in PKCS#8 PEM. An optional
// second argument sets the key size.
func (a *App) Keygen(_ context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: keygen <path> [bits]")
	}
	bits := keys.DefaultKeyBits
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < keys.DefaultKeyBits {
			return fmt.Errorf("bits must be a number of at least %d", keys.DefaultKeyBits)
		}
		bits = n
	}

	key, err := generateKey(bits)
	if err != nil {
		return err
	}
	if err := keys.WriteFile(args[0], key); err != nil {
		return err
	}
	kid, err := keys.Thumbprint(&key.PublicKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %d-bit key to %s, kid %s\n", bits, args[0], kid)
	return nil
}
