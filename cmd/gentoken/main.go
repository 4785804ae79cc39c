// Command gentoken prints a new signing secret or an operator token signed with the secret.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/phantommask/internal/service/tokenmanager"
)

const SecretKeyBytesLen = 32

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gentoken: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	var (
		newSecret bool
		subject   string
		ttl       time.Duration
		secretKey = getenv("SECRET_KEY")
	)

	fs := pflag.NewFlagSet("gentoken", pflag.ContinueOnError)
	fs.BoolVar(&newSecret, "new-secret", false, "Print random secret key and exit")
	fs.StringVar(&subject, "subject", "operator", "Operator name the token is issued for")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	fs.StringVarP(&secretKey, "secret-key", "s", secretKey, "Secret key, SECRET_KEY env by default")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if newSecret {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, secret)
		return err
	}

	if secretKey == "" {
		return errors.New("secret key is required to sign token, set SECRET_KEY or --secret-key")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	m, err := tokenmanager.New(tokenmanager.Config{SecretKey: secretKey, TTL: ttl})
	if err != nil {
		return err
	}

	token, expiresAt, err := m.Issue(subject)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%s\n# expires at %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return err
}

func generateSecret() (string, error) {
	b := make([]byte, SecretKeyBytesLen)

	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("error while generating secret key: %w", err)
	}

	return hex.EncodeToString(b), nil
}
