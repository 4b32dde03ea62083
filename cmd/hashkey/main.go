// Command hashkey prints the bcrypt hash of a relay publisher key, for
// RELAY_PUBLISH_KEY_HASH. The key is read from -key or, if empty, from stdin.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "hashkey: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("hashkey", flag.ContinueOnError)
	key := fs.String("key", "", "publisher key to hash")
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := *key
	if secret == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading key: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}
	if secret == "" {
		return errors.New("empty key")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), *cost)
	if err != nil {
		return fmt.Errorf("hashing key: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(hash))
	return err
}
