package main

import (
	"errors"
	"fmt"
	"os"

	"collab-go/internal/app"

	"golang.org/x/term"
)

// readPassphrase prompts on stderr and reads a line from the terminal
// without echo.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// promptNewPassphrase asks for a passphrase twice and returns it when both
// entries match.
func promptNewPassphrase() (string, error) {
	first, err := readPassphrase("New archive passphrase: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("passphrase must not be empty")
	}
	second, err := readPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

// archivePassphrase returns the passphrase that unlocks archived snapshots:
// COLLAB_ARCHIVE_PASSPHRASE when set, otherwise a terminal prompt. Without a
// terminal the server starts locked and an empty passphrase is returned.
func archivePassphrase() (string, error) {
	if p := os.Getenv(app.EnvArchivePassphrase); p != "" {
		return p, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}
	return readPassphrase("Archive passphrase: ")
}
