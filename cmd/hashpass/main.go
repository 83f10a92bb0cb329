// Command hashpass prints a hash for RANCHO_ADMIN_PASSWORD_HASH.
//
//	go run ./cmd/hashpass -format argon2id
//
// The password is read from the terminal without echo, or from stdin when piped.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"rancho/internal/domain/credential"
)

func main() {
	format := flag.String("format", credential.FormatBcrypt, "hash format: bcrypt or argon2id")
	flag.Parse()

	password, err := readPassword(os.Stdin, os.Stderr)
	if err != nil {
		log.Fatalf("read password: %v", err)
	}
	hash, err := credential.HashPassword(password, *format)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	fmt.Println(hash)
}

// readPassword prompts twice on a terminal, or reads one line from a pipe.
func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(prompt, "Senha: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	fmt.Fprint(prompt, "Repita: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
