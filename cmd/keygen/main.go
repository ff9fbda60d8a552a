// Command keygen writes a fresh signing key pair for the authkeeper server.
//
// Usage:
//
//	keygen [-alg RS256] [-private certs/jwt-private.pem] [-public certs/jwt-public.pem] [-force]
//
// Existing files are only replaced after confirmation on an interactive
// terminal, or when -force is given.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/filex"
	"github.com/dmitrijs2005/authkeeper/internal/server/keys"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

var errAborted = errors.New("aborted: key files left unchanged")

type options struct {
	algorithm   string
	privatePath string
	publicPath  string
	force       bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.algorithm, "alg", "RS256", "signing algorithm (RS256, ES256, EdDSA, ...)")
	fs.StringVar(&o.privatePath, "private", "certs/jwt-private.pem", "private key output path")
	fs.StringVar(&o.publicPath, "public", "certs/jwt-public.pem", "public key output path")
	fs.BoolVar(&o.force, "force", false, "overwrite existing files without asking")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

// confirm asks whether existing key files may be replaced.
func confirm(in *bufio.Reader, out io.Writer, existing []string) (bool, error) {
	color.New(color.FgYellow).Fprintf(out, "Key files already exist: %s\n", strings.Join(existing, ", "))
	fmt.Fprint(out, "Overwrite? [y/N] ")

	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	var existing []string
	for _, p := range []string{o.privatePath, o.publicPath} {
		ok, err := filex.Exists(p)
		if err != nil {
			return err
		}
		if ok {
			existing = append(existing, p)
		}
	}

	if len(existing) > 0 && !o.force {
		if !isTerminal(int(stdin.Fd())) {
			return fmt.Errorf("%s already exists; rerun with -force to overwrite", strings.Join(existing, ", "))
		}
		ok, err := confirm(bufio.NewReader(stdin), stdout, existing)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	privPEM, pubPEM, err := keys.Generate(o.algorithm)
	if err != nil {
		return err
	}

	if err := filex.WriteFile(o.privatePath, privPEM, 0o600); err != nil {
		return err
	}
	if err := filex.WriteFile(o.publicPath, pubPEM, 0o644); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(stdout, "%s key pair written\n", o.algorithm)
	fmt.Fprintf(stdout, "  private: %s\n  public:  %s\n", o.privatePath, o.publicPath)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
