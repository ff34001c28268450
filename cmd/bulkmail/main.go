// Command bulkmail sends templated emails to a list of recipients, from
// the command line or through a small web front end.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dazzlo/bulkmail/internal/config"
	"github.com/dazzlo/bulkmail/pkg/dnsverify"
	"github.com/dazzlo/bulkmail/pkg/mailer"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// cli holds the process streams and the seams tests replace.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// environ is passed to config.ParseFrom; nil means the process environment.
	environ map[string]string
	// transport builds the mail transport from the loaded configuration.
	transport func(config.Config) mailer.Transport
	// resolver backs the sender SPF check; nil skips it.
	resolver dnsverify.Resolver
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := &cli{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		transport: config.Config.MailTransport,
		resolver:  net.DefaultResolver,
	}
	os.Exit(c.run(ctx, os.Args[1:]))
}

func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.usage()
		return exitUsage
	}

	switch args[0] {
	case "send":
		return c.send(ctx, args[1:])
	case "serve":
		return c.serve(ctx, args[1:])
	case "sample":
		return c.sample(args[1:])
	case "preview":
		return c.preview(args[1:])
	case "help", "-h", "--help":
		c.usage()
		return exitOK
	default:
		fmt.Fprintf(c.stderr, "unknown command: %s\n\n", args[0])
		c.usage()
		return exitUsage
	}
}

func (c *cli) usage() {
	fmt.Fprint(c.stderr, `bulkmail: templated bulk email sender

Usage:
  bulkmail send    -csv <file> -template <kind> [-creds creds.json] [flags]
  bulkmail preview -template <kind> [-csv <file>] [-html]
  bulkmail sample  -template <kind>
  bulkmail serve   [-addr :8080]

Templates: interview, congratulations, partnership_enterprises, partnership_hr

Configuration is read from the environment and .env; see internal/config.
Run "bulkmail <command> -h" for command flags.
`)
}

func (c *cli) loadConfig() (config.Config, error) {
	return config.ParseFrom(c.environ)
}

func (c *cli) fail(err error) int {
	fmt.Fprintf(c.stderr, "error: %v\n", err)
	return exitFailure
}
