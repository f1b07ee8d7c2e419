// cmd/quickcourt/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: quickcourt <command> [flags]

commands:
  login  -email E -password P
  slots  -facility N [-date YYYY-MM-DD]
  book   -facility N -date YYYY-MM-DD -slot HH:MM [-notes TEXT]

environment:
  QUICKCOURT_API_URL       API base URL (default http://localhost:8080/api/v1)
  QUICKCOURT_SESSION_FILE  where the login session is kept (default ~/.quickcourt/session.json)
`

type command func(ctx context.Context, env environment, args []string, out io.Writer) error

var commands = map[string]command{
	"login": runLogin,
	"slots": runSlots,
	"book":  runBook,
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error loading .env file: %v\n", err)
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("QUICKCOURT_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.DefaultContextLogger = &log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err := cmd(ctx, loadEnvironment(), args[1:], stdout); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		}
		fmt.Fprintf(stderr, "quickcourt %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}
