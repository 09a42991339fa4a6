// Command directory is the operator front end of the account directory.
//
// Usage:
//
//	directory [flags] <command> [args]
//
// Every command prints JSON on stdout. Failures are logged on stderr and
// turned into a non-zero exit status (see exitCode).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/term"

	"github.com/Skryldev/messenger-directory/config"
	"github.com/Skryldev/messenger-directory/db"
	"github.com/Skryldev/messenger-directory/directory"
	"github.com/Skryldev/messenger-directory/migrations"
	"github.com/Skryldev/messenger-directory/models"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Exit statuses.
const (
	exitOK = iota
	exitFailure
	exitUsage
	exitNotFound
	exitConflict
	exitInvalid
	exitDenied
	exitUnavailable
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// ── 1. Configuration ─────────────────────────────────────────────────────
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		usage(stderr)
		return exitUsage
	}
	logger := cfg.Logger(stderr)

	if len(cfg.Args) == 0 {
		usage(stderr)
		return exitUsage
	}
	command, rest := cfg.Args[0], cfg.Args[1:]

	if command == "init" {
		dialect, err := migrations.Dialect(cfg.DriverName)
		if err == nil {
			err = migrations.Up(dialect, cfg.DatabaseURL, logger)
		}
		if err != nil {
			logger.Error("init failed", "error", err)
			return exitFailure
		}
		return writeJSON(stdout, map[string]string{"schema": dialect})
	}

	// ── 2. Store with logging and metrics hooks ──────────────────────────────
	stats := &db.QueryStats{}
	store, err := db.Open(cfg.DB(
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
			LogArgs:            cfg.LogQueryArgs,
		}),
		db.NewMetricsHook(stats),
	))
	if err != nil {
		logger.Error("open failed", "driver", cfg.DriverName, "error", err)
		return exitCode(err)
	}
	defer func() {
		logger.Debug("db stats", "stats", stats)
		_ = store.Close()
	}()

	// ── 3. Directory ─────────────────────────────────────────────────────────
	hasher, err := cfg.Hasher()
	if err != nil {
		logger.Error("hasher", "error", err)
		return exitFailure
	}
	dir := directory.New(store, hasher, directory.WithLogger(logger))

	// ── 4. Dispatch ──────────────────────────────────────────────────────────
	in := bufio.NewReader(stdin)
	arg := func(n int) (string, bool) {
		if len(rest) <= n {
			return "", false
		}
		return rest[n], true
	}

	var out any
	switch command {
	case "register":
		username, ok1 := arg(0)
		first, ok2 := arg(1)
		last, ok3 := arg(2)
		if !ok1 || !ok2 || !ok3 {
			usage(stderr)
			return exitUsage
		}
		phone, _ := arg(3)
		password, perr := getPassword(in, stdin, stderr)
		if perr != nil {
			logger.Error("read password", "error", perr)
			return exitFailure
		}
		var acc *models.Account
		acc, err = dir.Register(ctx, models.RegisterParams{
			Username:  username,
			Password:  password,
			FirstName: first,
			LastName:  last,
			Phone:     phone,
		})
		if err == nil {
			out = acc.Details()
		}

	case "login", "authenticate":
		username, ok := arg(0)
		if !ok {
			usage(stderr)
			return exitUsage
		}
		password, perr := getPassword(in, stdin, stderr)
		if perr != nil {
			logger.Error("read password", "error", perr)
			return exitFailure
		}
		var granted bool
		if command == "login" {
			granted, err = dir.Login(ctx, username, password)
		} else {
			granted, err = dir.Authenticate(ctx, username, password)
		}
		if err == nil {
			if code := writeJSON(stdout, map[string]bool{"authenticated": granted}); code != exitOK {
				return code
			}
			if !granted {
				return exitDenied
			}
			return exitOK
		}

	case "record-login":
		username, ok := arg(0)
		if !ok {
			usage(stderr)
			return exitUsage
		}
		if err = dir.RecordLogin(ctx, username); err == nil {
			out, err = dir.Get(ctx, username)
		}

	case "get":
		username, ok := arg(0)
		if !ok {
			usage(stderr)
			return exitUsage
		}
		out, err = dir.Get(ctx, username)

	case "list":
		out, err = dir.ListAll(ctx)

	case "sent":
		username, ok := arg(0)
		if !ok {
			usage(stderr)
			return exitUsage
		}
		out, err = dir.MessagesFrom(ctx, username)

	case "inbox":
		username, ok := arg(0)
		if !ok {
			usage(stderr)
			return exitUsage
		}
		out, err = dir.MessagesTo(ctx, username)

	default:
		usage(stderr)
		return exitUsage
	}

	if err != nil {
		logger.Error(command+" failed", "error", err, "status", directory.HTTPStatus(err))
		return exitCode(err)
	}
	return writeJSON(stdout, out)
}

// ─────────────────────────────────────────────────────────────────────────────

// exitCode folds an error onto an exit status through its HTTP status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if _, ok := directory.KindOf(err); !ok && db.IsUnavailable(err) {
		return exitUnavailable
	}
	switch directory.HTTPStatus(err) {
	case http.StatusNotFound:
		return exitNotFound
	case http.StatusConflict:
		return exitConflict
	case http.StatusBadRequest:
		return exitInvalid
	case http.StatusServiceUnavailable:
		return exitUnavailable
	}
	return exitFailure
}

// getPassword reads a password without echo when stdin is a terminal and a
// single line otherwise, so the command can be scripted.
func getPassword(in *bufio.Reader, stdin io.Reader, w io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(w, "Enter password: ")
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func writeJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode output", "error", err)
		return exitFailure
	}
	return exitOK
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: directory [flags] <command> [args]

Commands:
  init                                   Apply the embedded schema
  register <user> <first> <last> [phone] Create an account (password on stdin)
  login <user>                           Check the password and record the login
  authenticate <user>                    Check the password only
  record-login <user>                    Stamp last_login_at with the current time
  get <user>                             Show one account
  list                                   List every account by username
  sent <user>                            Messages sent by user
  inbox <user>                           Messages received by user

Flags:
  -d URL             Database URL or DSN (overrides DATABASE_URL)
  -driver NAME       pgx, postgres, mysql or sqlite3 (overrides DB_DRIVER)
  -timeout DURATION  Default statement timeout
  -cost N            bcrypt cost for register
  -log-level LEVEL   debug, info, warn or error

Exit status:
  0 ok, 1 failure, 2 usage, 3 not found, 4 conflict, 5 invalid input,
  6 wrong password, 7 store unavailable`)
}
