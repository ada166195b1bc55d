package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"

	"todoapp/internal/domain/todo"
	"todoapp/internal/infrastructure/store"
	"todoapp/internal/shared/config"
	"todoapp/internal/shared/logger"
)

const usage = `Todo Admin CLI - Management commands for the todo store

Usage:
  admin <command> [options]

Commands:
  migrate         Create the todos table if it does not exist
  list            Print every todo, newest first
  add <text>      Add a todo
  toggle <id>     Flip the completed flag of a todo
  delete <id>     Delete a todo

The database is selected the same way as for the API server
(DB_DRIVER, SQLITE_PATH, DB_HOST, ... or TODO_CONFIG_FILE).

Examples:
  # Prepare a fresh sqlite file
  DB_DRIVER=sqlite SQLITE_PATH=todo.db admin migrate

  # Add an item and mark it done
  admin add "buy milk"
  admin toggle 1

  # Show only open items
  admin list --open
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "add":
		runAdd(os.Args[2:])
	case "toggle":
		runToggle(os.Args[2:])
	case "delete":
		runDelete(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

// commonFlags registers the flags every command accepts.
func commonFlags(fs *flag.FlagSet) *time.Duration {
	return fs.Duration("timeout", 30*time.Second, "Timeout for the operation (e.g., 5s, 1m)")
}

// openStore loads configuration and connects to the configured database.
func openStore() *store.Store {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", "err", err)
	}

	opts := logger.DefaultOptions("admin")
	opts.Level = cfg.Log.Level
	opts.Format = cfg.Log.Format
	if _, err := logger.Setup(opts); err != nil {
		log.Fatal("Failed to set up logger", "err", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatal("Failed to open database", "driver", cfg.Database.Driver, "err", err)
	}
	return st
}

// withStore runs fn against st and closes st before returning, so callers
// can exit on the returned error without leaking the connection.
func withStore(st *store.Store, timeout time.Duration, fn func(ctx context.Context, st *store.Store, svc *todo.Service) error) error {
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// the service notifies running servers of every change when the driver supports it
	return fn(ctx, st, todo.NewService(st.Repo, st.Notifier))
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	timeout := commonFlags(fs)
	fs.Usage = func() {
		fmt.Println("Usage: admin migrate [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	var driver string
	err := withStore(openStore(), *timeout, func(ctx context.Context, st *store.Store, _ *todo.Service) error {
		driver = st.Driver
		return st.Migrate(ctx)
	})
	if err != nil {
		log.Fatal("Migration failed", "err", err)
	}
	log.Info("Schema is up to date", "driver", driver)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	timeout := commonFlags(fs)
	openOnly := fs.Bool("open", false, "Only show items that are not completed")
	fs.Usage = func() {
		fmt.Println("Usage: admin list [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	var todos []*todo.Todo
	err := withStore(openStore(), *timeout, func(ctx context.Context, _ *store.Store, svc *todo.Service) error {
		var err error
		todos, err = svc.ListTodos(ctx)
		return err
	})
	if err != nil {
		log.Fatal("Failed to list todos", "err", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tCREATED\tTEXT")
	shown := 0
	for _, t := range todos {
		if *openOnly && t.Completed {
			continue
		}
		done := " "
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(tw, "%d\t[%s]\t%s\t%s\n", t.ID, done, t.CreatedAt.Local().Format(time.DateTime), t.Text)
		shown++
	}
	tw.Flush()

	fmt.Printf("\n%d shown, %d total\n", shown, len(todos))
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	timeout := commonFlags(fs)
	fs.Usage = func() {
		fmt.Println("Usage: admin add [options] <text>")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fmt.Println("Error: text is required")
		fs.Usage()
		os.Exit(1)
	}
	text := strings.Join(fs.Args(), " ")

	err := withStore(openStore(), *timeout, func(ctx context.Context, _ *store.Store, svc *todo.Service) error {
		return svc.AddTodo(ctx, text)
	})
	exitOnServiceError("add", err)
	fmt.Println("Added")
}

func runToggle(args []string) {
	id, timeout := parseIDCommand("toggle", args)

	err := withStore(openStore(), timeout, func(ctx context.Context, _ *store.Store, svc *todo.Service) error {
		return svc.ToggleTodo(ctx, id)
	})
	exitOnServiceError("toggle", err)
	fmt.Printf("Toggled %d\n", id)
}

func runDelete(args []string) {
	id, timeout := parseIDCommand("delete", args)

	err := withStore(openStore(), timeout, func(ctx context.Context, _ *store.Store, svc *todo.Service) error {
		return svc.DeleteTodo(ctx, id)
	})
	exitOnServiceError("delete", err)
	fmt.Printf("Deleted %d\n", id)
}

// parseIDCommand handles the flags and the single positional id shared by
// toggle and delete.
func parseIDCommand(name string, args []string) (int64, time.Duration) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	timeout := commonFlags(fs)
	fs.Usage = func() {
		fmt.Printf("Usage: admin %s [options] <id>\n", name)
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Println("Error: exactly one id is required")
		fs.Usage()
		os.Exit(1)
	}

	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		fmt.Printf("Error: invalid id %q\n", fs.Arg(0))
		os.Exit(1)
	}
	return id, *timeout
}

// serviceErrorMessage returns the user-facing text for expected failures,
// or "" when err should be logged instead.
func serviceErrorMessage(err error) string {
	var verr *todo.ValidationError
	switch {
	case errors.As(err, &verr):
		return "Error: " + verr.Message
	case errors.Is(err, todo.ErrTodoNotFound):
		return "Error: todo not found"
	}
	return ""
}

// exitOnServiceError exits with status 1 when err is non-nil. The store must
// already be closed.
func exitOnServiceError(op string, err error) {
	if err == nil {
		return
	}
	if msg := serviceErrorMessage(err); msg != "" {
		fmt.Println(msg)
	} else {
		log.Error("Command failed", "op", op, "err", err)
	}
	os.Exit(1)
}
