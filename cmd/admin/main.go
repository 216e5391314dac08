package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gitstar-worker/internal/config"
	"gitstar-worker/internal/infra/sqlite3"
	"gitstar-worker/internal/storage"
	"gitstar-worker/internal/stories/cursors"
	"gitstar-worker/internal/stories/jobs"
)

const usage = `usage: admin [-db path] <command> [flags]

commands:
  enqueue  -id N | -login NAME [-token-user N]   queue a user refresh
  token    -user N -token TOKEN                  store a GitHub access token
  cursors                                        show the star scan position
  reset-scan                                     restart the star scan from the top
  stats                                          count queued update user jobs
`

func main() {
	dbPath := flag.String("db", "./data/gitstar.db", "path to SQLite database")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	dbCfg := config.SQLiteConfig{Path: *dbPath, BusyTimeout: 10 * time.Second}
	db, err := sqlite3.New(ctx,
		sqlite3.WithDSN(dbCfg.DSN()),
		sqlite3.WithMaxOpenConns(1),
		sqlite3.WithMigrate(),
	)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	store := storage.New(db.DB)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "enqueue":
		err = runEnqueue(ctx, jobs.NewService(store, nil), args)
	case "token":
		err = runToken(ctx, store, args)
	case "cursors":
		err = runCursors(ctx, store)
	case "reset-scan":
		err = store.DeleteCursors(ctx, cursors.StarScanKeys)
		if err == nil {
			fmt.Println("star scan cursors cleared")
		}
	case "stats":
		var n int64
		n, err = store.CountUpdateUserJobs(ctx)
		if err == nil {
			fmt.Printf("update_user_jobs: %d\n", n)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func runEnqueue(ctx context.Context, svc *jobs.Service, args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	userID := fs.Int64("id", 0, "GitHub user id")
	login := fs.String("login", "", "GitHub login")
	tokenUserID := fs.Int64("token-user", 3138447, "user whose access token pays for the refresh")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		id  int64
		err error
	)
	switch {
	case *userID != 0 && *login != "":
		return fmt.Errorf("-id and -login are mutually exclusive")
	case *userID != 0:
		id, err = svc.EnqueueByID(ctx, *userID, *tokenUserID)
	case *login != "":
		id, err = svc.EnqueueByName(ctx, *login, *tokenUserID)
	default:
		return fmt.Errorf("one of -id or -login is required")
	}
	if err != nil {
		return err
	}

	fmt.Printf("enqueued job %d\n", id)
	return nil
}

func runToken(ctx context.Context, store interface {
	SaveAccessToken(ctx context.Context, userID int64, token string) error
}, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.Int64("user", 0, "GitHub user id owning the token")
	token := fs.String("token", "", "GitHub access token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *userID <= 0 || *token == "" {
		return fmt.Errorf("-user and -token are required")
	}

	if err := store.SaveAccessToken(ctx, *userID, *token); err != nil {
		return err
	}

	fmt.Printf("token stored for user %d\n", *userID)
	return nil
}

func runCursors(ctx context.Context, store interface {
	FindCursor(ctx context.Context, key cursors.Key) (int64, error)
}) error {
	for _, key := range cursors.StarScanKeys {
		v, err := store.FindCursor(ctx, key)
		if err != nil {
			return err
		}
		fmt.Printf("%s = %d\n", key, v)
	}
	return nil
}
