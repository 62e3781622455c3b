package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"claimdesk.org/internal/migrate"
	"claimdesk.org/internal/obs"
)

const usage = `usage: migrate [flags] <command>

commands:
  up       apply pending migrations
  down     roll back the latest migration
  redo     roll back the latest migration and apply it again
  seed     apply pending seed files (requires -seeds)
  status   list applied and pending migrations

flags:
`

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	var (
		dsn            = flag.String("dsn", os.Getenv("CLAIMDESK_PG_DSN"), "PostgreSQL DSN (default $CLAIMDESK_PG_DSN)")
		migrationsPath = flag.String("migrations", "", "directory of *.up.sql/*.down.sql files (default: schema built into the binary)")
		seedsPath      = flag.String("seeds", "", "directory of seed *.sql files")
		timeout        = flag.Duration("timeout", time.Minute, "overall deadline")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or CLAIMDESK_PG_DSN")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	migrations := migrate.Embedded()
	if *migrationsPath != "" {
		migrations = os.DirFS(*migrationsPath)
	}
	var seeds fs.FS
	if *seedsPath != "" {
		seeds = os.DirFS(*seedsPath)
	}
	mgr := migrate.NewManager(db, migrations, seeds)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "redo":
		if err = mgr.Down(ctx); err == nil {
			err = mgr.Up(ctx)
		}
	case "seed":
		if seeds == nil {
			log.Fatal("seed requires -seeds")
		}
		err = mgr.Seed(ctx)
	case "status":
		var entries []migrate.Entry
		if entries, err = mgr.Status(ctx); err == nil {
			for _, e := range entries {
				fmt.Println(e)
			}
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		obs.Error("migrate_failed", map[string]any{"command": cmd, "error": err.Error()})
		os.Exit(1)
	}
	obs.Info("migrate_done", map[string]any{"command": cmd})
}
