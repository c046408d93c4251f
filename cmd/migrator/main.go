package main

import (
	"flag"
	"log"

	"github.com/UnknownOlympus/staffdesk/internal/config"
	"github.com/UnknownOlympus/staffdesk/internal/repository"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"
)

func main() {
	migrationsDir := flag.String("dir", "migrations", "directory containing migration files")
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.MustLoad()

	dbpool, dbErr := repository.NewDatabase(cfg.Postgres)
	if dbErr != nil {
		log.Fatalf("Failed to connect to DB: %v", dbErr)
	}
	defer dbpool.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal(err)
	}

	dtb := stdlib.OpenDBFromPool(dbpool)
	if migrationErr := goose.Run(command, dtb, *migrationsDir, flag.Args()[min(1, flag.NArg()):]...); migrationErr != nil {
		log.Fatal(migrationErr)
	}

	log.Printf("✅ Migration command %q applied successfully", command)
}
