package main

import (
	"context"
	"log"
	"os"

	"absensi/internal/config"
	"absensi/internal/master"
	"absensi/internal/store"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lshortfile)

	cfg := config.Load()
	db, err := store.NewDB(context.Background(), cfg.DatabaseURL)
	errAndDie(err)
	defer db.Close()

	cli := commandLine{accounts: master.NewRepository(db.Client), out: os.Stdout}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("error: %s", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
