// Package main implements the embedding queue worker daemon: it claims
// pending embedding work from PostgreSQL, generates embeddings through the
// Gemini API, and records completions, while serving health and queue
// statistics over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	if *migrateOnly {
		if err := app.Migrate(ctx); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Worker terminated: %v", err)
	}
}
