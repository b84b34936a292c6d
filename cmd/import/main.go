// Command import loads a conversations workbook into the database.
package main

import (
	"context"
	"flag"
	"os"

	"scorecard-insights-go/internal/config"
	"scorecard-insights-go/internal/dataset"
	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/store"
)

func main() {
	path := flag.String("file", envOr("DATASET_PATH", "conversations.xlsx"), "xlsx workbook to import")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}
	log := logger.NewWithOptions(logger.Options{Environment: cfg.Log.Environment, Level: cfg.Log.Level})

	convs, err := dataset.Load(*path)
	if err != nil {
		log.WithError(err).WithField("file", *path).Fatal("failed to read workbook")
	}

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	conversations := store.NewConversationStore(db, log)
	imported := 0
	for _, c := range convs {
		if err := conversations.Upsert(ctx, c); err != nil {
			log.WithError(err).WithField("conversation_id", c.ID).Warn("skipping conversation")
			continue
		}
		imported++
	}
	log.WithField("file", *path).WithField("rows", len(convs)).WithField("imported", imported).Info("import finished")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
