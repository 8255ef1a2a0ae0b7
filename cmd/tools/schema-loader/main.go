// cmd/tools/schema-loader/main.go
//
// Registers a new application schema version. The newest registered version
// is the one new applications bind to, so loading a schema is a deployment
// step, not a runtime operation.
//
// Usage:
//
//	schema-loader -file schema.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"casework-workers/internal/common/config"
	"casework-workers/internal/common/database"
	"casework-workers/internal/common/logger"
	"casework-workers/internal/schema"
)

func main() {
	var (
		file     = flag.String("file", "", "path to the JSON schema file to register")
		validate = flag.Bool("validate", true, "check the file parses as JSON before inserting")
	)
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: schema-loader -file schema.json")
		os.Exit(2)
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		zapLog.Fatal("read schema file failed", zap.Error(err))
	}
	if *validate {
		var parsed map[string]interface{}
		if err := json.Unmarshal(content, &parsed); err != nil {
			zapLog.Fatal("schema file is not valid JSON", zap.Error(err))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	version, err := schema.NewRegistry(pg.DB).Insert(ctx, content)
	if err != nil {
		zapLog.Fatal("schema insert failed", zap.Error(err))
	}

	zapLog.Info("schema version registered",
		zap.String("id", version.ID),
		zap.Time("addedAt", version.AddedAt),
	)
}
