package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"photobridge/internal/config"
	"photobridge/internal/domain/ports/repository"
	pg "photobridge/internal/infra/db/postgres"
	"photobridge/internal/infra/logging"
	red "photobridge/internal/infra/redis"
	"photobridge/internal/usecase"
)

// seed grants starting credits to accounts in a persistent store, e.g.
//
//	go run ./cmd/seed -config config.yaml -accounts 123456,987654 -amount 10
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	accounts := flag.String("accounts", "", "comma separated account ids (telegram user ids)")
	amount := flag.Int64("amount", 10, "credits to grant to each account")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ids := parseIDs(*accounts)
	if len(ids) == 0 {
		log.Fatalf("no accounts given; use -accounts 123,456")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var ledger repository.LedgerRepository
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		ledger = pg.NewLedgerRepo(pool)
	case "redis":
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer func() { _ = client.Close() }()
		ledger = red.NewLedgerRepo(client)
	default:
		log.Fatalf("store.backend=%s keeps nothing between runs; seed needs redis or postgres", cfg.Store.Backend)
	}

	accountUC := usecase.NewAccountUseCase(ledger, nil, logging.New(cfg.Log, false))
	for _, id := range ids {
		bal, err := accountUC.Grant(ctx, id, *amount)
		if err != nil {
			log.Fatalf("grant %s: %v", id, err)
		}
		fmt.Printf("seeded: account=%s +%d credits (balance=%d)\n", id, *amount, bal)
	}

	fmt.Println("✅ Seeding complete.")
}

func parseIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if _, err := strconv.ParseInt(part, 10, 64); err != nil {
			if part != "" {
				log.Printf("skipping non-numeric account id %q", part)
			}
			continue
		}
		out = append(out, part)
	}
	return out
}
