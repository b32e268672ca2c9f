// Package main is a diagnostic tool for testing database connectivity and
// inspecting live trust data. It connects with the server configuration, counts
// accounts per role and restriction state, and shows the most recent ledger
// entries. Any arguments are taken as ledger archive object keys and verified
// against the configured s3 shipper's bucket. The binary exits non-zero on any
// failure so it can gate deployment pipelines on a reachable, migrated database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/castline/castline/internal/audit"
	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db"
	"github.com/castline/castline/internal/db/repositories"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1, 0)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("=== ACCOUNTS ===")
	var counts []struct {
		Role             string `db:"role"`
		Frozen           bool   `db:"frozen"`
		PaymentConfirmed bool   `db:"payment_confirmed"`
		Count            int    `db:"count"`
	}
	err = database.SelectContext(ctx, &counts, `
		SELECT role, frozen, payment_confirmed, COUNT(*) AS count
		FROM accounts GROUP BY role, frozen, payment_confirmed ORDER BY role`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	for _, c := range counts {
		fmt.Printf("%-9s frozen=%-5v payment_confirmed=%-5v %d\n", c.Role, c.Frozen, c.PaymentConfirmed, c.Count)
	}

	fmt.Println("\n=== RECENT LEDGER ENTRIES ===")
	logs, total, err := repositories.NewAuditRepository(database).ListAuditLogs(ctx, repositories.AuditFilters{}, 10, 0)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	for _, l := range logs {
		fmt.Printf("%s %-22s target=%s actor=%s (%s) reason=%q\n",
			l.CreatedAt.Format(time.RFC3339), l.ActionType, l.TargetUserID, l.ActorID, l.ActorRole, l.Reason)
	}
	if total == 0 {
		fmt.Println("No ledger entries found")
	} else {
		fmt.Printf("%d entries total\n", total)
	}

	if keys := os.Args[1:]; len(keys) > 0 {
		verifyArchives(ctx, cfg, keys)
	}
}

func verifyArchives(ctx context.Context, cfg *config.Config, keys []string) {
	fmt.Println("\n=== LEDGER ARCHIVES ===")
	var s3cfg *config.AuditS3Config
	for _, sc := range cfg.Audit.Shippers {
		if sc.Type == "s3" && sc.S3 != nil {
			s3cfg = sc.S3
			break
		}
	}
	if s3cfg == nil {
		log.Fatalf("No s3 ledger shipper configured")
	}

	verifier, err := audit.NewArchiveVerifier(ctx, s3cfg)
	if err != nil {
		log.Fatalf("Failed to create archive verifier: %v", err)
	}
	failed := 0
	for _, key := range keys {
		sum, err := verifier.Verify(ctx, key)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", key, err)
			failed++
			continue
		}
		fmt.Printf("OK   %s entries=%d sha256=%s\n", key, sum.Entries, sum.SHA256)
	}
	if failed > 0 {
		log.Fatalf("%d of %d archives failed verification", failed, len(keys))
	}
}
