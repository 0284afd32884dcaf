package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"prolink-chat/config"
	"prolink-chat/internal/app"
	"prolink-chat/internal/repository"
	"prolink-chat/internal/services"
	"prolink-chat/pkg/database"
	"prolink-chat/pkg/logger"
)

const usage = `
Prolink Chat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update tables, indexes and constraints
  status      Show database connection status and table sizes
  seed        Seed development conversations through the send pipeline
  truncate    Truncate all tables (DANGEROUS)

Flags:
  -users int     Users to generate when seeding (default 4)
  -replies int   Thread replies per conversation when seeding (default 2)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate seed -users 6
`

func main() {
	users := flag.Int("users", database.DefaultSeedConfig().Users, "Users to generate when seeding")
	replies := flag.Int("replies", database.DefaultSeedConfig().ThreadReplies, "Thread replies per conversation when seeding")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)
	ctx := context.Background()

	// Redis pushes are pointless for a one-off tool.
	cfg.RedisEnabled = false
	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer a.Close()

	switch command := flag.Arg(0); command {
	case "up":
		runMigrationsUp(a.DB)
	case "status":
		showStatus(ctx, a.DB)
	case "seed":
		runSeed(ctx, a, database.SeedConfig{Users: *users, ThreadReplies: *replies})
	case "truncate":
		runTruncate(a.DB)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("🚀 Running migrations UP...")

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus(ctx context.Context, db *gorm.DB) {
	log.Println("🔍 Checking database status...")

	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, model := range repository.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			log.Printf("⚠️  Error resolving table for %T: %v", model, err)
			continue
		}
		table := stmt.Schema.Table
		if !db.Migrator().HasTable(table) {
			log.Printf("❌ Table %-26s does not exist", table)
			continue
		}
		var count int64
		db.Table(table).Count(&count)
		log.Printf("✅ Table %-26s exists (%d rows)", table, count)
	}
}

func runSeed(ctx context.Context, a *app.App, cfg database.SeedConfig) {
	log.Println("🌱 Seeding database (development mode)...")

	result, err := database.Seed(ctx, cfg, func(ctx context.Context, msg database.SeedMessage) (uuid.UUID, error) {
		sent, err := a.Messages.Send(ctx, services.SendRequest{
			SenderID:        msg.SenderID,
			RecipientID:     msg.RecipientID,
			Content:         msg.Content,
			Metadata:        msg.Metadata,
			ParentMessageID: msg.ParentID,
		})
		return sent.ID, err
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("📊 Seed Summary:")
	for _, id := range result.Users {
		token, _, err := a.Auth.IssueAccessToken(id, "seed")
		if err != nil {
			log.Fatalf("❌ Issuing token failed: %v", err)
		}
		log.Printf("   - User %s token: %s", id, token)
	}
	log.Printf("   - Messages: %d", len(result.Messages))
	log.Println("✅ Development seeding completed!")
}

func runTruncate(db *gorm.DB) {
	log.Println("⚠️  WARNING: This will TRUNCATE all tables!")

	if err := repository.Truncate(db); err != nil {
		log.Fatalf("❌ Truncate failed: %v", err)
	}

	log.Println("✅ All tables truncated!")
}
