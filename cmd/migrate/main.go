package main

import (
	"log"
	"os"

	"school-portal-be/internal/model"
	"school-portal-be/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		color.Red("Error: DB_CONNECTION_STRING is not set")
		os.Exit(1)
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		color.Red("Error: Failed to connect to database: %v", err)
		os.Exit(1)
	}

	color.Cyan("Starting chat schema migration...")

	// 3. AutoMigrate the chat tables
	color.Yellow("Step 1: Running AutoMigrate for 3 Tables...")

	models := []interface{}{
		&model.Chat{},
		&model.ChatParticipant{},
		&model.Message{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		color.Red("Error: AutoMigrate failed: %v", err)
		os.Exit(1)
	}

	// 4. Post-Migration: foreign keys GORM cannot infer without associations.
	// parent_message_id stays a plain lookup key so replies survive a deleted parent.
	color.Yellow("Step 2: Adding foreign keys...")

	postMigrationSQL := []string{
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_chat_participants_chat') THEN
			ALTER TABLE chat_participants ADD CONSTRAINT fk_chat_participants_chat FOREIGN KEY (chat_id) REFERENCES chats(id);
		END IF; END $$;`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_messages_chat') THEN
			ALTER TABLE messages ADD CONSTRAINT fk_messages_chat FOREIGN KEY (chat_id) REFERENCES chats(id);
		END IF; END $$;`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			color.Magenta("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	color.Green("✅ Success: Chat schema migration completed.")
}
