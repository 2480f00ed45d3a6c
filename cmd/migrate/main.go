package main

import (
	"flag"
	"log"

	"relaychat/config"
	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/user"
	"relaychat/pkg/database"
)

func main() {
	seed := flag.Bool("seed", false, "create demo users and conversations after migrating")
	flag.Parse()

	cfg := config.LoadConfig()
	database.Connect(cfg)

	err := database.DB.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&conversation.ConversationSequence{},
		&message.Message{},
		&message.MessageEdit{},
		&message.MessageReaction{},
		&message.Attachment{},
	)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("Migration complete")

	if *seed {
		if _, err := database.Seed(nil); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
	}
}
