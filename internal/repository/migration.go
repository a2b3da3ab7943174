package repository

import (
	"fmt"

	"cardcircle/internal/domain/direct"
	"cardcircle/internal/domain/group"
	"cardcircle/internal/domain/message"

	"gorm.io/gorm"
)

// InitSchema creates the chat tables and the constraints AutoMigrate cannot
// express. The users table belongs to the account subsystem and is not touched.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&group.Group{},
		&group.Member{},
		&direct.Conversation{},
		&message.Message{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	constraints := []string{
		`DO $$ BEGIN
			ALTER TABLE direct_conversations
				ADD CONSTRAINT chk_direct_distinct_pair CHECK (user_low <> user_high);
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE chat_messages
				ADD CONSTRAINT chk_messages_kind CHECK (kind IN ('text', 'card'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE chat_group_members
				ADD CONSTRAINT fk_members_group FOREIGN KEY (group_id) REFERENCES chat_groups(id) ON DELETE CASCADE;
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply constraint: %w", err)
		}
	}
	return nil
}
