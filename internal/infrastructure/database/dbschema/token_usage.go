package dbschema

import (
	"studyhall/chat-api/internal/domain/tokenusage"
	"studyhall/chat-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(tokenusage.TokenUsage{})
}
