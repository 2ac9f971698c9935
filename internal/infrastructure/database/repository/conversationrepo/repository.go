package conversationrepo

import (
	"context"

	"gorm.io/gorm"

	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/infrastructure/database/dbschema"
	"studyhall/chat-api/internal/utils/functional"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// Repository handles conversation persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ conversation.ConversationRepository = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, conv *conversation.Conversation) error {
	entity := dbschema.NewSchemaConversation(conv)
	err := r.db.WithContext(ctx).Create(entity).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation",
			err,
			"b4e7a2d9-1f5c-4e83-a6b0-8d2f7c4e9a15",
		)
	}
	conv.ID = entity.ID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

func (r *Repository) FindByPublicID(ctx context.Context, publicID string) (*conversation.Conversation, error) {
	var entity dbschema.Conversation
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&entity).Error
	if err != nil {
		return nil, r.wrapLookupError(ctx, err)
	}
	return entity.EtoD(), nil
}

func (r *Repository) Update(ctx context.Context, conv *conversation.Conversation) error {
	entity := dbschema.NewSchemaConversation(conv)
	err := r.db.WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"title":      entity.Title,
			"metadata":   entity.Metadata,
			"updated_at": entity.UpdatedAt,
		}).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update conversation",
			err,
			"6b9d4e7a-2c8f-4b51-9e0d-3a6c1f8b5d42",
		)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&dbschema.Conversation{})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete conversation",
			result.Error,
			"a7c2e5f8-9d4b-4a16-8f3c-6e1b0d9a7c54",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			nil,
			"3f8b1d6c-4e7a-4c92-b5d0-9a2f6e8c1b37",
		)
	}
	return nil
}

// summaryRow carries one conversation plus its preview columns.
type summaryRow struct {
	dbschema.Conversation
	Preview      *string
	MessageCount int64
}

// ListSummaries returns the owner's conversations newest-first, each with the
// latest message's content and the total message count. A single round trip
// keeps the history list cheap to refresh.
func (r *Repository) ListSummaries(ctx context.Context, ownerID string) ([]*conversation.Summary, error) {
	var rows []summaryRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.*, last_msg.content AS preview, COALESCE(counts.n, 0) AS message_count
		FROM chat_api.conversations c
		LEFT JOIN LATERAL (
			SELECT m.content
			FROM chat_api.messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		) last_msg ON TRUE
		LEFT JOIN (
			SELECT conversation_id, COUNT(*) AS n
			FROM chat_api.messages
			GROUP BY conversation_id
		) counts ON counts.conversation_id = c.id
		WHERE c.owner_id = ?
		ORDER BY c.updated_at DESC
	`, ownerID).Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list conversation summaries",
			err,
			"e1d4a7b2-8f5c-4e39-a0b6-7c2d9f4e1a85",
		)
	}

	return functional.Map(rows, func(row summaryRow) *conversation.Summary {
		preview := ""
		if row.Preview != nil {
			preview = *row.Preview
		}
		return &conversation.Summary{
			Conversation: *row.Conversation.EtoD(),
			Preview:      preview,
			MessageCount: int(row.MessageCount),
		}
	}), nil
}

func (r *Repository) wrapLookupError(ctx context.Context, err error) error {
	if err == gorm.ErrRecordNotFound {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			err,
			"9e6c3a8f-1b5d-4f70-8a2e-4d7c0b9f6e13",
		)
	}
	return platformerrors.NewError(
		ctx,
		platformerrors.LayerRepository,
		platformerrors.ErrorTypeDatabaseError,
		"failed to find conversation",
		err,
		"5a8d2f7c-6e1b-4a94-b0f3-8c5e2a7d4f96",
	)
}
