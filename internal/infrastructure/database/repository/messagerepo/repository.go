package messagerepo

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"studyhall/chat-api/internal/domain/conversation"
	"studyhall/chat-api/internal/domain/query"
	"studyhall/chat-api/internal/infrastructure/database/dbschema"
	"studyhall/chat-api/internal/utils/functional"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// Repository handles message persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ conversation.MessageRepository = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, msg *conversation.Message) error {
	entity := dbschema.NewSchemaMessage(msg)
	err := r.db.WithContext(ctx).Create(entity).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create message",
			err,
			"c9f2a5d8-3b6e-4c17-a4d0-7e1f8b3c6a92",
		)
	}
	msg.ID = entity.ID
	msg.CreatedAt = entity.CreatedAt
	return nil
}

func (r *Repository) BulkCreate(ctx context.Context, msgs []*conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	entities := functional.Map(msgs, func(msg *conversation.Message) dbschema.Message {
		return *dbschema.NewSchemaMessage(msg)
	})

	err := r.db.WithContext(ctx).Create(&entities).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to bulk create messages",
			err,
			"1a7e4c9b-5d2f-4b68-9c3a-0f6d8e2b7c41",
		)
	}

	for i := range entities {
		msgs[i].ID = entities[i].ID
		msgs[i].CreatedAt = entities[i].CreatedAt
	}
	return nil
}

func (r *Repository) FindByPublicID(ctx context.Context, publicID string) (*conversation.Message, error) {
	var entity dbschema.Message
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&entity).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"message not found",
				err,
				"8d3b6f1a-9c4e-4d25-b7a0-2e5c8f1d6b94",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find message",
			err,
			"4e9a2c7d-6f1b-4e83-a5c0-9b3d7f2e8a16",
		)
	}
	return entity.EtoD(), nil
}

// FindByConversationID returns the conversation's messages oldest-first,
// the order the transcript renders in.
func (r *Repository) FindByConversationID(ctx context.Context, conversationID uint, pagination *query.Pagination) ([]*conversation.Message, error) {
	var entities []dbschema.Message
	tx := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if pagination != nil {
		if pagination.Limit > 0 {
			tx = tx.Limit(pagination.Limit)
		}
		if pagination.Offset > 0 {
			tx = tx.Offset(pagination.Offset)
		}
	}
	if err := tx.Order("created_at ASC, id ASC").Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"7b5e8a3c-2d9f-4a61-8e4b-06c1f9d3a725",
		)
	}

	return functional.Map(entities, func(item dbschema.Message) *conversation.Message {
		return item.EtoD()
	}), nil
}

// FindRecent returns the newest limit messages in chronological order.
func (r *Repository) FindRecent(ctx context.Context, conversationID uint, limit int) ([]*conversation.Message, error) {
	var entities []dbschema.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list recent messages",
			err,
			"2f8c5b1e-7a3d-4f90-b6e2-8d4a0c7f3b51",
		)
	}

	msgs := functional.Map(entities, func(item dbschema.Message) *conversation.Message {
		return item.EtoD()
	})
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (r *Repository) Count(ctx context.Context, filter *conversation.MessageFilter) (int64, error) {
	var count int64
	tx := r.db.WithContext(ctx).Model(&dbschema.Message{})
	if filter != nil {
		if filter.ConversationID != nil {
			tx = tx.Where("conversation_id = ?", *filter.ConversationID)
		}
		if filter.Sender != nil {
			tx = tx.Where("sender = ?", string(*filter.Sender))
		}
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count messages",
			err,
			"6d1f9b4a-8e2c-4d57-a3f0-5b7e9c2d8f14",
		)
	}
	return count, nil
}

func (r *Repository) Update(ctx context.Context, msg *conversation.Message) error {
	entity := dbschema.NewSchemaMessage(msg)
	err := r.db.WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{
			"content":  entity.Content,
			"metadata": entity.Metadata,
		}).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update message",
			err,
			"0c4a7e2b-9f5d-4c38-b1a6-3e8d6f0a9c72",
		)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&dbschema.Message{}).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete message",
			err,
			"5f2d8c6a-1b9e-4a74-9d3f-7c0b4e8a2d61",
		)
	}
	return nil
}

func (r *Repository) DeleteByConversationID(ctx context.Context, conversationID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&dbschema.Message{})
	if result.Error != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete conversation messages",
			result.Error,
			"e8b3f6d1-4a7c-4e29-8c5b-1d9f2a6e4c08",
		)
	}
	return result.RowsAffected, nil
}
