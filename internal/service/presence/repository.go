package presence

import (
	"context"
	"errors"
	"strings"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("presence repository: not found")

// Repository is the narrow view of the chat aggregate that presence needs:
// load a chat, replace it after a participant value changed, and find every
// chat a user takes part in.
type Repository interface {
	GetChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error)
	SaveChat(ctx context.Context, chat model.ChatItem) error
	ListChatsForParticipant(ctx context.Context, userID string) ([]model.ChatItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error) {
	var chat model.ChatItem
	err := r.db.Client.GetItem(
		ctx,
		model.ChatsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ChatPK(tenantID, chatID)},
		},
		&chat,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ChatItem{}, ErrNotFound
		}
		return model.ChatItem{}, err
	}
	return chat, nil
}

func (r *DynamoRepository) SaveChat(ctx context.Context, chat model.ChatItem) error {
	return r.db.Client.PutItem(ctx, model.ChatsTable, chat)
}

func (r *DynamoRepository) ListChatsForParticipant(ctx context.Context, userID string) ([]model.ChatItem, error) {
	items, err := r.db.Client.ScanAllWithFilter(
		ctx,
		model.ChatsTable,
		"contains(participantIds, :userId)",
		map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	chats := make([]model.ChatItem, 0, len(items))
	for _, item := range items {
		var chat model.ChatItem
		if err := attributevalue.UnmarshalMap(item, &chat); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
