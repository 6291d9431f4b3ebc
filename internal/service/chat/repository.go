package chat

import (
	"context"
	"errors"
	"strings"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("chat repository: not found")

// Repository persists the chat aggregate. CountActiveChats backs the
// workload strategy and per-commercial caps; ListChatsByStatus feeds the
// queue redispatcher.
type Repository interface {
	CreateChat(ctx context.Context, chat model.ChatItem) error
	GetChat(ctx context.Context, tenantID, chatID string) (model.ChatItem, error)
	SaveChat(ctx context.Context, chat model.ChatItem) error
	ListChatsByStatus(ctx context.Context, tenantID string, status model.ChatStatus) ([]model.ChatItem, error)
	ListTenantsWithStatus(ctx context.Context, status model.ChatStatus) ([]string, error)
	CountActiveChats(ctx context.Context, tenantID, commercialID string) (int, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) CreateChat(ctx context.Context, chat model.ChatItem) error {
	return r.db.Client.PutItem(ctx, model.ChatsTable, chat)
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

func (r *DynamoRepository) ListChatsByStatus(ctx context.Context, tenantID string, status model.ChatStatus) ([]model.ChatItem, error) {
	items, err := r.db.Client.ScanAllWithFilter(
		ctx,
		model.ChatsTable,
		"tenantId = :tenantId AND #status = :status",
		map[string]types.AttributeValue{
			":tenantId": &types.AttributeValueMemberS{Value: tenantID},
			":status":   &types.AttributeValueMemberS{Value: string(status)},
		},
		map[string]string{"#status": "status"},
	)
	if err != nil {
		return nil, err
	}
	return unmarshalChats(items)
}

func (r *DynamoRepository) ListTenantsWithStatus(ctx context.Context, status model.ChatStatus) ([]string, error) {
	items, err := r.db.Client.ScanAllWithFilter(
		ctx,
		model.ChatsTable,
		"#status = :status",
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
		map[string]string{"#status": "status"},
	)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	tenants := []string{}
	for _, item := range items {
		var chat model.ChatItem
		if err := attributevalue.UnmarshalMap(item, &chat); err != nil {
			return nil, err
		}
		if chat.TenantID != "" && !seen[chat.TenantID] {
			seen[chat.TenantID] = true
			tenants = append(tenants, chat.TenantID)
		}
	}
	return tenants, nil
}

func (r *DynamoRepository) CountActiveChats(ctx context.Context, tenantID, commercialID string) (int, error) {
	items, err := r.db.Client.ScanAllWithFilter(
		ctx,
		model.ChatsTable,
		"tenantId = :tenantId AND #status = :status AND contains(assignedCommercialIds, :commercialId)",
		map[string]types.AttributeValue{
			":tenantId":     &types.AttributeValueMemberS{Value: tenantID},
			":status":       &types.AttributeValueMemberS{Value: string(model.ChatStatusOpen)},
			":commercialId": &types.AttributeValueMemberS{Value: commercialID},
		},
		map[string]string{"#status": "status"},
	)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func unmarshalChats(items []map[string]types.AttributeValue) ([]model.ChatItem, error) {
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
