package assignment

import (
	"context"
	"errors"
	"sort"
	"strings"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("assignment repository: not found")

type Repository interface {
	GetRule(ctx context.Context, scopeKey string) (model.AssignmentRuleItem, error)
	PutRule(ctx context.Context, rule model.AssignmentRuleItem) error
	DeleteRule(ctx context.Context, scopeKey string) error
	ListRules(ctx context.Context, tenantID string) ([]model.AssignmentRuleItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetRule(ctx context.Context, scopeKey string) (model.AssignmentRuleItem, error) {
	var rule model.AssignmentRuleItem
	err := r.db.Client.GetItem(
		ctx,
		model.AssignmentRulesTable,
		map[string]types.AttributeValue{
			"scopeKey": &types.AttributeValueMemberS{Value: scopeKey},
		},
		&rule,
	)
	if err != nil {
		if isNotFound(err) {
			return model.AssignmentRuleItem{}, ErrNotFound
		}
		return model.AssignmentRuleItem{}, err
	}
	return rule, nil
}

func (r *DynamoRepository) PutRule(ctx context.Context, rule model.AssignmentRuleItem) error {
	return r.db.Client.PutItem(ctx, model.AssignmentRulesTable, rule)
}

func (r *DynamoRepository) DeleteRule(ctx context.Context, scopeKey string) error {
	return r.db.Client.DeleteItem(
		ctx,
		model.AssignmentRulesTable,
		map[string]types.AttributeValue{
			"scopeKey": &types.AttributeValueMemberS{Value: scopeKey},
		},
	)
}

func (r *DynamoRepository) ListRules(ctx context.Context, tenantID string) ([]model.AssignmentRuleItem, error) {
	items, err := r.db.Client.ScanAllWithFilter(
		ctx,
		model.AssignmentRulesTable,
		"tenantId = :tenantId",
		map[string]types.AttributeValue{
			":tenantId": &types.AttributeValueMemberS{Value: tenantID},
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	rules := make([]model.AssignmentRuleItem, 0, len(items))
	for _, item := range items {
		var rule model.AssignmentRuleItem
		if err := attributevalue.UnmarshalMap(item, &rule); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].ScopeKey < rules[j].ScopeKey
	})

	return rules, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
