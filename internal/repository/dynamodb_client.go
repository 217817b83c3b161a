package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	skPrefill   = "PREFILL#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client stores the per-client prefill text in a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// clientPK returns the partition key for a client installation.
func clientPK(clientID string) string {
	return "CLIENT#" + clientID
}

func (c *Client) key(clientID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: clientPK(clientID)},
		"SK": &types.AttributeValueMemberS{Value: skPrefill},
	}
}

// GetPrefill returns the stored prefill text, or "" when none exists or the
// record has expired.
func (c *Client) GetPrefill(ctx context.Context, clientID string) (string, error) {
	if strings.TrimSpace(clientID) == "" {
		return "", errors.New("repository: GetPrefill: client id is required")
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(clientID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("repository: GetPrefill get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", nil
	}

	// DynamoDB TTL deletion is lazy; treat expired rows as absent.
	if ttl, err := int64Attr(out.Item, "ttl"); err == nil && ttl <= c.now().Unix() {
		return "", nil
	}
	text, err := strAttr(out.Item, "text")
	if err != nil {
		return "", fmt.Errorf("repository: GetPrefill decode: %w", err)
	}
	return text, nil
}

// SavePrefill writes or replaces the prefill text for a client.
func (c *Client) SavePrefill(ctx context.Context, clientID, text string) error {
	if strings.TrimSpace(clientID) == "" {
		return errors.New("repository: SavePrefill: client id is required")
	}
	now := c.now().UTC()
	item := c.key(clientID)
	item["text"] = &types.AttributeValueMemberS{Value: text}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttlDuration).Unix(), 10)}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: SavePrefill: %w", err)
	}
	return nil
}

// ClearPrefill removes the prefill record. Missing records are not an error.
func (c *Client) ClearPrefill(ctx context.Context, clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return errors.New("repository: ClearPrefill: client id is required")
	}
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.key(clientID),
	})
	if err != nil {
		return fmt.Errorf("repository: ClearPrefill: %w", err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
