package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"team-chat/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	ttlDuration = 30 * 24 * time.Hour
	// sortLayout is fixed width so sort keys order chronologically.
	sortLayout = "20060102T150405.000000000Z"
)

// dynamodbAPI is the subset of *dynamodb.Client used by Client.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores transcripts in a single DynamoDB table keyed by
// PK=SESSION#<id>, SK=MSG#<timestamp>.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(sortLayout)
}

// Append writes one transcript entry. The condition guards against two
// entries landing on the same sort key.
func (c *Client) Append(ctx context.Context, sessionID string, entry domain.Entry) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: Append: session id is required")
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	rec := domain.TranscriptRecord{
		PK:        sessionPK(sessionID),
		SK:        msgSK(created),
		SessionID: sessionID,
		Role:      entry.Role,
		Content:   entry.Content,
		CreatedAt: created.UTC().Format(time.RFC3339Nano),
		TTL:       created.Add(ttlDuration).Unix(),
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                recordItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

// Load returns the full transcript of a session in chronological order.
func (c *Client) Load(ctx context.Context, sessionID string) (domain.Transcript, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var out domain.Transcript
	for {
		page, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: Load query: %w", err)
		}
		for _, item := range page.Items {
			e, err := itemToEntry(item)
			if err != nil {
				return nil, fmt.Errorf("repository: Load unmarshal: %w", err)
			}
			out = append(out, e)
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func recordItem(rec domain.TranscriptRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: rec.PK},
		"SK":        &types.AttributeValueMemberS{Value: rec.SK},
		"sessionId": &types.AttributeValueMemberS{Value: rec.SessionID},
		"role":      &types.AttributeValueMemberS{Value: rec.Role},
		"content":   &types.AttributeValueMemberS{Value: rec.Content},
		"createdAt": &types.AttributeValueMemberS{Value: rec.CreatedAt},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.TTL)},
	}
}

func itemToEntry(item map[string]types.AttributeValue) (domain.Entry, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Entry{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Entry{}, err
	}
	e := domain.Entry{Role: role, Content: content}
	if created, err := strAttr(item, "createdAt"); err == nil {
		if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			e.CreatedAt = ts
		}
	}
	return e, nil
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
