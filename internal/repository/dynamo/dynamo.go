// Package dynamo stores campaign snapshots and OAuth tokens in a single DynamoDB table
// keyed by "pk".
package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/garnizeh/talentmail/internal/models"
	"github.com/garnizeh/talentmail/pkg/repository"
)

// API is the subset of the DynamoDB client the repo uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var _ repository.StateRepo = (*Repo)(nil)
var _ repository.TokenRepo = (*Repo)(nil)

type Repo struct {
	client API
	table  string
	logger *slog.Logger
}

type stateItem struct {
	PK       string `dynamodbav:"pk"`
	State    string `dynamodbav:"state"`
	Snapshot string `dynamodbav:"snapshot"`
	Updated  int64  `dynamodbav:"updated"`
}

type tokenItem struct {
	PK           string `dynamodbav:"pk"`
	AccessToken  string `dynamodbav:"access_token"`
	RefreshToken string `dynamodbav:"refresh_token"`
	ExpiresAt    int64  `dynamodbav:"expires_at"`
	Updated      int64  `dynamodbav:"updated"`
}

func New(client API, table string, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Repo{client: client, table: table, logger: logger}
}

// NewFromEnv builds a client from the default AWS credential chain.
func NewFromEnv(ctx context.Context, table string, logger *slog.Logger) (*Repo, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), table, logger), nil
}

func stateKey(c models.Campaign) string { return "campaign#" + string(c) }
func tokenKey(p string) string          { return "token#" + p }

func (r *Repo) get(ctx context.Context, pk string) (map[string]types.AttributeValue, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
	})
	if err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (r *Repo) put(ctx context.Context, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	})
	return err
}

func (r *Repo) LoadState(ctx context.Context, c models.Campaign) (models.CampaignState, error) {
	item, err := r.get(ctx, stateKey(c))
	if err != nil {
		return models.CampaignState{}, fmt.Errorf("get state: %w", err)
	}
	if item == nil {
		return models.EmptyState(c), nil
	}

	var rec stateItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		r.logger.Warn("unreadable state item, using EMPTY", slog.String("campaign", string(c)), slog.Any("err", err))
		return models.EmptyState(c), nil
	}
	var s models.CampaignState
	if err := json.Unmarshal([]byte(rec.Snapshot), &s); err != nil || s.State == "" {
		r.logger.Warn("unreadable state snapshot, using EMPTY", slog.String("campaign", string(c)), slog.Any("err", err))
		return models.EmptyState(c), nil
	}
	s.Campaign = c
	return s, nil
}

func (r *Repo) SaveState(ctx context.Context, s models.CampaignState) error {
	if !s.Campaign.Valid() {
		return fmt.Errorf("unknown campaign %q", s.Campaign)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return r.put(ctx, stateItem{
		PK:       stateKey(s.Campaign),
		State:    string(s.State),
		Snapshot: string(b),
		Updated:  time.Now().UTC().UnixMilli(),
	})
}

func (r *Repo) LoadTokens(ctx context.Context, provider string) (*models.TokenSet, error) {
	item, err := r.get(ctx, tokenKey(provider))
	if err != nil {
		return nil, fmt.Errorf("get tokens: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	var rec tokenItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal tokens: %w", err)
	}
	return &models.TokenSet{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken, ExpiresAt: rec.ExpiresAt}, nil
}

func (r *Repo) SaveTokens(ctx context.Context, provider string, t models.TokenSet) error {
	return r.put(ctx, tokenItem{
		PK:           tokenKey(provider),
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
		Updated:      time.Now().UTC().UnixMilli(),
	})
}
