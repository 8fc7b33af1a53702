// Package dynamodb implements the profile store on a single DynamoDB table.
//
// Items use the same single-table layout as the rest of our services:
// PK = PROFILE#<id>, SK = METADATA.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"
	pkgerrors "profile-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	profileSK         = "METADATA"
	profileEntityType = "PROFILE"
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// ddbProfile represents the structure of a profile item in DynamoDB.
type ddbProfile struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ProfileID  string `dynamodbav:"ProfileID"`
	Name       string `dynamodbav:"Name"`
	Email      string `dynamodbav:"Email"`
	Bio        string `dynamodbav:"Bio,omitempty"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

// Store is the DynamoDB backed profile repository and database handle
type Store struct {
	client    API
	tableName string
	logger    *zap.Logger
	closeIdle func()
	connected atomic.Bool
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithIdleConnectionCloser registers the function Disconnect uses to drop
// pooled HTTP connections of the underlying client.
func WithIdleConnectionCloser(fn func()) StoreOption {
	return func(s *Store) {
		s.closeIdle = fn
	}
}

// NewStore creates a new DynamoDB profile store
func NewStore(client API, tableName string, logger *zap.Logger, opts ...StoreOption) *Store {
	s := &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect checks that the table exists and is usable. Single attempt.
func (s *Store) Connect(ctx context.Context) error {
	if s.connected.Load() {
		return nil
	}

	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return s.classify("DescribeTable", err)
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive && out.Table.TableStatus != types.TableStatusUpdating {
		return pkgerrors.NewUnavailableError("database").
			WithCause(fmt.Errorf("table %s is %s", s.tableName, out.Table.TableStatus))
	}

	s.connected.Store(true)
	s.logger.Info("Connected to DynamoDB", zap.String("table", s.tableName))
	return nil
}

// Disconnect stops accepting operations and releases pooled connections
func (s *Store) Disconnect(ctx context.Context) error {
	if !s.connected.Swap(false) {
		return nil
	}
	if s.closeIdle != nil {
		s.closeIdle()
	}
	s.logger.Info("Disconnected from DynamoDB", zap.String("table", s.tableName))
	return nil
}

// Connected reports whether Connect succeeded and Disconnect was not called
func (s *Store) Connected() bool {
	return s.connected.Load()
}

// Create stores a new profile; an existing id is a conflict
func (s *Store) Create(ctx context.Context, profile *entities.Profile) error {
	if !s.connected.Load() {
		return ports.ErrDatabaseClosed
	}

	item, err := attributevalue.MarshalMap(ddbProfile{
		PK:         profileKey(profile.ID),
		SK:         profileSK,
		EntityType: profileEntityType,
		ProfileID:  profile.ID,
		Name:       profile.Name,
		Email:      profile.Email,
		Bio:        profile.Bio,
		CreatedAt:  profile.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:  profile.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal profile item")
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to build condition expression")
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      cond.Condition(),
		ExpressionAttributeNames: cond.Names(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ports.ErrConflict
		}
		return s.classify("PutItem", err)
	}
	return nil
}

// GetByID retrieves a profile with a consistent read
func (s *Store) GetByID(ctx context.Context, id string) (*entities.Profile, error) {
	if !s.connected.Load() {
		return nil, ports.ErrDatabaseClosed
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: profileKey(id)},
			"SK": &types.AttributeValueMemberS{Value: profileSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, s.classify("GetItem", err)
	}
	if result.Item == nil {
		return nil, ports.ErrNotFound
	}

	var item ddbProfile
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal profile item")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to parse profile timestamps")
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to parse profile timestamps")
	}

	return entities.ReconstructProfile(item.ProfileID, item.Name, item.Email, item.Bio, createdAt, updatedAt), nil
}

// classify maps SDK errors onto application errors and logs the AWS error code
func (s *Store) classify(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		s.logger.Warn("DynamoDB request failed",
			zap.String("operation", operation),
			zap.String("code", apiErr.ErrorCode()),
			zap.String("fault", apiErr.ErrorFault().String()),
		)
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return pkgerrors.NewUnavailableError("database").WithCause(err)
	}
	return pkgerrors.NewDatabaseError(operation, err)
}

func profileKey(id string) string {
	return "PROFILE#" + id
}

var (
	_ ports.ProfileRepository = (*Store)(nil)
	_ ports.Database          = (*Store)(nil)
)
