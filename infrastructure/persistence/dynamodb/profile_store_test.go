package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"profile-backend/application/ports"
	"profile-backend/domain/core/entities"
	pkgerrors "profile-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAPI keeps items in a map keyed by PK and mimics the conditional put.
type fakeAPI struct {
	items       map[string]map[string]types.AttributeValue
	describeErr error
	status      types.TableStatus
	putErr      error
	lastPut     *dynamodb.PutItemInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items:  make(map[string]map[string]types.AttributeValue),
		status: types.TableStatusActive,
	}
}

func (f *fakeAPI) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: f.status,
	}}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
	if _, exists := f.items[pk]; exists {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[pk]}, nil
}

func connectedStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()
	store := NewStore(api, "profiles", zap.NewNop())
	require.NoError(t, store.Connect(context.Background()))
	return store
}

func TestStore_Connect(t *testing.T) {
	ctx := context.Background()

	t.Run("Should connect to an active table", func(t *testing.T) {
		store := NewStore(newFakeAPI(), "profiles", zap.NewNop())

		require.NoError(t, store.Connect(ctx))
		assert.True(t, store.Connected())
	})

	t.Run("Should fail on a missing table", func(t *testing.T) {
		api := newFakeAPI()
		api.describeErr = &types.ResourceNotFoundException{Message: aws.String("no table")}
		store := NewStore(api, "profiles", zap.NewNop())

		err := store.Connect(ctx)
		assert.True(t, pkgerrors.IsUnavailable(err))
		assert.False(t, store.Connected())
	})

	t.Run("Should fail on a table being created", func(t *testing.T) {
		api := newFakeAPI()
		api.status = types.TableStatusCreating
		store := NewStore(api, "profiles", zap.NewNop())

		assert.Error(t, store.Connect(ctx))
		assert.False(t, store.Connected())
	})

	t.Run("Should close idle connections once on Disconnect", func(t *testing.T) {
		closed := 0
		store := NewStore(newFakeAPI(), "profiles", zap.NewNop(), WithIdleConnectionCloser(func() { closed++ }))
		require.NoError(t, store.Connect(ctx))

		require.NoError(t, store.Disconnect(ctx))
		require.NoError(t, store.Disconnect(ctx))

		assert.Equal(t, 1, closed)
		assert.False(t, store.Connected())
	})
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	store := connectedStore(t, api)

	p, err := entities.NewProfile("Ada", "ada@example.com", "math", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, p))
	require.NotNil(t, api.lastPut)
	assert.Equal(t, "attribute_not_exists (#0)", aws.ToString(api.lastPut.ConditionExpression))
	assert.Equal(t, "PK", api.lastPut.ExpressionAttributeNames["#0"])

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Bio, got.Bio)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	assert.ErrorIs(t, store.Create(ctx, p), ports.ErrConflict)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return not found for unknown ids", func(t *testing.T) {
		store := connectedStore(t, newFakeAPI())

		_, err := store.GetByID(ctx, "abc123")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Should refuse operations after Disconnect", func(t *testing.T) {
		store := connectedStore(t, newFakeAPI())
		require.NoError(t, store.Disconnect(ctx))

		_, err := store.GetByID(ctx, "abc123")
		assert.ErrorIs(t, err, ports.ErrDatabaseClosed)
	})

	t.Run("Should wrap SDK failures as database errors", func(t *testing.T) {
		api := newFakeAPI()
		api.putErr = errors.New("connection reset")
		store := connectedStore(t, api)

		p, err := entities.NewProfile("Ada", "ada@example.com", "", time.Now())
		require.NoError(t, err)

		err = store.Create(ctx, p)
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
	})

	t.Run("Should reject items with malformed timestamps", func(t *testing.T) {
		api := newFakeAPI()
		store := connectedStore(t, api)

		p, err := entities.NewProfile("Ada", "ada@example.com", "", time.Now())
		require.NoError(t, err)
		require.NoError(t, store.Create(ctx, p))
		api.items["PROFILE#"+p.ID]["CreatedAt"] = &types.AttributeValueMemberS{Value: "yesterday"}

		got, err := store.GetByID(ctx, p.ID)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal))
		assert.Contains(t, err.Error(), "failed to parse profile timestamps")
	})

	t.Run("Should pass context cancellation through", func(t *testing.T) {
		api := newFakeAPI()
		api.putErr = context.Canceled
		store := connectedStore(t, api)

		p, err := entities.NewProfile("Ada", "ada@example.com", "", time.Now())
		require.NoError(t, err)

		assert.ErrorIs(t, store.Create(ctx, p), context.Canceled)
	})
}
