// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dynamo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore/dynamo"
)

type fakeClient struct {
	getItemFn             func(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	putItemFn             func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	queryFn               func(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	transactWriteItemsFn  func(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItemFn(ctx, in, opts...)
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putItemFn(ctx, in, opts...)
}

func (f *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.queryFn(ctx, in, opts...)
}

func (f *fakeClient) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return f.transactWriteItemsFn(ctx, in, opts...)
}

func TestGetReturnsNilOnMissingItem(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		getItemFn: func(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{}, nil
		},
	}
	a := dynamo.New(client, "rbac")

	item, err := a.Get(context.Background(), "RESOURCE#", "RESOURCE#api://x")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestGetUnmarshalsItem(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		getItemFn: func(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
				"pi": &types.AttributeValueMemberS{Value: "RESOURCE#"},
				"si": &types.AttributeValueMemberS{Value: "RESOURCE#api://x"},
			}}, nil
		},
	}
	a := dynamo.New(client, "rbac")

	item, err := a.Get(context.Background(), "RESOURCE#", "RESOURCE#api://x")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "RESOURCE#api://x", item.SI)
}

func TestPutTranslatesConditionalCheckFailed(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		putItemFn: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		},
	}
	a := dynamo.New(client, "rbac")

	err := a.Put(context.Background(), rbacstore.Item{PI: "RESOURCE#", SI: "RESOURCE#api://x"}, rbacstore.ConditionMustNotExist)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rbacstore.ErrAlreadyExists))
}

func TestTransactTranslatesCanceled(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		transactWriteItemsFn: func(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, &types.TransactionCanceledException{Message: aws.String("canceled")}
		},
	}
	a := dynamo.New(client, "rbac")

	err := a.Transact(context.Background(), []rbacstore.TransactOp{
		{Kind: rbacstore.TransactDelete, PI: "RESOURCE#", SI: "RESOURCE#api://x"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rbacstore.ErrTransactionAborted))
}

func TestTransactCanceledRecoversAlreadyExistsCause(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		transactWriteItemsFn: func(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, &types.TransactionCanceledException{
				Message: aws.String("canceled"),
				CancellationReasons: []types.CancellationReason{
					{Code: aws.String("None")},
					{Code: aws.String("ConditionalCheckFailed")},
				},
			}
		},
	}
	a := dynamo.New(client, "rbac")

	err := a.Transact(context.Background(), []rbacstore.TransactOp{
		{Kind: rbacstore.TransactConditionCheck, PI: "RESOURCE#api://x", SI: "SCOPE#rbac", Condition: rbacstore.ConditionMustExist},
		{Kind: rbacstore.TransactPut, Item: rbacstore.Item{PI: "PRINCIPAL#alice", SI: "SCOPEASSIGNMENT#x"}, Condition: rbacstore.ConditionMustNotExist},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rbacstore.ErrTransactionAborted))

	var se *rbacstore.Error
	require.True(t, errors.As(err, &se))
	var cause *rbacstore.Error
	require.True(t, errors.As(se.Cause, &cause), "cause must be a nested *rbacstore.Error, not the raw AWS exception")
	assert.Equal(t, rbacstore.ErrorCodeAlreadyExists, cause.Code)
}

func TestTransactCanceledRecoversNotFoundCause(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		transactWriteItemsFn: func(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, &types.TransactionCanceledException{
				Message: aws.String("canceled"),
				CancellationReasons: []types.CancellationReason{
					{Code: aws.String("ConditionalCheckFailed")},
					{Code: aws.String("None")},
				},
			}
		},
	}
	a := dynamo.New(client, "rbac")

	err := a.Transact(context.Background(), []rbacstore.TransactOp{
		{Kind: rbacstore.TransactConditionCheck, PI: "RESOURCE#", SI: "RESOURCE#api://x", Condition: rbacstore.ConditionMustExist},
		{Kind: rbacstore.TransactPut, Item: rbacstore.Item{PI: "PRINCIPAL#alice", SI: "SCOPEASSIGNMENT#x"}, Condition: rbacstore.ConditionMustNotExist},
	})
	require.Error(t, err)

	var se *rbacstore.Error
	require.True(t, errors.As(err, &se))
	var cause *rbacstore.Error
	require.True(t, errors.As(se.Cause, &cause))
	assert.Equal(t, rbacstore.ErrorCodeNotFound, cause.Code)
}

func TestTransactCanceledWithoutConditionFailureKeepsRawCause(t *testing.T) {
	t.Parallel()

	raw := &types.TransactionCanceledException{
		Message: aws.String("canceled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ThrottlingError")},
		},
	}
	client := &fakeClient{
		transactWriteItemsFn: func(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, raw
		},
	}
	a := dynamo.New(client, "rbac")

	err := a.Transact(context.Background(), []rbacstore.TransactOp{
		{Kind: rbacstore.TransactDelete, PI: "RESOURCE#", SI: "RESOURCE#api://x"},
		{Kind: rbacstore.TransactDelete, PI: "RESOURCE#", SI: "RESOURCE#api://y"},
	})
	require.Error(t, err)

	var se *rbacstore.Error
	require.True(t, errors.As(err, &se))
	var cause *rbacstore.Error
	assert.False(t, errors.As(se.Cause, &cause), "no ConditionalCheckFailed reason means no synthesized cause")
	assert.Same(t, raw, se.Cause)
}

func TestTransactRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	a := dynamo.New(&fakeClient{}, "rbac")
	ops := make([]rbacstore.TransactOp, rbacstore.MaxTransactItems+1)
	err := a.Transact(context.Background(), ops)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rbacstore.ErrTransactionTooLarge))
}

func TestQueryPaginatesUntilLastEvaluatedKeyEmpty(t *testing.T) {
	t.Parallel()

	calls := 0
	client := &fakeClient{
		queryFn: func(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			calls++
			if calls == 1 {
				return &dynamodb.QueryOutput{
					Items: []map[string]types.AttributeValue{
						{"pi": &types.AttributeValueMemberS{Value: "RESOURCE#api://x"}, "si": &types.AttributeValueMemberS{Value: "SCOPE#a"}},
					},
					LastEvaluatedKey: map[string]types.AttributeValue{
						"pi": &types.AttributeValueMemberS{Value: "RESOURCE#api://x"},
						"si": &types.AttributeValueMemberS{Value: "SCOPE#a"},
					},
				}, nil
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					{"pi": &types.AttributeValueMemberS{Value: "RESOURCE#api://x"}, "si": &types.AttributeValueMemberS{Value: "SCOPE#b"}},
				},
			}, nil
		},
	}
	a := dynamo.New(client, "rbac")

	pager := a.Query(context.Background(), "RESOURCE#api://x", "SCOPE#")
	require.True(t, pager.HasMorePages())

	page1, err := pager.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page1, 1)
	assert.True(t, pager.HasMorePages())

	page2, err := pager.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.False(t, pager.HasMorePages())
	assert.Equal(t, 2, calls)
}
