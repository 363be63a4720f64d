// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dynamo implements rbacstore.Adapter against a single DynamoDB
// table using the PI/SI naming convention from pkg/nameenc as partition and
// sort keys. Every DynamoDB-specific error (ConditionalCheckFailedException,
// TransactionCanceledException, ProvisionedThroughputExceededException) is
// translated to an *rbacstore.Error before returning to the caller; no AWS
// SDK error type crosses this package's boundary.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/coreiam/rbac-authzd/internal/logging"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

const (
	attrPI = "pi"
	attrSI = "si"
)

// Client defines the subset of *dynamodb.Client operations this adapter
// needs, so tests can inject a mock without depending on a live table.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Adapter is the DynamoDB-backed rbacstore.Adapter implementation.
type Adapter struct {
	client Client
	table  string
}

// New creates an Adapter against the named table using client for all
// operations.
func New(client Client, table string) *Adapter {
	return &Adapter{client: client, table: table}
}

var _ rbacstore.Adapter = (*Adapter)(nil)

func (a *Adapter) Get(ctx context.Context, pi, si string) (*rbacstore.Item, error) {
	out, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(a.table),
		Key: map[string]types.AttributeValue{
			attrPI: &types.AttributeValueMemberS{Value: pi},
			attrSI: &types.AttributeValueMemberS{Value: si},
		},
	})
	if err != nil {
		return nil, translateError(err)
	}
	if out.Item == nil {
		return nil, nil
	}

	item, err := unmarshalItem(out.Item)
	if err != nil {
		return nil, &rbacstore.Error{Code: rbacstore.ErrorCodeUnavailable, Message: "malformed item", Cause: err}
	}
	return item, nil
}

func (a *Adapter) Put(ctx context.Context, item rbacstore.Item, cond rbacstore.Condition) error {
	av, err := marshalItem(item)
	if err != nil {
		return &rbacstore.Error{Code: rbacstore.ErrorCodeUnavailable, Message: "marshal item", Cause: err}
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item:      av,
	}
	applyCondition(input, cond)

	if _, err := a.client.PutItem(ctx, input); err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if cond == rbacstore.ConditionMustExist && errors.As(err, &condFailed) {
			return &rbacstore.Error{Code: rbacstore.ErrorCodeNotFound, Cause: err}
		}
		return translateError(err)
	}
	return nil
}

func (a *Adapter) Query(ctx context.Context, pi, siPrefix string) rbacstore.QueryPaginator {
	return &pager{ctx: ctx, client: a.client, table: a.table, pi: pi, siPrefix: siPrefix, hasMore: true}
}

type pager struct {
	ctx      context.Context
	client   Client
	table    string
	pi       string
	siPrefix string
	lastKey  map[string]types.AttributeValue
	hasMore  bool
}

func (p *pager) HasMorePages() bool { return p.hasMore }

func (p *pager) NextPage(ctx context.Context) ([]rbacstore.Item, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(p.table),
		KeyConditionExpression: aws.String("#pi = :pi AND begins_with(#si, :siPrefix)"),
		ExpressionAttributeNames: map[string]string{
			"#pi": attrPI,
			"#si": attrSI,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pi":       &types.AttributeValueMemberS{Value: p.pi},
			":siPrefix": &types.AttributeValueMemberS{Value: p.siPrefix},
		},
		ExclusiveStartKey: p.lastKey,
	}

	out, err := p.client.Query(ctx, input)
	if err != nil {
		p.hasMore = false
		return nil, translateError(err)
	}

	items := make([]rbacstore.Item, 0, len(out.Items))
	for _, raw := range out.Items {
		item, err := unmarshalItem(raw)
		if err != nil {
			p.hasMore = false
			return nil, &rbacstore.Error{Code: rbacstore.ErrorCodeUnavailable, Message: "malformed item", Cause: err}
		}
		items = append(items, *item)
	}

	p.lastKey = out.LastEvaluatedKey
	p.hasMore = len(out.LastEvaluatedKey) > 0
	return items, nil
}

func (a *Adapter) Transact(ctx context.Context, ops []rbacstore.TransactOp) error {
	if len(ops) > rbacstore.MaxTransactItems {
		return &rbacstore.Error{Code: rbacstore.ErrorCodeTransactionTooLarge}
	}
	if len(ops) == 0 {
		return nil
	}

	items := make([]types.TransactWriteItem, 0, len(ops))
	for _, op := range ops {
		twi, err := transactWriteItem(a.table, op)
		if err != nil {
			return &rbacstore.Error{Code: rbacstore.ErrorCodeUnavailable, Message: "marshal transact op", Cause: err}
		}
		items = append(items, twi)
	}

	if _, err := a.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		logging.Debugf("dynamodb transact write failed: %v", err)
		return translateTransactError(err, ops)
	}
	return nil
}

func transactWriteItem(table string, op rbacstore.TransactOp) (types.TransactWriteItem, error) {
	switch op.Kind {
	case rbacstore.TransactPut:
		av, err := marshalItem(op.Item)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		put := &types.Put{TableName: aws.String(table), Item: av}
		applyPutCondition(put, op.Condition)
		return types.TransactWriteItem{Put: put}, nil

	case rbacstore.TransactDelete:
		del := &types.Delete{
			TableName: aws.String(table),
			Key: map[string]types.AttributeValue{
				attrPI: &types.AttributeValueMemberS{Value: op.PI},
				attrSI: &types.AttributeValueMemberS{Value: op.SI},
			},
		}
		return types.TransactWriteItem{Delete: del}, nil

	case rbacstore.TransactConditionCheck:
		check := &types.ConditionCheck{
			TableName: aws.String(table),
			Key: map[string]types.AttributeValue{
				attrPI: &types.AttributeValueMemberS{Value: op.PI},
				attrSI: &types.AttributeValueMemberS{Value: op.SI},
			},
		}
		applyConditionCheck(check, op.Condition)
		return types.TransactWriteItem{ConditionCheck: check}, nil

	default:
		return types.TransactWriteItem{}, fmt.Errorf("unknown transact op kind %d", op.Kind)
	}
}

func applyCondition(input *dynamodb.PutItemInput, cond rbacstore.Condition) {
	switch cond {
	case rbacstore.ConditionMustNotExist:
		input.ConditionExpression = aws.String("attribute_not_exists(#pi)")
		input.ExpressionAttributeNames = map[string]string{"#pi": attrPI}
	case rbacstore.ConditionMustExist:
		input.ConditionExpression = aws.String("attribute_exists(#pi)")
		input.ExpressionAttributeNames = map[string]string{"#pi": attrPI}
	case rbacstore.ConditionAny:
	}
}

func applyPutCondition(put *types.Put, cond rbacstore.Condition) {
	switch cond {
	case rbacstore.ConditionMustNotExist:
		put.ConditionExpression = aws.String("attribute_not_exists(#pi)")
		put.ExpressionAttributeNames = map[string]string{"#pi": attrPI}
	case rbacstore.ConditionMustExist:
		put.ConditionExpression = aws.String("attribute_exists(#pi)")
		put.ExpressionAttributeNames = map[string]string{"#pi": attrPI}
	case rbacstore.ConditionAny:
	}
}

func applyConditionCheck(check *types.ConditionCheck, cond rbacstore.Condition) {
	switch cond {
	case rbacstore.ConditionMustNotExist:
		check.ConditionExpression = aws.String("attribute_not_exists(#pi)")
		check.ExpressionAttributeNames = map[string]string{"#pi": attrPI}
	case rbacstore.ConditionMustExist:
		check.ConditionExpression = aws.String("attribute_exists(#pi)")
		check.ExpressionAttributeNames = map[string]string{"#pi": attrPI}
	case rbacstore.ConditionAny:
		check.ConditionExpression = aws.String("attribute_exists(#pi) OR attribute_not_exists(#pi)")
		check.ExpressionAttributeNames = map[string]string{"#pi": attrPI}
	}
}

type record struct {
	PI         string         `dynamodbav:"pi"`
	SI         string         `dynamodbav:"si"`
	Attributes map[string]any `dynamodbav:"attributes"`
}

func marshalItem(item rbacstore.Item) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(record{PI: item.PI, SI: item.SI, Attributes: item.Attributes})
}

func unmarshalItem(av map[string]types.AttributeValue) (*rbacstore.Item, error) {
	var r record
	if err := attributevalue.UnmarshalMap(av, &r); err != nil {
		return nil, err
	}
	return &rbacstore.Item{PI: r.PI, SI: r.SI, Attributes: r.Attributes}, nil
}

// translateTransactError maps a TransactWriteItems failure to the adapter's
// taxonomy. On TransactionCanceledException it inspects CancellationReasons
// to recover which op aborted the transaction and why, so the repository
// layer can distinguish a duplicate-create conflict (AlreadyExists) or a
// missing dependency (NotFound) from a generic abort (spec §4.3, §7) -- the
// same way the fake adapter synthesizes a nested *rbacstore.Error cause.
func translateTransactError(err error, ops []rbacstore.TransactOp) error {
	var txCanceled *types.TransactionCanceledException
	if errors.As(err, &txCanceled) {
		cause := conditionCheckCause(txCanceled, ops)
		if cause == nil {
			cause = err
		}
		return &rbacstore.Error{Code: rbacstore.ErrorCodeTransactionAborted, Cause: cause}
	}
	return translateError(err)
}

// conditionCheckCause scans txCanceled.CancellationReasons for the op whose
// condition check failed and maps it to AlreadyExists (a MustNotExist Put or
// ConditionCheck lost the race) or NotFound (a MustExist ConditionCheck
// target was missing). Reasons line up with ops by index, per the
// TransactWriteItems contract. Returns nil if no reason was a condition
// failure.
func conditionCheckCause(txCanceled *types.TransactionCanceledException, ops []rbacstore.TransactOp) error {
	for i, reason := range txCanceled.CancellationReasons {
		if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" || i >= len(ops) {
			continue
		}
		switch ops[i].Condition {
		case rbacstore.ConditionMustNotExist:
			return &rbacstore.Error{Code: rbacstore.ErrorCodeAlreadyExists}
		case rbacstore.ConditionMustExist:
			return &rbacstore.Error{Code: rbacstore.ErrorCodeNotFound}
		}
	}
	return nil
}

// translateError maps DynamoDB-specific error types to the adapter's own
// taxonomy. Nothing that crosses this function's return leaks an AWS SDK
// error type.
func translateError(err error) error {
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return &rbacstore.Error{Code: rbacstore.ErrorCodeAlreadyExists, Cause: err}
	}

	var txCanceled *types.TransactionCanceledException
	if errors.As(err, &txCanceled) {
		return &rbacstore.Error{Code: rbacstore.ErrorCodeTransactionAborted, Cause: err}
	}

	var throughputExceeded *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughputExceeded) {
		return &rbacstore.Error{Code: rbacstore.ErrorCodeUnavailable, Cause: err}
	}

	var unavailable *types.InternalServerError
	if errors.As(err, &unavailable) {
		return &rbacstore.Error{Code: rbacstore.ErrorCodeUnavailable, Cause: err}
	}

	return &rbacstore.Error{Code: rbacstore.ErrorCodeUnavailable, Message: "dynamodb request failed", Cause: err}
}
