package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrPK = "PK"
	attrSK = "SK"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore maps collections onto one table: PK is the collection name and
// SK is the document id. Document fields are stored as top-level attributes.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// NewDynamoStoreFromConfig loads the default AWS config chain for region
// (and an optional shared profile).
func NewDynamoStoreFromConfig(ctx context.Context, table, region, profile string) (*DynamoStore, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewDynamoStore(dynamodb.NewFromConfig(cfg), table), nil
}

func (s *DynamoStore) key(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: collection},
		attrSK: &types.AttributeValueMemberS{Value: id},
	}
}

func (s *DynamoStore) Get(ctx context.Context, collection, id string, dst any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(collection, id),
	})
	if err != nil {
		return fmt.Errorf("store: get %s/%s from DynamoDB: %w", collection, id, err)
	}
	if out.Item == nil {
		return ErrNotFound
	}
	doc, err := itemToFields(out.Item)
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (s *DynamoStore) Set(ctx context.Context, collection, id string, doc any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	fields, err := toFields(doc)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return fmt.Errorf("store: marshaling %s/%s: %w", collection, id, err)
	}
	for k, v := range s.key(collection, id) {
		item[k] = v
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("store: put %s/%s to DynamoDB: %w", collection, id, err)
	}
	return nil
}

func (s *DynamoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	patch, err := toFields(fields)
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return nil
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		if k == attrPK || k == attrSK {
			return fmt.Errorf("%w: %s is reserved", ErrInvalidArgument, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	sets := make([]string, 0, len(keys))
	for i, k := range keys {
		av, err := attributevalue.Marshal(patch[k])
		if err != nil {
			return fmt.Errorf("store: marshaling field %s: %w", k, err)
		}
		n, v := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		names[n] = k
		values[v] = av
		sets = append(sets, n+" = "+v)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(collection, id),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(" + attrPK + ")"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("store: update %s/%s in DynamoDB: %w", collection, id, err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(collection, id),
		ConditionExpression: aws.String("attribute_exists(" + attrPK + ")"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("store: delete %s/%s from DynamoDB: %w", collection, id, err)
	}
	return nil
}

// Find queries the collection partition with equality filters pushed down as
// a FilterExpression. Ordering and limit are applied after all pages are read,
// since DynamoDB Limit counts items before filtering.
func (s *DynamoStore) Find(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, err
	}

	names := map[string]string{"#pk": attrPK}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: collection},
	}
	var filters []string
	for i, f := range q.Where {
		av, err := attributevalue.Marshal(normalize(f.Value))
		if err != nil {
			return nil, fmt.Errorf("store: marshaling filter %s: %w", f.Field, err)
		}
		n, v := fmt.Sprintf("#w%d", i), fmt.Sprintf(":w%d", i)
		names[n] = f.Field
		values[v] = av
		filters = append(filters, n+" = "+v)
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if len(filters) > 0 {
		in.FilterExpression = aws.String(strings.Join(filters, " AND "))
	}

	var docs []map[string]any
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("store: query %s in DynamoDB: %w", collection, err)
		}
		for _, item := range out.Items {
			doc, err := itemToFields(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	// Filters already ran server side; applyQuery re-checks them cheaply and
	// handles order and limit.
	return applyQuery(docs, q)
}

func itemToFields(item map[string]types.AttributeValue) (map[string]any, error) {
	var doc map[string]any
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("store: unmarshaling item: %w", err)
	}
	delete(doc, attrPK)
	delete(doc, attrSK)
	return doc, nil
}
