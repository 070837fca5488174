package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/google/uuid"

	"jobsync/internal/model"
)

// DynamoConfig locates the DynamoDB tables. Endpoint is set for DynamoDB Local.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string
}

// Dynamo keeps postings in <Table> keyed by fingerprint, state in
// <Table>_state and the audit log in <Table>_logs. Inserts are conditional
// puts on attribute_not_exists(fingerprint). Queries scan and filter in
// process, which is fine for the tens of thousands of rows a job feed holds.
type Dynamo struct {
	client     dynamodbiface.DynamoDBAPI
	table      string
	stateTable string
	logTable   string
}

// NewDynamo creates the session and ensures all three tables exist.
func NewDynamo(ctx context.Context, cfg DynamoConfig) (*Dynamo, error) {
	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}

	d := newDynamo(dynamodb.New(sess), cfg.Table)
	for table, key := range map[string]string{
		d.table:      "fingerprint",
		d.stateTable: "key",
		d.logTable:   "id",
	} {
		if err := d.ensureTable(ctx, table, key); err != nil {
			return nil, unavailable("ensure table "+table, err)
		}
	}
	return d, nil
}

func newDynamo(client dynamodbiface.DynamoDBAPI, table string) *Dynamo {
	return &Dynamo{
		client:     client,
		table:      table,
		stateTable: table + "_state",
		logTable:   table + "_logs",
	}
}

func (d *Dynamo) ensureTable(ctx context.Context, table, hashKey string) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != dynamodb.ErrCodeResourceNotFoundException {
		return err
	}

	_, err = d.client.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: aws.String("HASH")},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: aws.String("S")},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	})
	if err != nil {
		return err
	}
	return d.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
}

func (d *Dynamo) InsertIfAbsent(ctx context.Context, p *model.Posting) (bool, error) {
	doc := *p
	doc.IsNew = true
	doc.AppliedAt = nil
	item, err := dynamodbattribute.MarshalMap(doc)
	if err != nil {
		return false, fmt.Errorf("marshal posting: %w", err)
	}
	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(fingerprint)"),
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("insert posting", err)
	}
	return true, nil
}

func isConditionFailed(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

// scan reads every posting matching the optional filter expression.
func (d *Dynamo) scan(ctx context.Context, in *dynamodb.ScanInput) ([]model.Posting, error) {
	in.TableName = aws.String(d.table)
	var (
		out    []model.Posting
		decErr error
	)
	err := d.client.ScanPagesWithContext(ctx, in, func(page *dynamodb.ScanOutput, _ bool) bool {
		var batch []model.Posting
		if decErr = dynamodbattribute.UnmarshalListOfMaps(page.Items, &batch); decErr != nil {
			return false
		}
		out = append(out, batch...)
		return true
	})
	if err != nil {
		return nil, unavailable("scan postings", err)
	}
	if decErr != nil {
		return nil, fmt.Errorf("unmarshal postings: %w", decErr)
	}
	return out, nil
}

func (d *Dynamo) ResetFreshness(ctx context.Context) (int64, error) {
	fresh, err := d.scan(ctx, &dynamodb.ScanInput{
		FilterExpression:          aws.String("is_new = :t"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":t": {BOOL: aws.Bool(true)}},
	})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, p := range fresh {
		_, err := d.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(d.table),
			Key:                       map[string]*dynamodb.AttributeValue{"fingerprint": {S: aws.String(p.Fingerprint)}},
			UpdateExpression:          aws.String("SET is_new = :f"),
			ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":f": {BOOL: aws.Bool(false)}},
		})
		if err != nil {
			return n, unavailable("reset freshness", err)
		}
		n++
	}
	return n, nil
}

func (d *Dynamo) Query(ctx context.Context, f Filter, page, pageSize int) ([]model.Posting, int, error) {
	all, err := d.scan(ctx, &dynamodb.ScanInput{})
	if err != nil {
		return nil, 0, err
	}
	items, total := FilterSortPage(all, f, page, pageSize)
	return items, total, nil
}

func (d *Dynamo) Stats(ctx context.Context) (model.Stats, error) {
	all, err := d.scan(ctx, &dynamodb.ScanInput{})
	if err != nil {
		return model.Stats{}, err
	}
	return ComputeStats(all), nil
}

func (d *Dynamo) GetByID(ctx context.Context, id string) (*model.Posting, error) {
	found, err := d.scan(ctx, &dynamodb.ScanInput{
		FilterExpression:          aws.String("#id = :id"),
		ExpressionAttributeNames:  map[string]*string{"#id": aws.String("id")},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":id": {S: aws.String(id)}},
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (d *Dynamo) SetApplied(ctx context.Context, id string, at *time.Time) error {
	p, err := d.GetByID(ctx, id)
	if err != nil {
		return err
	}
	in := &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              map[string]*dynamodb.AttributeValue{"fingerprint": {S: aws.String(p.Fingerprint)}},
		UpdateExpression: aws.String("REMOVE applied_at"),
	}
	if at != nil {
		v, err := dynamodbattribute.Marshal(at.UTC())
		if err != nil {
			return fmt.Errorf("marshal applied_at: %w", err)
		}
		in.UpdateExpression = aws.String("SET applied_at = :a")
		in.ExpressionAttributeValues = map[string]*dynamodb.AttributeValue{":a": v}
	}
	if _, err := d.client.UpdateItemWithContext(ctx, in); err != nil {
		return unavailable("set applied", err)
	}
	return nil
}

func (d *Dynamo) GetState(ctx context.Context, key string) (string, bool, error) {
	out, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.stateTable),
		Key:       map[string]*dynamodb.AttributeValue{"key": {S: aws.String(key)}},
	})
	if err != nil {
		return "", false, unavailable("get state", err)
	}
	if out.Item == nil || out.Item["value"] == nil || out.Item["value"].S == nil {
		return "", false, nil
	}
	return *out.Item["value"].S, true, nil
}

func (d *Dynamo) SetState(ctx context.Context, key, value string) error {
	return d.SetStates(ctx, map[string]string{key: value})
}

// SetStates writes all keys in a single TransactWriteItems call.
func (d *Dynamo) SetStates(ctx context.Context, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	items := make([]*dynamodb.TransactWriteItem, 0, len(kv))
	for k, v := range kv {
		items = append(items, &dynamodb.TransactWriteItem{
			Put: &dynamodb.Put{
				TableName: aws.String(d.stateTable),
				Item: map[string]*dynamodb.AttributeValue{
					"key":   {S: aws.String(k)},
					"value": {S: aws.String(v)},
				},
			},
		})
	}
	if _, err := d.client.TransactWriteItemsWithContext(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return unavailable("set state", err)
	}
	return nil
}

func (d *Dynamo) AppendLog(ctx context.Context, e model.ScrapeLogEntry) error {
	item, err := dynamodbattribute.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	item["id"] = &dynamodb.AttributeValue{S: aws.String(uuid.NewString())}
	if _, err := d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.logTable),
		Item:      item,
	}); err != nil {
		return unavailable("append log", err)
	}
	return nil
}

func (d *Dynamo) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	if err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connection to release.
func (d *Dynamo) Close() error { return nil }
