package subscriptiondao

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO provides access to the discussion subscriptions table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new subscriptions DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Subscription{}),
		api:       api,
		tableName: tableName,
	}
}

// Join records the membership in both directions with a matching TTL.
// Re-joining an already-joined pair overwrites the records and is a no-op
// success.
func (d *DAO) Join(ctx context.Context, discussionID, connectionID, userID, endpoint string, expires time.Time) error {
	now := time.Now().Unix()

	forward := Subscription{
		HashKey:      TopicKey(discussionID),
		RangeKey:     ConnectionKey(connectionID),
		DiscussionID: discussionID,
		ConnectionID: connectionID,
		UserID:       userID,
		Endpoint:     endpoint,
		JoinedAt:     now,
		TTL:          expires.Unix(),
	}
	if err := d.table.Put(forward).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to join discussion %v for connection %v: %w", discussionID, connectionID, err)
	}

	reverse := forward
	reverse.HashKey, reverse.RangeKey = forward.RangeKey, forward.HashKey
	if err := d.table.Put(reverse).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to record reverse subscription for connection %v: %w", connectionID, err)
	}

	return nil
}

// Leave removes both directional records. Leaving a non-existent
// subscription is a no-op success.
func (d *DAO) Leave(ctx context.Context, discussionID, connectionID string) error {
	topicKey, connKey := TopicKey(discussionID), ConnectionKey(connectionID)

	if err := d.table.Delete(topicKey).Range(connKey).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to leave discussion %v for connection %v: %w", discussionID, connectionID, err)
	}
	if err := d.table.Delete(connKey).Range(topicKey).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to remove reverse subscription for connection %v: %w", connectionID, err)
	}
	return nil
}

// SubscribersOf returns the current fan-out list for a discussion. Expired
// records are treated as absent.
func (d *DAO) SubscribersOf(ctx context.Context, discussionID string) ([]Subscription, error) {
	return d.query(ctx, TopicKey(discussionID))
}

// TopicsForConnection returns every discussion the connection has joined.
func (d *DAO) TopicsForConnection(ctx context.Context, connectionID string) ([]Subscription, error) {
	return d.query(ctx, ConnectionKey(connectionID))
}

func (d *DAO) query(ctx context.Context, hashKey string) ([]Subscription, error) {
	var subs []Subscription
	err := d.table.Query("#HashKey = ?", hashKey).
		FindAllWithContext(ctx, &subs)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions for %v: %w", hashKey, err)
	}

	now := time.Now()
	live := subs[:0]
	for _, sub := range subs {
		if sub.Expired(now) {
			continue
		}
		live = append(live, sub)
	}
	return live, nil
}

// DeleteByConnection removes every subscription pair referencing the
// connection.
func (d *DAO) DeleteByConnection(ctx context.Context, connectionID string) error {
	subs, err := d.TopicsForConnection(ctx, connectionID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	// Two items per membership: the record we hold plus its mirror.
	type pair struct{ pk, sk string }
	keys := make([]pair, 0, len(subs)*2)
	for _, sub := range subs {
		keys = append(keys,
			pair{pk: sub.HashKey, sk: sub.RangeKey},
			pair{pk: sub.RangeKey, sk: sub.HashKey},
		)
	}

	// Batch delete in chunks of 25 (DynamoDB limit)
	const batchSize = 25
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[i:end]

		writeRequests := make([]*dynamodb.WriteRequest, len(chunk))
		for j, k := range chunk {
			key, err := dynamodbattribute.MarshalMap(map[string]string{"pk": k.pk, "sk": k.sk})
			if err != nil {
				return fmt.Errorf("failed to marshal key %v/%v: %w", k.pk, k.sk, err)
			}
			writeRequests[j] = &dynamodb.WriteRequest{
				DeleteRequest: &dynamodb.DeleteRequest{Key: key},
			}
		}

		unprocessed := map[string][]*dynamodb.WriteRequest{
			d.tableName: writeRequests,
		}

		const maxRetries = 5
		for attempt := 0; attempt < maxRetries; attempt++ {
			output, err := d.api.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: unprocessed,
			})
			if err != nil {
				return fmt.Errorf("failed to batch delete subscriptions for connection %v: %w", connectionID, err)
			}
			if len(output.UnprocessedItems) == 0 {
				break
			}
			unprocessed = output.UnprocessedItems
			if attempt < maxRetries-1 {
				backoff := time.Duration(1<<attempt) * 100 * time.Millisecond
				timer := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					return fmt.Errorf("context cancelled during retry for connection %v: %w", connectionID, ctx.Err())
				case <-timer.C:
				}
			} else {
				return fmt.Errorf("failed to delete all subscriptions for connection %v: %d items unprocessed after %d retries", connectionID, len(unprocessed[d.tableName]), maxRetries)
			}
		}
	}

	return nil
}

// Count returns the number of live subscribers for a discussion. Expired
// records are treated as absent, same as SubscribersOf; with a filter
// expression DynamoDB's Count is the post-filter count.
func (d *DAO) Count(ctx context.Context, discussionID string) (int64, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		FilterExpression:       aws.String("#ttl > :now"),
		ExpressionAttributeNames: map[string]*string{
			"#ttl": aws.String("ttl"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk":  {S: aws.String(TopicKey(discussionID))},
			":now": {N: aws.String(strconv.FormatInt(time.Now().Unix(), 10))},
		},
		Select: aws.String("COUNT"),
	}

	var count int64
	err := d.api.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		count += aws.Int64Value(page.Count)
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribers for discussion %v: %w", discussionID, err)
	}

	return count, nil
}

// AllConnectionIDs scans the connection-direction records and returns the
// distinct connection ids holding any subscription. Used by the scheduled
// orphan sweep.
func (d *DAO) AllConnectionIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	input := &dynamodb.ScanInput{
		TableName:                 aws.String(d.tableName),
		ProjectionExpression:      aws.String("pk"),
		FilterExpression:          aws.String("begins_with(pk, :prefix)"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":prefix": {S: aws.String("conn#")}},
	}
	err := d.api.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			if v := item["pk"]; v != nil && v.S != nil {
				seen[strings.TrimPrefix(*v.S, "conn#")] = true
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}
