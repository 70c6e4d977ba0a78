package userlinkdao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO provides access to the user-connection links table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new links DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Link{}),
		api:       api,
		tableName: tableName,
	}
}

// Put stores a link record.
func (d *DAO) Put(ctx context.Context, link Link) error {
	return d.table.Put(link).RunWithContext(ctx)
}

// Delete removes a single link record. Absent records are a no-op success.
func (d *DAO) Delete(ctx context.Context, userID, connectionID string) error {
	return d.table.Delete(userID).Range(connectionID).RunWithContext(ctx)
}

// ConnectionsForUser returns the ids of every live connection linked to the
// user. Expired links are filtered out.
func (d *DAO) ConnectionsForUser(ctx context.Context, userID string) ([]string, error) {
	var links []Link
	err := d.table.Query("#UserID = ?", userID).
		FindAllWithContext(ctx, &links)
	if err != nil {
		return nil, fmt.Errorf("failed to query links for user %v: %w", userID, err)
	}

	now := time.Now()
	var ids []string
	for _, link := range links {
		if link.Expired(now) {
			continue
		}
		ids = append(ids, link.ConnectionID)
	}
	return ids, nil
}

// ByConnection returns all links referencing a connection, via the
// ConnectionIndex GSI.
func (d *DAO) ByConnection(ctx context.Context, connectionID string) ([]Link, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String("ConnectionIndex"),
		KeyConditionExpression: aws.String("sk = :sk"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":sk": {S: aws.String(connectionID)},
		},
	}

	var links []Link
	err := d.api.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		for _, item := range page.Items {
			var link Link
			if err := dynamodbattribute.UnmarshalMap(item, &link); err == nil {
				links = append(links, link)
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query links for connection %v: %w", connectionID, err)
	}
	return links, nil
}

// DeleteByConnection removes every link referencing the connection. A
// connection normally has zero or one link, so the deletes are issued
// directly rather than batched.
func (d *DAO) DeleteByConnection(ctx context.Context, connectionID string) error {
	links, err := d.ByConnection(ctx, connectionID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := d.Delete(ctx, link.UserID, link.ConnectionID); err != nil {
			return fmt.Errorf("failed to delete link %v/%v: %w", link.UserID, link.ConnectionID, err)
		}
	}
	return nil
}

// AllConnectionIDs scans the table and returns the distinct connection ids
// referenced by any link. Used by the scheduled orphan sweep.
func (d *DAO) AllConnectionIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	input := &dynamodb.ScanInput{
		TableName:            aws.String(d.tableName),
		ProjectionExpression: aws.String("sk"),
	}
	err := d.api.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			if v := item["sk"]; v != nil && v.S != nil {
				seen[*v.S] = true
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan links: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}
