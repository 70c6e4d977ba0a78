package connectiondao

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// ErrNotFound indicates the connection record is absent or expired.
var ErrNotFound = errors.New("connection not found")

// DAO provides access to the WebSocket connections table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Connection{}),
		api:       api,
		tableName: tableName,
	}
}

// Put stores a connection record, overwriting any existing record with the
// same id.
func (d *DAO) Put(ctx context.Context, conn Connection) error {
	return d.table.Put(conn).RunWithContext(ctx)
}

// Get retrieves a connection record by id. Expired records are reported as
// ErrNotFound.
func (d *DAO) Get(ctx context.Context, connectionID string) (*Connection, error) {
	var conn Connection
	if err := d.table.Get(connectionID).ScanWithContext(ctx, &conn); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, fmt.Errorf("connection %v: %w", connectionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get connection %v: %w", connectionID, err)
	}
	if conn.Expired(time.Now()) {
		return nil, fmt.Errorf("connection %v expired: %w", connectionID, ErrNotFound)
	}
	return &conn, nil
}

// Touch refreshes the last-activity timestamp of a connection. A connection
// whose record is already gone is left gone; the conditional write prevents
// the update from resurrecting a reaped record as a phantom item.
func (d *DAO) Touch(ctx context.Context, connectionID string, at time.Time) error {
	_, err := d.api.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"pk": {S: aws.String(connectionID)},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
		UpdateExpression:    aws.String("SET last_seen = :last_seen"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":last_seen": {N: aws.String(strconv.FormatInt(at.Unix(), 10))},
		},
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return nil
		}
		return fmt.Errorf("failed to touch connection %v: %w", connectionID, err)
	}
	return nil
}

// Delete removes a connection record by id. Deleting an absent record is a
// no-op success.
func (d *DAO) Delete(ctx context.Context, connectionID string) error {
	return d.table.Delete(connectionID).RunWithContext(ctx)
}
