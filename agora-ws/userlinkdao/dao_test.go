package userlinkdao

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/tj/assert"
)

// withTable creates the table explicitly because of the ConnectionIndex GSI.
func withTable(t *testing.T, callback func(ctx context.Context, dao *DAO)) {
	var (
		s = session.Must(session.NewSession(aws.NewConfig().
			WithCredentials(credentials.NewStaticCredentials("blah", "blah", "")).
			WithEndpoint("http://localhost:8000").
			WithRegion("us-west-2")))
		api       = dynamodb.New(s)
		tableName = fmt.Sprintf("links-%v", time.Now().UnixNano())
		dao       = New(api, tableName)
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := api.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: aws.String("PAY_PER_REQUEST"),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: aws.String("S")},
			{AttributeName: aws.String("sk"), AttributeType: aws.String("S")},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: aws.String("HASH")},
			{AttributeName: aws.String("sk"), KeyType: aws.String("RANGE")},
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			{
				IndexName: aws.String("ConnectionIndex"),
				KeySchema: []*dynamodb.KeySchemaElement{
					{AttributeName: aws.String("sk"), KeyType: aws.String("HASH")},
				},
				Projection: &dynamodb.Projection{ProjectionType: aws.String("ALL")},
			},
		},
	})
	assert.Nil(t, err)
	defer api.DeleteTableWithContext(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(tableName)})

	callback(ctx, dao)
}

func TestDAO(t *testing.T) {
	withTable(t, func(ctx context.Context, dao *DAO) {
		now := time.Now()
		expires := now.Add(time.Hour)

		// user-1 holds two connections, user-2 one
		for _, link := range []Link{
			{UserID: "user-1", ConnectionID: "c1", CreatedAt: now.Unix(), TTL: expires.Unix()},
			{UserID: "user-1", ConnectionID: "c2", CreatedAt: now.Unix(), TTL: expires.Unix()},
			{UserID: "user-2", ConnectionID: "c3", CreatedAt: now.Unix(), TTL: expires.Unix()},
		} {
			err := dao.Put(ctx, link)
			assert.Nil(t, err)
		}

		ids, err := dao.ConnectionsForUser(ctx, "user-1")
		assert.Nil(t, err)
		sort.Strings(ids)
		assert.Equal(t, []string{"c1", "c2"}, ids)

		links, err := dao.ByConnection(ctx, "c1")
		assert.Nil(t, err)
		assert.Len(t, links, 1)
		assert.Equal(t, "user-1", links[0].UserID)

		err = dao.Delete(ctx, "user-1", "c1")
		assert.Nil(t, err)

		ids, err = dao.ConnectionsForUser(ctx, "user-1")
		assert.Nil(t, err)
		assert.Equal(t, []string{"c2"}, ids)

		all, err := dao.AllConnectionIDs(ctx)
		assert.Nil(t, err)
		sort.Strings(all)
		assert.Equal(t, []string{"c2", "c3"}, all)
	})
}

func TestDeleteByConnection(t *testing.T) {
	withTable(t, func(ctx context.Context, dao *DAO) {
		now := time.Now()
		expires := now.Add(time.Hour)
		err := dao.Put(ctx, Link{UserID: "user-1", ConnectionID: "c1", CreatedAt: now.Unix(), TTL: expires.Unix()})
		assert.Nil(t, err)
		err = dao.Put(ctx, Link{UserID: "user-1", ConnectionID: "c2", CreatedAt: now.Unix(), TTL: expires.Unix()})
		assert.Nil(t, err)

		err = dao.DeleteByConnection(ctx, "c1")
		assert.Nil(t, err)

		ids, err := dao.ConnectionsForUser(ctx, "user-1")
		assert.Nil(t, err)
		assert.Equal(t, []string{"c2"}, ids)

		// unknown connection is a no-op success
		err = dao.DeleteByConnection(ctx, "never-existed")
		assert.Nil(t, err)
	})
}

func TestExpiredLinksFiltered(t *testing.T) {
	withTable(t, func(ctx context.Context, dao *DAO) {
		now := time.Now()
		err := dao.Put(ctx, Link{UserID: "user-1", ConnectionID: "live", CreatedAt: now.Unix(), TTL: now.Add(time.Hour).Unix()})
		assert.Nil(t, err)
		err = dao.Put(ctx, Link{UserID: "user-1", ConnectionID: "stale", CreatedAt: now.Unix(), TTL: now.Add(-time.Hour).Unix()})
		assert.Nil(t, err)

		ids, err := dao.ConnectionsForUser(ctx, "user-1")
		assert.Nil(t, err)
		assert.Equal(t, []string{"live"}, ids)
	})
}
