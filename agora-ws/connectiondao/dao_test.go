package connectiondao

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/savaki/ddb"
	"github.com/tj/assert"
)

func withTable(t *testing.T, callback func(ctx context.Context, dao *DAO)) {
	var (
		s = session.Must(session.NewSession(aws.NewConfig().
			WithCredentials(credentials.NewStaticCredentials("blah", "blah", "")).
			WithEndpoint("http://localhost:8000").
			WithRegion("us-west-2")))
		api       = dynamodb.New(s)
		client    = ddb.New(api)
		tableName = fmt.Sprintf("connections-%v", time.Now().UnixNano())
		table     = client.MustTable(tableName, Connection{})
		dao       = New(api, tableName)
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := table.CreateTableIfNotExists(ctx)
	assert.Nil(t, err)
	defer table.DeleteTableIfExists(ctx)

	callback(ctx, dao)
}

func TestDAO(t *testing.T) {
	withTable(t, func(ctx context.Context, dao *DAO) {
		now := time.Now()
		conn := Connection{
			ConnectionID: "c1",
			Endpoint:     "https://ws.example.com/test",
			UserID:       "user-1",
			ConnectedAt:  now.Unix(),
			LastSeen:     now.Unix(),
			TTL:          now.Add(24 * time.Hour).Unix(),
		}

		err := dao.Put(ctx, conn)
		assert.Nil(t, err)

		found, err := dao.Get(ctx, "c1")
		assert.Nil(t, err)
		assert.Equal(t, conn, *found)

		// Touch refreshes the activity watermark only
		later := now.Add(5 * time.Minute)
		err = dao.Touch(ctx, "c1", later)
		assert.Nil(t, err)

		found, err = dao.Get(ctx, "c1")
		assert.Nil(t, err)
		assert.Equal(t, later.Unix(), found.LastSeen)
		assert.Equal(t, conn.ConnectedAt, found.ConnectedAt)
		assert.Equal(t, conn.UserID, found.UserID)

		err = dao.Delete(ctx, "c1")
		assert.Nil(t, err)

		_, err = dao.Get(ctx, "c1")
		assert.True(t, errors.Is(err, ErrNotFound))

		// deleting again is a no-op success
		err = dao.Delete(ctx, "c1")
		assert.Nil(t, err)
	})
}

func TestTouchMissing(t *testing.T) {
	withTable(t, func(ctx context.Context, dao *DAO) {
		// touching a record that never existed must not create one
		err := dao.Touch(ctx, "never-existed", time.Now())
		assert.Nil(t, err)

		_, err = dao.Get(ctx, "never-existed")
		assert.True(t, errors.Is(err, ErrNotFound))

		// same for a record deleted out from under the touch
		now := time.Now()
		err = dao.Put(ctx, Connection{
			ConnectionID: "c-reaped",
			Endpoint:     "https://ws.example.com/test",
			ConnectedAt:  now.Unix(),
			LastSeen:     now.Unix(),
			TTL:          now.Add(24 * time.Hour).Unix(),
		})
		assert.Nil(t, err)
		err = dao.Delete(ctx, "c-reaped")
		assert.Nil(t, err)

		err = dao.Touch(ctx, "c-reaped", now.Add(time.Minute))
		assert.Nil(t, err)

		_, err = dao.Get(ctx, "c-reaped")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestGetExpired(t *testing.T) {
	withTable(t, func(ctx context.Context, dao *DAO) {
		now := time.Now()
		err := dao.Put(ctx, Connection{
			ConnectionID: "stale",
			Endpoint:     "https://ws.example.com/test",
			ConnectedAt:  now.Add(-48 * time.Hour).Unix(),
			LastSeen:     now.Add(-25 * time.Hour).Unix(),
			TTL:          now.Add(-time.Hour).Unix(),
		})
		assert.Nil(t, err)

		// the record physically exists but reads as absent
		_, err = dao.Get(ctx, "stale")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestGetMissing(t *testing.T) {
	withTable(t, func(ctx context.Context, dao *DAO) {
		_, err := dao.Get(ctx, "never-existed")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, Connection{TTL: 0}.Expired(now))
	assert.False(t, Connection{TTL: now.Add(time.Hour).Unix()}.Expired(now))
	assert.True(t, Connection{TTL: now.Add(-time.Hour).Unix()}.Expired(now))
	assert.True(t, Connection{TTL: now.Unix()}.Expired(now))
}
