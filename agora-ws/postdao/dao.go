package postdao

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO provides read access to the posts table for the sync engine.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new posts DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Post{}),
		api:       api,
		tableName: tableName,
	}
}

// Put stores a post record. Exposed for the CRUD layer and tests.
func (d *DAO) Put(ctx context.Context, post Post) error {
	return d.table.Put(post).RunWithContext(ctx)
}

// Get retrieves a post by id.
func (d *DAO) Get(ctx context.Context, postID string) (*Post, error) {
	var post Post
	if err := d.table.Get(postID).ScanWithContext(ctx, &post); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, fmt.Errorf("post %v not found", postID)
		}
		return nil, fmt.Errorf("failed to get post %v: %w", postID, err)
	}
	return &post, nil
}

// CreatedSince returns the posts in a discussion whose creation timestamp is
// strictly newer than the watermark.
func (d *DAO) CreatedSince(ctx context.Context, discussionID string, since time.Time) ([]Post, error) {
	posts, err := d.byDiscussion(ctx, discussionID, "created_at > :since", since)
	if err != nil {
		return nil, err
	}

	var matched []Post
	for _, post := range posts {
		if post.CreatedTime().After(since) {
			matched = append(matched, post)
		}
	}
	return matched, nil
}

// EditedSince returns the posts in a discussion whose last-update timestamp
// is strictly newer than the watermark and differs from the creation
// timestamp, i.e. an edit rather than a fresh create.
func (d *DAO) EditedSince(ctx context.Context, discussionID string, since time.Time) ([]Post, error) {
	posts, err := d.byDiscussion(ctx, discussionID, "updated_at > :since AND updated_at <> created_at", since)
	if err != nil {
		return nil, err
	}

	var matched []Post
	for _, post := range posts {
		if post.Edited() && post.UpdatedTime().After(since) {
			matched = append(matched, post)
		}
	}
	return matched, nil
}

// byDiscussion queries the DiscussionIndex with the watermark bound pushed
// into a filter expression, so the read stays proportional to the missed
// window rather than the discussion's full history. The watermark is floored
// to whole milliseconds, hence the callers' strict re-check.
func (d *DAO) byDiscussion(ctx context.Context, discussionID, filter string, since time.Time) ([]Post, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String("DiscussionIndex"),
		KeyConditionExpression: aws.String("discussion_id = :discussion_id"),
		FilterExpression:       aws.String(filter),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":discussion_id": {S: aws.String(discussionID)},
			":since":         {N: aws.String(strconv.FormatInt(since.UnixMilli(), 10))},
		},
	}

	var posts []Post
	err := d.api.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		for _, item := range page.Items {
			var post Post
			if err := dynamodbattribute.UnmarshalMap(item, &post); err == nil {
				posts = append(posts, post)
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query posts for discussion %v: %w", discussionID, err)
	}
	return posts, nil
}
