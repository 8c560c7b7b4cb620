// Package mongostore keeps questions in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/gokatarajesh/dsa-logbook/internal/question"
)

const collectionName = "questions"

type questionDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	QuestionNumber int                `bson:"questionNumber"`
	Title          string             `bson:"title"`
	Status         string             `bson:"status"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func (d questionDoc) toDomain() question.Question {
	return question.Question{
		ID:             d.ID.Hex(),
		QuestionNumber: d.QuestionNumber,
		Title:          d.Title,
		Status:         question.Status(d.Status),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

// Store implements question.Store on a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ question.Store = (*Store)(nil)

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collectionName),
	}
}

// EnsureIndexes creates the unique questionNumber index and the listing index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "questionNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("questionNumber_unique"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("status_createdAt"),
		},
	})
	return err
}

func (s *Store) Count(ctx context.Context, filter question.Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, buildFilter(filter))
}

func (s *Store) Find(ctx context.Context, filter question.Filter, skip, limit int) ([]question.Question, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []questionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]question.Question, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) ExistsByNumber(ctx context.Context, number int) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"questionNumber": number}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Insert(ctx context.Context, q question.Question) (question.Question, error) {
	doc := newDoc(q)
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return question.Question{}, fmt.Errorf("%w: number %d", question.ErrConflict, q.QuestionNumber)
		}
		return question.Question{}, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return doc.toDomain(), nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status question.Status, at time.Time) (question.Question, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return question.Question{}, fmt.Errorf("%w: invalid question id", question.ErrInvalidInput)
	}

	update := bson.M{"$set": bson.M{"status": string(status), "updatedAt": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc questionDoc
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return question.Question{}, question.ErrNotFound
		}
		return question.Question{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// newDoc truncates timestamps to the millisecond precision BSON dates keep,
// so the returned record matches later reads.
func newDoc(q question.Question) questionDoc {
	return questionDoc{
		QuestionNumber: q.QuestionNumber,
		Title:          q.Title,
		Status:         string(q.Status),
		CreatedAt:      q.CreatedAt.UTC().Truncate(time.Millisecond),
		UpdatedAt:      q.UpdatedAt.UTC().Truncate(time.Millisecond),
	}
}

// buildFilter translates the domain filter into a query document. Search text
// is matched literally.
func buildFilter(filter question.Filter) bson.M {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}
	if filter.Search != nil {
		query["$or"] = bson.A{
			bson.M{"questionNumber": filter.Search.Number},
			bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search.Text), Options: "i"}},
		}
	}
	return query
}
