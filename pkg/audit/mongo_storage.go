package audit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStorage keeps audit entries in a MongoDB collection.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage wraps coll. Call EnsureIndexes once at startup.
func NewMongoStorage(coll *mongo.Collection) (*MongoStorage, error) {
	if coll == nil {
		return nil, ErrStorageNil
	}
	return &MongoStorage{coll: coll}, nil
}

// EnsureIndexes creates the indexes Query and DeleteBefore rely on.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email_id", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, fmt.Errorf("create indexes: %w", err))
	}
	return nil
}

func (s *MongoStorage) Store(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]Entry, len(entries))
	copy(docs, entries)
	if _, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return wrapMongoError(err)
	}
	return nil
}

func (s *MongoStorage) Query(ctx context.Context, f Filter) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.coll.Find(ctx, buildQuery(f), opts)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	var out []Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrapMongoError(err)
	}
	return out, nil
}

func (s *MongoStorage) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, buildQuery(f))
	if err != nil {
		return 0, wrapMongoError(err)
	}
	return n, nil
}

func (s *MongoStorage) Last(ctx context.Context) (*Entry, error) {
	var e Entry
	err := s.coll.FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapMongoError(err)
	}
	return &e, nil
}

func (s *MongoStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: cutoff}}}})
	if err != nil {
		return 0, wrapMongoError(err)
	}
	return res.DeletedCount, nil
}

// buildQuery translates f into a MongoDB filter document.
func buildQuery(f Filter) bson.D {
	q := bson.D{}
	if f.EmailID != uuid.Nil {
		q = append(q, bson.E{Key: "email_id", Value: f.EmailID})
	}
	if len(f.Statuses) > 0 {
		q = append(q, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: f.Statuses}}})
	}
	if f.Recipient != "" {
		q = append(q, bson.E{Key: "recipients", Value: normalizeRecipient(f.Recipient)})
	}
	if f.Actor != "" {
		q = append(q, bson.E{Key: "actor", Value: f.Actor})
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		rng := bson.D{}
		if !f.Since.IsZero() {
			rng = append(rng, bson.E{Key: "$gte", Value: f.Since})
		}
		if !f.Until.IsZero() {
			rng = append(rng, bson.E{Key: "$lt", Value: f.Until})
		}
		q = append(q, bson.E{Key: "timestamp", Value: rng})
	}
	if f.Search != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q = append(q, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "subject", Value: re}},
			bson.D{{Key: "message", Value: re}},
			bson.D{{Key: "error_details", Value: re}},
		}})
	}
	return q
}

func wrapMongoError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return errors.Join(ErrStorageTimeout, err)
	}
	return errors.Join(ErrStorageNotAvailable, err)
}
