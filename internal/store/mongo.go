package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore maps each collection onto a MongoDB collection keyed by _id.
// Batches run inside a session transaction, which needs a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBSON(doc)
}

func (s *MongoStore) Query(ctx context.Context, collection string, filter Filter, opts ...QueryOption) ([]json.RawMessage, error) {
	o := collectOptions(opts)
	sortKeys := bson.D{{Key: "_id", Value: 1}}
	if o.SortField != "" {
		dir := 1
		if o.Descending {
			dir = -1
		}
		sortKeys = bson.D{{Key: o.SortField, Value: dir}, {Key: "_id", Value: 1}}
	}
	findOpts := options.Find().SetSort(sortKeys)
	if o.Limit > 0 {
		findOpts.SetLimit(int64(o.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, mongoFilter(filter), findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []json.RawMessage
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		raw, err := fromBSON(doc)
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw)
	}
	return docs, cursor.Err()
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.update(ctx, collection, id, fields, nil)
}

func (s *MongoStore) AtomicBatch(ctx context.Context, ops []WriteOp) error {
	for _, op := range ops {
		if err := op.validate(); err != nil {
			return err
		}
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, op := range ops {
			if err := s.apply(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("batch transaction failed: %w", err)
	}
	return nil
}

func (s *MongoStore) apply(ctx context.Context, op WriteOp) error {
	coll := s.db.Collection(op.Collection)
	switch op.Kind {
	case WriteSet:
		doc, err := encodeDoc(op.ID, op.Doc)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", op.Collection, op.ID, err)
		}
		m, err := toBSON(doc)
		if err != nil {
			return err
		}
		m["_id"] = op.ID
		_, err = coll.ReplaceOne(ctx, bson.M{"_id": op.ID}, m, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to write %s/%s: %w", op.Collection, op.ID, err)
		}
	case WriteUpdate:
		return s.update(ctx, op.Collection, op.ID, op.Fields, op.Guard)
	case WriteDelete:
		if _, err := coll.DeleteOne(ctx, bson.M{"_id": op.ID}); err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", op.Collection, op.ID, err)
		}
	}
	return nil
}

func (s *MongoStore) update(ctx context.Context, collection, id string, fields map[string]any, guard *Condition) error {
	if len(fields) == 0 {
		return ErrInvalidWrite
	}
	normalized, err := normalizeFields(fields)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	set, err := toBSON(raw)
	if err != nil {
		return err
	}

	coll := s.db.Collection(collection)
	selector := bson.M{"_id": id}
	if guard != nil {
		if guard.Value == "" {
			selector[guard.Field] = bson.M{"$in": bson.A{nil, ""}}
		} else {
			selector[guard.Field] = guard.Value
		}
	}

	res, err := coll.UpdateOne(ctx, selector, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if guard == nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	return fmt.Errorf("update %s/%s: %w", collection, id, ErrConflict)
}

// mongoFilter uses $elemMatch for Contains so a scalar field never
// satisfies an array condition.
func mongoFilter(filter Filter) bson.M {
	m := bson.M{}
	and := bson.A{}
	for _, c := range filter {
		switch c.Op {
		case OpEq:
			and = append(and, bson.M{c.Field: c.Value})
		case OpContains:
			and = append(and, bson.M{c.Field: bson.M{"$elemMatch": bson.M{"$eq": c.Value}}})
		}
	}
	if len(and) > 0 {
		m["$and"] = and
	}
	return m
}

func toBSON(raw json.RawMessage) (bson.M, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &m); err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}
	return m, nil
}

func fromBSON(doc bson.M) (json.RawMessage, error) {
	delete(doc, "_id")
	raw, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}
	return raw, nil
}
