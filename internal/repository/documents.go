package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrInvalidFilter = errors.New("invalid filter")
)

// Document is a schemaless catalog record as stored in MongoDB.
type Document = bson.M

type InsertResult struct {
	InsertedID any `json:"insertedId"`
}

type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// DocumentRepository is generic CRUD over named collections. Collection names
// are trusted; callers whitelist them.
type DocumentRepository struct {
	db *mongo.Database
}

func NewDocumentRepository(db *mongo.Database) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// List returns every document whose fields equal the filter values. Filter
// keys must be plain top-level field names; operators and dotted paths are
// refused.
func (r *DocumentRepository) List(ctx context.Context, collection string, filter map[string]any) ([]Document, error) {
	f, err := equalityFilter(filter)
	if err != nil {
		return nil, err
	}

	cur, err := r.db.Collection(collection).Find(ctx, f, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	docs := []Document{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return docs, nil
}

func equalityFilter(filter map[string]any) (bson.M, error) {
	f := bson.M{}
	for k, v := range filter {
		if k == "" || strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidFilter, k)
		}
		f[k] = v
	}
	return f, nil
}

func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	err := r.db.Collection(collection).FindOne(ctx, idFilter(id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (r *DocumentRepository) Insert(ctx context.Context, collection string, doc map[string]any) (InsertResult, error) {
	d := bson.M{}
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		d[k] = v
	}

	res, err := r.db.Collection(collection).InsertOne(ctx, d)
	if err != nil {
		return InsertResult{}, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return InsertResult{InsertedID: res.InsertedID}, nil
}

// Update sets the given fields; fields not mentioned are left untouched.
func (r *DocumentRepository) Update(ctx context.Context, collection, id string, fields map[string]any) (UpdateResult, error) {
	set := bson.M{}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		set[k] = v
	}
	if len(set) == 0 {
		return UpdateResult{}, nil
	}

	res, err := r.db.Collection(collection).UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) (DeleteResult, error) {
	res, err := r.db.Collection(collection).DeleteOne(ctx, idFilter(id))
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (r *DocumentRepository) CreateIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		"orders": {
			{Keys: bson.D{{Key: "email", Value: 1}}},
			{Keys: bson.D{{Key: "transactionId", Value: 1}}},
		},
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// idFilter matches ObjectID ids and falls back to plain string ids for
// documents imported with their own keys.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": id}
}
