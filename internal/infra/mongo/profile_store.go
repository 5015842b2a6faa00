// Package mongo stores user profile documents in a MongoDB users collection.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"skillscape/internal/domain"
)

// UsersCollection holds one document per uid, keyed by _id.
const UsersCollection = "users"

type ProfileStore struct {
	collection *mongo.Collection
}

func NewProfileStore(db *mongo.Database) *ProfileStore {
	return &ProfileStore{collection: db.Collection(UsersCollection)}
}

// EnsureIndexes creates the secondary indexes profile lookups rely on.
func (s *ProfileStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_1"),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	return nil
}

func (s *ProfileStore) GetProfile(ctx context.Context, uid string) (domain.UserProfile, error) {
	var profile domain.UserProfile
	err := s.collection.FindOne(ctx, bson.M{"_id": uid}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("find profile %s: %w", uid, err)
	}
	return profile, nil
}

// SetProfile replaces the whole document, creating it when absent.
func (s *ProfileStore) SetProfile(ctx context.Context, profile domain.UserProfile) error {
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": profile.UID}, profile, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace profile %s: %w", profile.UID, err)
	}
	return nil
}

// MergeProfile sets the given top-level fields and leaves the rest untouched.
func (s *ProfileStore) MergeProfile(ctx context.Context, uid string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{}
	for key, value := range fields {
		set[key] = value
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("merge profile %s: %w", uid, err)
	}
	return nil
}
