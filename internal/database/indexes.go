package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"gemmy/internal/store"
)

// OrderIndexes are created on the full order collection.
func OrderIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trackToken", Value: 1}},
			Options: options.Index().SetName("trackToken_unique").SetUnique(true),
		},
	}
}

// ProjectionIndexes back the vendor list, which reads newest first.
func ProjectionIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updatedAt", Value: -1}},
			Options: options.Index().SetName("updatedAt_desc"),
		},
	}
}

func AccountIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
	}
}

func RefreshTokenIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetName("tokenHash_index"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
		},
	}
}

// EnsureIndexes creates every index the stores rely on. A failure on one
// collection is logged and returned after the rest were attempted.
func EnsureIndexes(db *mongo.Database, log *zap.Logger) error {
	sets := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{store.OrdersCollection, OrderIndexes()},
		{store.ProjectionsCollection, ProjectionIndexes()},
		{store.AccountsCollection, AccountIndexes()},
		{store.RefreshTokensCollection, RefreshTokenIndexes()},
	}

	var firstErr error
	for _, set := range sets {
		if err := ensure(db, set.collection, set.models, log); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func ensure(db *mongo.Database, collection string, models []mongo.IndexModel, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	if err != nil {
		log.Warn("index creation failed", zap.String("collection", collection), zap.Error(err))
		return err
	}
	log.Info("indexes ready", zap.String("collection", collection), zap.Strings("indexes", names))
	return nil
}
