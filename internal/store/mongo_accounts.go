package store

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gemmy/internal/models"
)

func (s *Mongo) InsertAccount(ctx context.Context, a *models.Account) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if _, err := s.db.Collection(AccountsCollection).InsertOne(ctx, a); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *Mongo) FindAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	var a models.Account
	err := s.db.Collection(AccountsCollection).
		FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).
		Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Account{}, ErrNotFound
	}
	return a, err
}

func (s *Mongo) GetAccount(ctx context.Context, id primitive.ObjectID) (models.Account, error) {
	var a models.Account
	err := s.db.Collection(AccountsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Account{}, ErrNotFound
	}
	return a, err
}

func (s *Mongo) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	n, err := s.db.Collection(AdminsCollection).CountDocuments(ctx, bson.M{"_id": accountID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Mongo) AddAdmin(ctx context.Context, a models.Admin) error {
	if _, err := s.db.Collection(AdminsCollection).InsertOne(ctx, a); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *Mongo) InsertRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := s.db.Collection(RefreshTokensCollection).InsertOne(ctx, t)
	return err
}

func (s *Mongo) FindRefreshToken(ctx context.Context, hash string) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := s.db.Collection(RefreshTokensCollection).FindOne(ctx, bson.M{"tokenHash": hash}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RefreshToken{}, ErrNotFound
	}
	return t, err
}

// RevokeRefreshToken revokes a live token. ErrNotFound means it is missing or
// was already revoked.
func (s *Mongo) RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	set := bson.M{"revoked": true}
	if replacedBy != nil {
		set["replacedByToken"] = *replacedBy
	}
	filter := bson.M{"_id": id, "revoked": bson.M{"$ne": true}}
	res, err := s.db.Collection(RefreshTokensCollection).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
