package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gemmy/internal/models"
	"gemmy/internal/workflow"
)

// Mongo implements OrderStore and AccountStore on a mongo database.
type Mongo struct {
	db           *mongo.Database
	transactions bool
}

// NewMongo wraps db. transactions enables multi-document transactions, which
// need a replica set.
func NewMongo(db *mongo.Database, transactions bool) *Mongo {
	return &Mongo{db: db, transactions: transactions}
}

func (s *Mongo) Ping(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.db.Client().Ping(checkCtx, readpref.Primary())
}

func (s *Mongo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}

	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

/* =========================
   ORDERS
========================= */

func (s *Mongo) InsertOrder(ctx context.Context, o *models.Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, err := s.db.Collection(OrdersCollection).InsertOne(ctx, o); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *Mongo) GetOrder(ctx context.Context, id string) (models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Order{}, ErrNotFound
	}

	var o models.Order
	err = s.db.Collection(OrdersCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	normalizeOrder(&o)
	return o, nil
}

func (s *Mongo) UpdateOrder(ctx context.Context, id string, m Mutation) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	filter := bson.M{"_id": oid}
	if m.Review != nil && m.SetPhotos == nil {
		filter[photoKey(m.Review.Index)] = bson.M{"$exists": true}
	}

	res, err := s.db.Collection(OrdersCollection).UpdateOne(ctx, filter, OrderUpdate(m))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

/* =========================
   PROJECTIONS
========================= */

func (s *Mongo) InsertProjection(ctx context.Context, p models.Projection) error {
	if _, err := s.db.Collection(ProjectionsCollection).InsertOne(ctx, p); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *Mongo) GetProjection(ctx context.Context, token string) (models.Projection, error) {
	var p models.Projection
	err := s.db.Collection(ProjectionsCollection).FindOne(ctx, bson.M{"_id": token}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Projection{}, ErrNotFound
	}
	if err != nil {
		return models.Projection{}, err
	}
	normalizeProjection(&p)
	return p, nil
}

func (s *Mongo) UpdateProjection(ctx context.Context, token string, m Mutation) error {
	filter := bson.M{"_id": token}
	if m.Review != nil {
		filter[photoKey(m.Review.Index)] = bson.M{"$exists": true}
	}

	res, err := s.db.Collection(ProjectionsCollection).UpdateOne(ctx, filter, ProjectionUpdate(m))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) ListProjections(ctx context.Context, limit int64) ([]models.Projection, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.db.Collection(ProjectionsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeProjections(ctx, cursor)
}

func decodeProjections(ctx context.Context, cursor *mongo.Cursor) ([]models.Projection, error) {
	items := make([]models.Projection, 0)

	for cursor.Next(ctx) {
		var p models.Projection
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		normalizeProjection(&p)
		items = append(items, p)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

/* =========================
   UPDATE DOCUMENTS
========================= */

// OrderUpdate builds the update document for the full order. Projection-only
// bookkeeping is not written here.
func OrderUpdate(m Mutation) bson.M {
	set := bson.M{}
	if !m.SeenOnly {
		set["updatedAt"] = m.At
	}
	push := fieldUpdates(m, set)

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(push) > 0 {
		update["$push"] = push
	}
	return update
}

// ProjectionUpdate builds the update document for the public projection,
// including the lastUpdateBy and activity stamps.
func ProjectionUpdate(m Mutation) bson.M {
	set := bson.M{}
	if m.SeenOnly {
		set["vendorLastSeenAt"] = m.At
		return bson.M{"$set": set}
	}

	set["updatedAt"] = m.At
	set["lastUpdateBy"] = m.By
	if m.By == models.ActorVendor {
		set["vendorLastSeenAt"] = m.At
	} else {
		set["lastCustomerActivityAt"] = m.At
	}
	push := fieldUpdates(m, set)

	update := bson.M{"$set": set}
	if len(push) > 0 {
		update["$push"] = push
	}
	return update
}

func fieldUpdates(m Mutation, set bson.M) bson.M {
	if m.SeenOnly {
		return nil
	}
	if m.Status != nil {
		set["status"] = *m.Status
	}
	if m.PrePaidStatus != nil {
		set["prePaidStatus"] = *m.PrePaidStatus
	}
	if m.Address != nil {
		set["address"] = *m.Address
	}
	if m.Tracking != nil {
		set["tracking"] = *m.Tracking
	}
	if m.Paid != nil {
		set["paid"] = *m.Paid
	}
	if m.Archived != nil {
		set["archived"] = *m.Archived
	}
	if m.SetPhotos != nil {
		set["photos"] = m.SetPhotos
	} else if m.Review != nil {
		set[photoKey(m.Review.Index)+".review"] = m.Review.Review
	}

	push := bson.M{}
	if m.PushPhoto != nil {
		push["photos"] = *m.PushPhoto
	}
	if m.PushMessage != nil {
		push["messages"] = *m.PushMessage
	}
	return push
}

func photoKey(i int) string {
	return "photos." + strconv.Itoa(i)
}

// Older documents may lack arrays or a status.
func normalizeProjection(p *models.Projection) {
	if p.Status == "" {
		p.Status = workflow.StatusCreated
	}
	if p.Photos == nil {
		p.Photos = []models.Photo{}
	}
	if p.Messages == nil {
		p.Messages = []models.Message{}
	}
	if p.LastUpdateBy == "" {
		p.LastUpdateBy = models.ActorVendor
	}
}

func normalizeOrder(o *models.Order) {
	if o.Status == "" {
		o.Status = workflow.StatusCreated
	}
	if o.Photos == nil {
		o.Photos = []models.Photo{}
	}
	if o.Messages == nil {
		o.Messages = []models.Message{}
	}
}

func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
