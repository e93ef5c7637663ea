package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"gemmy/internal/models"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

func TestProjectionUpdateStampsVendor(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := ProjectionUpdate(Mutation{Status: strPtr("kit_shipped"), By: models.ActorVendor, At: at})

	set := u["$set"].(bson.M)
	assert.Equal(t, "kit_shipped", set["status"])
	assert.Equal(t, at, set["updatedAt"])
	assert.Equal(t, models.ActorVendor, set["lastUpdateBy"])
	assert.Equal(t, at, set["vendorLastSeenAt"])
	assert.NotContains(t, set, "lastCustomerActivityAt")
	assert.NotContains(t, u, "$push")
}

func TestProjectionUpdateStampsCustomerAndPushes(t *testing.T) {
	at := time.Now().UTC()
	msg := models.Message{Sender: models.ActorCustomer, Text: "hi", At: "x"}
	u := ProjectionUpdate(Mutation{PushMessage: &msg, By: models.ActorCustomer, At: at})

	set := u["$set"].(bson.M)
	assert.Equal(t, at, set["lastCustomerActivityAt"])
	assert.NotContains(t, set, "vendorLastSeenAt")
	assert.Equal(t, msg, u["$push"].(bson.M)["messages"])
}

func TestSeenOnlyUpdateTouchesOnlyVendorSeen(t *testing.T) {
	at := time.Now().UTC()
	u := ProjectionUpdate(Mutation{SeenOnly: true, At: at, Status: strPtr("ignored")})
	assert.Equal(t, bson.M{"$set": bson.M{"vendorLastSeenAt": at}}, u)
}

func TestOrderUpdateSkipsBookkeeping(t *testing.T) {
	at := time.Now().UTC()
	review := models.PhotoReview{Status: models.ReviewApproved, Note: "nice"}
	u := OrderUpdate(Mutation{
		Status: strPtr("photos_reviewed"),
		Review: &PhotoReview{Index: 2, Review: review},
		Paid:   boolPtr(true),
		By:     models.ActorVendor,
		At:     at,
	})

	set := u["$set"].(bson.M)
	assert.Equal(t, review, set["photos.2.review"])
	assert.Equal(t, true, set["paid"])
	assert.NotContains(t, set, "lastUpdateBy")
	assert.NotContains(t, set, "vendorLastSeenAt")
}

func TestMutationKind(t *testing.T) {
	assert.Equal(t, "seen", Mutation{SeenOnly: true}.Kind())
	assert.Equal(t, "photo", Mutation{PushPhoto: &models.Photo{}, Status: strPtr("x")}.Kind())
	assert.Equal(t, "status", Mutation{Status: strPtr("x")}.Kind())
	assert.Equal(t, "review", Mutation{SetPhotos: []models.Photo{}}.Kind())
}

func seed(t *testing.T, s *Memory) (models.Order, models.Projection) {
	t.Helper()
	ctx := context.Background()
	o := models.Order{TrackToken: "tok", CustomerName: "Jane", Status: "created", CreatedAt: time.Now()}
	require.NoError(t, s.InsertOrder(ctx, &o))
	p := models.ProjectionFor(o)
	require.NoError(t, s.InsertProjection(ctx, p))
	return o, p
}

func TestMemoryReviewTargetsOnePhoto(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	seed(t, s)

	for i := 0; i < 3; i++ {
		photo := models.Photo{URL: "u", Review: models.PhotoReview{Status: models.ReviewPending}}
		require.NoError(t, s.UpdateProjection(ctx, "tok", Mutation{PushPhoto: &photo, By: models.ActorCustomer, At: time.Now()}))
	}
	before, err := s.GetProjection(ctx, "tok")
	require.NoError(t, err)

	review := models.PhotoReview{Status: models.ReviewRejected, Note: "blurry", ReviewedAt: "now"}
	require.NoError(t, s.UpdateProjection(ctx, "tok", Mutation{Review: &PhotoReview{Index: 1, Review: review}, By: models.ActorVendor, At: time.Now()}))

	after, err := s.GetProjection(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, review, after.Photos[1].Review)
	assert.Equal(t, before.Photos[0].Review, after.Photos[0].Review)
	assert.Equal(t, before.Photos[2].Review, after.Photos[2].Review)

	err = s.UpdateProjection(ctx, "tok", Mutation{Review: &PhotoReview{Index: 7, Review: review}, By: models.ActorVendor, At: time.Now()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_, p := seed(t, s)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.UpdateProjection(ctx, p.Token, Mutation{Status: strPtr("production"), By: models.ActorVendor, At: time.Now()}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetProjection(ctx, p.Token)
	require.NoError(t, err)
	assert.Equal(t, "created", got.Status)
}

func TestMemoryListProjectionsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, tok := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertProjection(ctx, models.Projection{Token: tok, UpdatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	items, err := s.ListProjections(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[0].Token)
	assert.Equal(t, "b", items[1].Token)
	assert.Equal(t, "created", items[0].Status)
}

func TestMemoryFailOnIsOneShot(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	boom := errors.New("down")
	s.FailOn("Ping", boom)
	assert.ErrorIs(t, s.Ping(ctx), boom)
	assert.NoError(t, s.Ping(ctx))
}

func TestOrderUpdateSetPhotosWinsOverIndex(t *testing.T) {
	photos := []models.Photo{{URL: "a"}, {URL: "b"}}
	u := OrderUpdate(Mutation{
		SetPhotos: photos,
		Review:    &PhotoReview{Index: 1},
		At:        time.Now(),
	})

	set := u["$set"].(bson.M)
	assert.Equal(t, photos, set["photos"])
	assert.NotContains(t, set, "photos.1.review")
}

func TestMemoryRevokeRefreshTokenOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	tok := models.RefreshToken{TokenHash: "h", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.InsertRefreshToken(ctx, &tok))

	require.NoError(t, s.RevokeRefreshToken(ctx, tok.ID, nil))
	assert.ErrorIs(t, s.RevokeRefreshToken(ctx, tok.ID, nil), ErrNotFound)
}
