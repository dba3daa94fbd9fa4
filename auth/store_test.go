package auth

import (
	"context"
	"testing"
	"time"

	"github.com/raushankrgupta/product-descriptions-ai/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoCodeStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save upserts", func(mt *mtest.T) {
		store := NewMongoCodeStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}))

		err := store.Save(context.Background(), models.LoginCode{Email: "a@b.co", CodeHash: "h", ExpiresAt: time.Now()})

		assert.NoError(mt, err)
	})

	mt.Run("get", func(mt *mtest.T) {
		store := NewMongoCodeStore(mt.DB)
		expires := time.Date(2024, 5, 1, 12, 15, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.login_codes", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "a@b.co"},
			{Key: "code_hash", Value: "hash"},
			{Key: "expires_at", Value: expires},
		}))

		code, err := store.Get(context.Background(), "a@b.co")

		require.NoError(mt, err)
		assert.Equal(mt, "hash", code.CodeHash)
		assert.True(mt, expires.Equal(code.ExpiresAt))
	})

	mt.Run("get missing", func(mt *mtest.T) {
		store := NewMongoCodeStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.login_codes", mtest.FirstBatch))

		_, err := store.Get(context.Background(), "a@b.co")

		assert.ErrorIs(mt, err, ErrCodeNotFound)
	})

	mt.Run("add attempt", func(mt *mtest.T) {
		store := NewMongoCodeStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "a@b.co"},
			{Key: "code_hash", Value: "hash"},
			{Key: "attempts", Value: 2},
		}}))

		n, err := store.AddAttempt(context.Background(), "a@b.co")

		require.NoError(mt, err)
		assert.Equal(mt, 2, n)
	})

	mt.Run("add attempt missing", func(mt *mtest.T) {
		store := NewMongoCodeStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := store.AddAttempt(context.Background(), "a@b.co")

		assert.ErrorIs(mt, err, ErrCodeNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		store := NewMongoCodeStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(mt, store.Delete(context.Background(), "a@b.co"))
	})
}
