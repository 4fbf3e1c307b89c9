package mongodb

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mapmyfamily/familyapi/internal/db/storage"
	"github.com/mapmyfamily/familyapi/internal/models"
)

func newTestDB(t *testing.T) *MongoDB {
	t.Helper()

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI is not set")
	}

	databaseName := "map_my_family_test_" + primitive.NewObjectID().Hex()
	db, err := New(context.Background(), uri, databaseName, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.client.Database(databaseName).Drop(context.Background()))
		require.NoError(t, db.Close())
	})

	return db
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertUser(ctx, &models.User{ID: "ignored", Name: "Ada", Email: "ada@example.com", UserID: "u1"})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", id)

	usr, err := db.FindUserByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: id, Name: "Ada", Email: "ada@example.com", UserID: "u1"}, usr)

	_, err = db.FindUserByUserID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTreeDiagrams(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	modelData := map[string]any{
		"class": "TreeModel",
		"nodeDataArray": []any{
			map[string]any{"key": json.Number("1"), "name": "Ada"},
			map[string]any{"key": json.Number("2"), "parent": json.Number("1")},
		},
		"big":   json.Number("12345678901234567890"),
		"ratio": json.Number("0.25"),
	}

	id, err := db.InsertTreeDiagram(ctx, &models.TreeDiagram{ModelData: modelData, Users: []string{"u1", "u2"}})
	require.NoError(t, err)

	diagram, err := db.FindTreeDiagramByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, diagram.ID)
	assert.Equal(t, modelData, diagram.ModelData)
	assert.Equal(t, []string{"u1", "u2"}, diagram.Users)

	upper, err := db.FindTreeDiagramByID(ctx, strings.ToUpper(id))
	require.NoError(t, err)
	assert.Equal(t, id, upper.ID)

	_, err = db.FindTreeDiagramByID(ctx, "123")
	assert.ErrorIs(t, err, storage.ErrInvalidID)

	_, err = db.FindTreeDiagramByID(ctx, storage.NewID())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJSONObject(t *testing.T) {
	result := jsonObject(bson.M{
		"nested": bson.M{"list": bson.A{int32(1), "two", 2.5}},
		"big":    mustDecimal(t, "12345678901234567890"),
		"wide":   int64(9007199254740993),
	})
	assert.Equal(t, map[string]any{
		"nested": map[string]any{"list": []any{json.Number("1"), "two", json.Number("2.5")}},
		"big":    json.Number("12345678901234567890"),
		"wide":   json.Number("9007199254740993"),
	}, result)

	assert.Equal(t, map[string]any{}, jsonObject(nil))
}

func TestBSONDocument(t *testing.T) {
	doc := bsonDocument(map[string]any{
		"small": json.Number("42"),
		"big":   json.Number("12345678901234567890"),
		"ratio": json.Number("0.5"),
		"list":  []any{json.Number("1"), map[string]any{"name": "Ada"}},
	})

	assert.Equal(t, int64(42), doc["small"])
	assert.Equal(t, mustDecimal(t, "12345678901234567890"), doc["big"])
	assert.Equal(t, 0.5, doc["ratio"])
	assert.Equal(t, bson.A{int64(1), bson.M{"name": "Ada"}}, doc["list"])
}

func mustDecimal(t *testing.T, s string) primitive.Decimal128 {
	t.Helper()

	d, err := primitive.ParseDecimal128(s)
	require.NoError(t, err)

	return d
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(mongo.ErrNoDocuments), storage.ErrNotFound)
	assert.Equal(t, assert.AnError, classify(assert.AnError))
}
