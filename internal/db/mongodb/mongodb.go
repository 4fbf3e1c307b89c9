// Package mongodb is the MongoDB document store backend. It owns the client
// connection pool for the whole process lifetime.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"github.com/mapmyfamily/familyapi/internal/db/storage"
	"github.com/mapmyfamily/familyapi/internal/models"
)

const (
	UserCollection        = "User"
	TreeDiagramCollection = "TreeDiagram"
)

type MongoDB struct {
	client            *mongo.Client
	users             *mongo.Collection
	treeDiagrams      *mongo.Collection
	connectionTimeout time.Duration
}

type userDocument struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Name   string             `bson:"name"`
	Email  string             `bson:"email"`
	UserID string             `bson:"user_id"`
}

type treeDiagramDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ModelData bson.M             `bson:"model_data"`
	Users     []string           `bson:"users"`
}

// New connects to uri and checks the primary is reachable within connectionTimeout.
func New(
	ctx context.Context,
	uri string,
	databaseName string,
	connectionTimeout time.Duration,
) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectionTimeout).
		SetServerSelectionTimeout(connectionTimeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `mongo.Connect()` calling: %w", err)
	}

	database := client.Database(databaseName)
	result := &MongoDB{
		client:            client,
		users:             database.Collection(UserCollection),
		treeDiagrams:      database.Collection(TreeDiagramCollection),
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `result.Ping()` calling: %w", err)
	}

	return result, nil
}

func (db *MongoDB) InsertUser(ctx context.Context, usr *models.User) (string, error) {
	res, err := db.users.InsertOne(ctx, userDocument{
		Name:   usr.Name,
		Email:  usr.Email,
		UserID: usr.UserID,
	})
	if err != nil {
		return "", classify(err)
	}

	return insertedHex(res)
}

func (db *MongoDB) FindUserByUserID(ctx context.Context, userID string) (*models.User, error) {
	var doc userDocument
	err := db.users.FindOne(
		ctx,
		bson.M{"user_id": userID},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		return nil, classify(err)
	}

	return &models.User{
		ID:     doc.ID.Hex(),
		Name:   doc.Name,
		Email:  doc.Email,
		UserID: doc.UserID,
	}, nil
}

func (db *MongoDB) InsertTreeDiagram(ctx context.Context, diagram *models.TreeDiagram) (string, error) {
	res, err := db.treeDiagrams.InsertOne(ctx, treeDiagramDocument{
		ModelData: bsonDocument(diagram.ModelData),
		Users:     diagram.Users,
	})
	if err != nil {
		return "", classify(err)
	}

	return insertedHex(res)
}

func (db *MongoDB) FindTreeDiagramByID(ctx context.Context, id string) (*models.TreeDiagram, error) {
	oid, err := storage.ParseID(id)
	if err != nil {
		return nil, err
	}

	var doc treeDiagramDocument
	if err := db.treeDiagrams.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, classify(err)
	}

	users := doc.Users
	if users == nil {
		users = []string{}
	}

	return &models.TreeDiagram{
		ID:        doc.ID.Hex(),
		ModelData: jsonObject(doc.ModelData),
		Users:     users,
	}, nil
}

func (db *MongoDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	if err := db.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	return nil
}

func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), db.connectionTimeout)
	defer cancel()

	return db.client.Disconnect(ctx)
}

func insertedHex(res *mongo.InsertOneResult) (string, error) {
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}

	return oid.Hex(), nil
}

// bsonDocument converts decoded request JSON into values the BSON encoder
// stores as numbers: integers become int64, integers outside the int64
// range Decimal128, everything else float64.
func bsonDocument(data map[string]any) bson.M {
	doc := make(bson.M, len(data))
	for key, value := range data {
		doc[key] = bsonValue(value)
	}

	return doc
}

func bsonValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return bsonDocument(v)
	case []any:
		arr := make(bson.A, len(v))
		for i, item := range v {
			arr[i] = bsonValue(item)
		}
		return arr
	case json.Number:
		return bsonNumber(v)
	}

	return value
}

func bsonNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}

	if !strings.ContainsAny(n.String(), ".eE") {
		if d, err := primitive.ParseDecimal128(n.String()); err == nil {
			return d
		}
	}

	if f, err := n.Float64(); err == nil {
		return f
	}

	if d, err := primitive.ParseDecimal128(n.String()); err == nil {
		return d
	}

	return n.String()
}

// jsonObject rebuilds a decoded document from plain maps and slices with
// json.Number leaves, the same shape the other backends return.
func jsonObject(doc bson.M) map[string]any {
	result := make(map[string]any, len(doc))
	for key, value := range doc {
		result[key] = jsonValue(value)
	}

	return result
}

func jsonValue(value any) any {
	switch v := value.(type) {
	case bson.M:
		return jsonObject(v)
	case map[string]any:
		return jsonObject(v)
	case bson.D:
		return jsonObject(v.Map())
	case bson.A:
		return jsonArray(v)
	case []any:
		return jsonArray(v)
	case int32:
		return json.Number(strconv.FormatInt(int64(v), 10))
	case int64:
		return json.Number(strconv.FormatInt(v, 10))
	case float64:
		return json.Number(strconv.FormatFloat(v, 'g', -1, 64))
	case primitive.Decimal128:
		return json.Number(v.String())
	}

	return value
}

func jsonArray(values []any) []any {
	result := make([]any, len(values))
	for i, item := range values {
		result[i] = jsonValue(item)
	}

	return result
}

func classify(err error) error {
	var selectionErr topology.ServerSelectionError
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrNotFound
	case mongo.IsNetworkError(err), errors.As(err, &selectionErr):
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	return err
}
