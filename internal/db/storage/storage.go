// Package storage declares the document store contract shared by every
// backend together with the errors backends report through it.
package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mapmyfamily/familyapi/internal/models"
)

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidID is returned when an identifier is not a store-native ObjectID.
	ErrInvalidID = errors.New("invalid document identifier")

	// ErrUnavailable wraps failures to reach the backing database.
	ErrUnavailable = errors.New("document store unavailable")
)

// Storage is implemented by every document store backend.
type Storage interface {
	InsertUser(ctx context.Context, usr *models.User) (string, error)
	FindUserByUserID(ctx context.Context, userID string) (*models.User, error)
	InsertTreeDiagram(ctx context.Context, diagram *models.TreeDiagram) (string, error)
	FindTreeDiagramByID(ctx context.Context, id string) (*models.TreeDiagram, error)
	Ping(ctx context.Context) error
	Close() error
}

// ParseID converts a hex identifier into an ObjectID, reporting ErrInvalidID
// for anything that is not 24 hex characters.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.Join(ErrInvalidID, err)
	}

	return oid, nil
}

// NewID generates an identifier in the store-native format for backends
// that cannot generate one themselves.
func NewID() string {
	return primitive.NewObjectID().Hex()
}
