// Package mockstorage provides a testify-based mock implementation
// of the document store used by the service and router packages.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mapmyfamily/familyapi/internal/models"
)

// StorageMock is a testify mock that implements storage.Storage.
type StorageMock struct {
	mock.Mock
}

func (m *StorageMock) InsertUser(ctx context.Context, usr *models.User) (string, error) {
	args := m.Called(ctx, usr)
	return args.String(0), args.Error(1)
}

func (m *StorageMock) FindUserByUserID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Error(1)
}

func (m *StorageMock) InsertTreeDiagram(ctx context.Context, diagram *models.TreeDiagram) (string, error) {
	args := m.Called(ctx, diagram)
	return args.String(0), args.Error(1)
}

func (m *StorageMock) FindTreeDiagramByID(ctx context.Context, id string) (*models.TreeDiagram, error) {
	args := m.Called(ctx, id)
	diagram, _ := args.Get(0).(*models.TreeDiagram)
	return diagram, args.Error(1)
}

// Ping mocks the pinger interface to simulate a health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
