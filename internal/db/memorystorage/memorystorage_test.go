package memorystorage

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapmyfamily/familyapi/internal/db/storage"
	"github.com/mapmyfamily/familyapi/internal/models"
)

func Test(t *testing.T) {
	t.Run("The base memorystorage package test", func(t *testing.T) {
		theStorage, err := New()
		assert.NoError(t, err, "The memorystorage.New() should not return error")

		id, err := theStorage.InsertUser(context.Background(), &models.User{Name: "Ada", Email: "ada@example.com", UserID: "u1"})
		assert.NoError(t, err, "The `theStorage.InsertUser()` should not return error")

		usr, err := theStorage.FindUserByUserID(context.Background(), "u1")
		assert.NoError(t, err)
		assert.Equal(t, id, usr.ID)

		_, err = theStorage.FindTreeDiagramByID(context.Background(), storage.NewID())
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = theStorage.Ping(context.Background())
		assert.NoError(t, err, "The memorystorage.Ping() should not return error")

		err = theStorage.Close()
		assert.NoError(t, err, "The memorystorage.Close() should not return error")
	})
}

func TestConcurrentInserts(t *testing.T) {
	theStorage, err := New()
	require.NoError(t, err)

	const workers = 32

	var wg sync.WaitGroup
	ids := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := theStorage.InsertTreeDiagram(context.Background(), &models.TreeDiagram{
				ModelData: map[string]any{"n": json.Number(strconv.Itoa(i))},
				Users:     []string{},
			})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		diagram, err := theStorage.FindTreeDiagramByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, json.Number(strconv.Itoa(i)), diagram.ModelData["n"])
	}
}

func TestFindTreeDiagramByIDIgnoresHexCase(t *testing.T) {
	theStorage, err := New()
	require.NoError(t, err)

	id, err := theStorage.InsertTreeDiagram(context.Background(), &models.TreeDiagram{
		ModelData: map[string]any{"root": "u1"},
		Users:     []string{"u1"},
	})
	require.NoError(t, err)

	diagram, err := theStorage.FindTreeDiagramByID(context.Background(), strings.ToUpper(id))
	require.NoError(t, err)
	assert.Equal(t, id, diagram.ID)
}
