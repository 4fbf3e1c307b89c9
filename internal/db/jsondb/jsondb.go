// Package jsondb implements the document store on top of a single JSON file.
// Every successful insert rewrites the file, and Close flushes it once more.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/mapmyfamily/familyapi/internal/db/storage"
	"github.com/mapmyfamily/familyapi/internal/models"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the on-disk layout. Users keeps insertion order so lookups
// by external identifier return the oldest match first.
type CacheStruct struct {
	Users        []*models.User
	TreeDiagrams map[string]*models.TreeDiagram
}

func NewCache() CacheStruct {
	return CacheStruct{
		Users:        []*models.User{},
		TreeDiagrams: map[string]*models.TreeDiagram{},
	}
}

func initDBFile(fileName string) error {
	return writeToJSONFile(fileName, NewCache())
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	if _, err = file.Write(jsonData); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return models.DecodeJSON(file, cache)
}

// New opens the JSON file, creating an empty database when it does not exist.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
	}
	if db.Cache.Users == nil {
		db.Cache.Users = []*models.User{}
	}
	if db.Cache.TreeDiagrams == nil {
		db.Cache.TreeDiagrams = map[string]*models.TreeDiagram{}
	}

	return db, nil
}

func (db *JSONDB) flush() error {
	if db.fileName == "" {
		return nil
	}

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) InsertUser(ctx context.Context, usr *models.User) (string, error) {
	stored := *usr
	stored.ID = storage.NewID()

	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.Users = append(db.Cache.Users, &stored)
	if err := db.flush(); err != nil {
		db.Cache.Users = db.Cache.Users[:len(db.Cache.Users)-1]
		return "", err
	}

	return stored.ID, nil
}

func (db *JSONDB) FindUserByUserID(ctx context.Context, userID string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	found := funk.Find(db.Cache.Users, func(usr *models.User) bool {
		return usr.UserID == userID
	})
	if found == nil {
		return nil, storage.ErrNotFound
	}

	result := *found.(*models.User)

	return &result, nil
}

func (db *JSONDB) InsertTreeDiagram(ctx context.Context, diagram *models.TreeDiagram) (string, error) {
	stored, err := cloneTreeDiagram(diagram)
	if err != nil {
		return "", err
	}
	stored.ID = storage.NewID()

	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.TreeDiagrams[stored.ID] = stored
	if err := db.flush(); err != nil {
		delete(db.Cache.TreeDiagrams, stored.ID)
		return "", err
	}

	return stored.ID, nil
}

func (db *JSONDB) FindTreeDiagramByID(ctx context.Context, id string) (*models.TreeDiagram, error) {
	oid, err := storage.ParseID(id)
	if err != nil {
		return nil, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	diagram, ok := db.Cache.TreeDiagrams[oid.Hex()]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return cloneTreeDiagram(diagram)
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.flush()
}

// cloneTreeDiagram deep-copies a diagram through its JSON form so callers
// never share model_data maps with the cache.
func cloneTreeDiagram(diagram *models.TreeDiagram) (*models.TreeDiagram, error) {
	raw, err := json.Marshal(diagram)
	if err != nil {
		return nil, err
	}

	var result models.TreeDiagram
	if err := models.UnmarshalJSON(raw, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
