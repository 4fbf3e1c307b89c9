// Package models holds the documents stored by the API and the request and
// response shapes built around them.
package models

// User is a person registered in the family tree application.
// UserID is the caller-chosen external identifier used for lookups; ID is
// assigned by the store.
type User struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	UserID string `json:"user_id" validate:"required"`
}

// TreeDiagram is the persisted layout of a family tree. ModelData is kept
// exactly as the client sent it.
type TreeDiagram struct {
	ID        string         `json:"id,omitempty"`
	ModelData map[string]any `json:"model_data" validate:"required"`
	Users     []string       `json:"users" validate:"required"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type UserResponse struct {
	User *User `json:"user"`
}

type TreeDiagramResponse struct {
	Tree *TreeDiagram `json:"tree"`
}

const (
	StorageTypeUnknown = iota
	StorageTypeMongo
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// CreateUserRequest is the POST /user/ payload. Any id sent by the client
// is dropped during decoding.
type CreateUserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	UserID string `json:"user_id"`
}

func (r CreateUserRequest) User() User {
	return User{Name: r.Name, Email: r.Email, UserID: r.UserID}
}

// CreateTreeDiagramRequest is the POST /tree_diagram/ payload.
type CreateTreeDiagramRequest struct {
	ModelData map[string]any `json:"model_data"`
	Users     []string       `json:"users"`
}

func (r CreateTreeDiagramRequest) TreeDiagram() TreeDiagram {
	return TreeDiagram{ModelData: r.ModelData, Users: r.Users}
}
