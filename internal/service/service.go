// Package service implements the user and tree diagram operations on top of
// an injected document store.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mapmyfamily/familyapi/internal/models"
)

type userKeeper interface {
	InsertUser(ctx context.Context, usr *models.User) (string, error)
	FindUserByUserID(ctx context.Context, userID string) (*models.User, error)
}

type treeDiagramKeeper interface {
	InsertTreeDiagram(ctx context.Context, diagram *models.TreeDiagram) (string, error)
	FindTreeDiagramByID(ctx context.Context, id string) (*models.TreeDiagram, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type documentStore interface {
	userKeeper
	treeDiagramKeeper
	pinger
}

type metricsRecorder interface {
	DocumentCreated(collection string)
}

// ErrValidation marks a payload that does not satisfy the document schema.
var ErrValidation = errors.New("validation failed")

type Service struct {
	db       documentStore
	validate *validator.Validate
	metrics  metricsRecorder
}

type noopMetrics struct{}

func (noopMetrics) DocumentCreated(string) {}

type Option func(*Service)

// WithMetrics reports created documents to recorder.
func WithMetrics(recorder metricsRecorder) Option {
	return func(s *Service) {
		s.metrics = recorder
	}
}

func New(db documentStore, optionsProto ...Option) *Service {
	s := &Service{
		db:       db,
		validate: newValidator(),
		metrics:  noopMetrics{},
	}
	for _, protoOption := range optionsProto {
		protoOption(s)
	}

	return s
}

// CreateUser validates usr, stores it without any client-supplied id and
// returns the stored representation.
func (s *Service) CreateUser(ctx context.Context, usr models.User) (*models.User, error) {
	usr.ID = ""
	if err := s.validate.Struct(usr); err != nil {
		return nil, validationError(err)
	}

	id, err := s.db.InsertUser(ctx, &usr)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	s.metrics.DocumentCreated("User")

	usr.ID = id

	return &usr, nil
}

// GetUser looks a user up by the external user_id field.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	usr, err := s.db.FindUserByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", userID, err)
	}

	return usr, nil
}

// CreateTreeDiagram stores diagram and reads it back by the new identifier.
func (s *Service) CreateTreeDiagram(ctx context.Context, diagram models.TreeDiagram) (*models.TreeDiagram, error) {
	diagram.ID = ""
	if err := s.validate.Struct(diagram); err != nil {
		return nil, validationError(err)
	}

	id, err := s.db.InsertTreeDiagram(ctx, &diagram)
	if err != nil {
		return nil, fmt.Errorf("insert tree diagram: %w", err)
	}
	s.metrics.DocumentCreated("TreeDiagram")

	created, err := s.db.FindTreeDiagramByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read back tree diagram %s: %w", id, err)
	}

	return created, nil
}

func (s *Service) GetTreeDiagram(ctx context.Context, id string) (*models.TreeDiagram, error) {
	diagram, err := s.db.FindTreeDiagramByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find tree diagram %q: %w", id, err)
	}

	return diagram, nil
}

// Ping checks the health of the document store.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// newValidator reports fields by their JSON names so messages match the
// payload the client sent.
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func validationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		switch fieldError.Tag() {
		case "required":
			messages = append(messages, fieldError.Field()+" is required")
		case "email":
			messages = append(messages, fieldError.Field()+" must be a valid email address")
		default:
			messages = append(messages, fmt.Sprintf("%s failed on the '%s' rule", fieldError.Field(), fieldError.Tag()))
		}
	}

	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, "; "))
}
