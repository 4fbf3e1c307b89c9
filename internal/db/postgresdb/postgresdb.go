// Package postgresdb provides a PostgreSQL-based implementation of the
// document store. Users are stored as plain columns and tree diagrams keep
// model_data and users in JSONB columns.
package postgresdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mapmyfamily/familyapi/internal/db/storage"
	"github.com/mapmyfamily/familyapi/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// PostgresDB handles all persistence operations via a PostgreSQL connection pool.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

type InitOption func(*initOptions)

// WithDBPreReset drops every table before migrations run. Tests use it to
// start from an empty database.
func WithDBPreReset(dbPreReset bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = dbPreReset
	}
}

// New opens the pool, verifies the connection within connectionTimeout and
// applies the embedded migrations.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("in internal/db/postgresdb/postgresdb.go/New(): error while `result.Ping()` calling: %w", err)
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w", err)
		}
	}

	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.UpContext(ctx, result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w", err)
	}

	return result, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DROP TABLE IF EXISTS tree_diagrams;
			DROP TABLE IF EXISTS users;
			DROP TABLE IF EXISTS goose_db_version;
		`,
	)

	return err
}

// InsertUser stores a user under a freshly generated ObjectID.
func (db *PostgresDB) InsertUser(ctx context.Context, usr *models.User) (string, error) {
	id := storage.NewID()

	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, name, email, user_id) VALUES ($1, $2, $3, $4)`,
		id,
		usr.Name,
		usr.Email,
		usr.UserID,
	)
	if err != nil {
		return "", classify(err)
	}

	return id, nil
}

// FindUserByUserID returns the earliest stored user with the given external identifier.
func (db *PostgresDB) FindUserByUserID(ctx context.Context, userID string) (*models.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, name, email, user_id
				FROM users
				WHERE user_id = $1
				ORDER BY seq
				LIMIT 1
		`,
		userID,
	)

	var usr models.User
	if err := row.Scan(&usr.ID, &usr.Name, &usr.Email, &usr.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, classify(err)
	}

	return &usr, nil
}

// InsertTreeDiagram stores model_data and users as JSONB.
func (db *PostgresDB) InsertTreeDiagram(ctx context.Context, diagram *models.TreeDiagram) (string, error) {
	modelData, err := json.Marshal(diagram.ModelData)
	if err != nil {
		return "", err
	}
	users, err := json.Marshal(diagram.Users)
	if err != nil {
		return "", err
	}

	id := storage.NewID()

	_, err = db.database.ExecContext(
		ctx,
		`INSERT INTO tree_diagrams (id, model_data, users) VALUES ($1, $2, $3)`,
		id,
		string(modelData),
		string(users),
	)
	if err != nil {
		return "", classify(err)
	}

	return id, nil
}

// FindTreeDiagramByID looks a diagram up by its ObjectID hex string.
func (db *PostgresDB) FindTreeDiagramByID(ctx context.Context, id string) (*models.TreeDiagram, error) {
	oid, err := storage.ParseID(id)
	if err != nil {
		return nil, err
	}

	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, model_data, users FROM tree_diagrams WHERE id = $1`,
		oid.Hex(),
	)

	var (
		diagram   models.TreeDiagram
		modelData []byte
		users     []byte
	)
	if err := row.Scan(&diagram.ID, &modelData, &users); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, classify(err)
	}

	if err := models.UnmarshalJSON(modelData, &diagram.ModelData); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(users, &diagram.Users); err != nil {
		return nil, err
	}

	return &diagram, nil
}

// Ping checks the connection, giving up after the configured connection timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	if err := db.database.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	return nil
}

func (db *PostgresDB) Close() error {
	return db.database.Close()
}

// classify marks connection-level failures as storage.ErrUnavailable.
func classify(err error) error {
	var (
		netErr     net.Error
		connectErr *pgconn.ConnectError
	)
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) || errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	return err
}
