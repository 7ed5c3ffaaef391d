package postgres

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/gamelobby/internal/model"
	"github.com/mcoot/gamelobby/internal/storage"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for unique constraint violations
const uniqueViolation = "23505"

// Storage is a Postgres-backed implementation of the storage interface
type Storage struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and makes sure the schema exists
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	s := NewWithPool(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool creates a Postgres storage with an existing pool (for testing)
func NewWithPool(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// EnsureSchema creates the tables if they do not exist
func (s *Storage) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the connection pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) error {
	const q = `
	INSERT INTO rooms (id, code, host_user_id, state, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 1, $5, $6)
	ON CONFLICT (code) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q,
			room.ID, room.Code, room.HostUserID, room.State, room.CreatedAt, room.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrRoomCodeTaken
		}
		if err := insertPlayers(ctx, tx, room); err != nil {
			return err
		}
		room.Version = 1
		return nil
	})
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	const roomQuery = `
	SELECT id, code, host_user_id, state, version, created_at, updated_at
	FROM rooms
	WHERE code = $1
	`
	const playersQuery = `
	SELECT display_name, ready, joined_at
	FROM players
	WHERE room_id = $1
	ORDER BY position
	`

	var room model.Room
	readOnly := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, s.pool, readOnly, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, roomQuery, code).Scan(
			&room.ID,
			&room.Code,
			&room.HostUserID,
			&room.State,
			&room.Version,
			&room.CreatedAt,
			&room.UpdatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrRoomNotFound
			}
			return err
		}

		rows, err := tx.Query(ctx, playersQuery, room.ID)
		if err != nil {
			return err
		}
		defer rows.Close()

		room.Players = []model.Player{}
		for rows.Next() {
			var p model.Player
			if err := rows.Scan(&p.DisplayName, &p.Ready, &p.JoinedAt); err != nil {
				return err
			}
			room.Players = append(room.Players, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return &room, nil
}

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	const lockQuery = `SELECT id, version FROM rooms WHERE code = $1 FOR UPDATE`
	const updateQuery = `
	UPDATE rooms
	SET state = $2, version = version + 1, updated_at = $3
	WHERE id = $1
	`

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var id string
		var version int64
		if err := tx.QueryRow(ctx, lockQuery, room.Code).Scan(&id, &version); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrRoomNotFound
			}
			return err
		}
		if id != string(room.ID) {
			return model.ErrRoomNotFound
		}
		if version != room.Version {
			return storage.ErrVersionConflict
		}

		if _, err := tx.Exec(ctx, updateQuery, room.ID, room.State, room.UpdatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM players WHERE room_id = $1`, room.ID); err != nil {
			return err
		}
		return insertPlayers(ctx, tx, room)
	})
	if err != nil {
		return err
	}

	room.Version++
	return nil
}

func (s *Storage) DeleteRoom(ctx context.Context, code model.RoomCode) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code)
	return err
}

// insertPlayers writes the room's players in join order as one batch
func insertPlayers(ctx context.Context, tx pgx.Tx, room *model.Room) error {
	if len(room.Players) == 0 {
		return nil
	}

	const q = `
	INSERT INTO players (room_id, display_name, ready, position, joined_at)
	VALUES ($1, $2, $3, $4, $5)
	`
	batch := &pgx.Batch{}
	for i, p := range room.Players {
		batch.Queue(q, room.ID, p.DisplayName, p.Ready, i, p.JoinedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	const q = `
	INSERT INTO accounts (id, username, password_hash, created_at)
	VALUES ($1, $2, $3, $4)
	`
	_, err := s.pool.Exec(ctx, q, account.ID, account.Username, account.PasswordHash, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.UserID) (*model.Account, error) {
	return s.queryAccount(ctx, `SELECT id, username, password_hash, created_at FROM accounts WHERE id = $1`, id)
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.queryAccount(ctx, `SELECT id, username, password_hash, created_at FROM accounts WHERE username = $1`, username)
}

func (s *Storage) queryAccount(ctx context.Context, q string, arg any) (*model.Account, error) {
	var a model.Account
	err := s.pool.QueryRow(ctx, q, arg).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}
