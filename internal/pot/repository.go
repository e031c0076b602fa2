package pot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Repository defines the interface for pot persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Exists reports whether a pot with the given id is registered.
	Exists(ctx context.Context, potID string) (bool, error)

	// Ensure registers a pot with default configuration if it is not
	// already known. Returns true when this call created the record.
	Ensure(ctx context.Context, potID string) (bool, error)

	// Get retrieves a pot by id.
	// Returns ErrPotNotFound if the pot does not exist.
	Get(ctx context.Context, potID string) (*Pot, error)

	// UpdateConfig persists a configuration pushed to the device.
	// Returns ErrPotNotFound if the pot does not exist.
	UpdateConfig(ctx context.Context, potID string, cfg DeviceConfig) error

	// SetWatering updates the pump state reported by the device.
	// Returns ErrPotNotFound if the pot does not exist.
	SetWatering(ctx context.Context, potID string, watering bool) error

	// CredentialIssued reports whether the pot's broker credential has
	// been delivered. Returns ErrPotNotFound if the pot does not exist.
	CredentialIssued(ctx context.Context, potID string) (bool, error)

	// MarkCredentialIssued records that the pot's broker credential has
	// been delivered. Returns ErrPotNotFound if the pot does not exist.
	MarkCredentialIssued(ctx context.Context, potID string) error

	// InsertMeasurement stores a sensor reading. Duplicate deliveries of
	// the same (pot, timestamp) reading are silently collapsed.
	InsertMeasurement(ctx context.Context, m Measure) error

	// ListMeasurements returns up to limit readings for a pot, newest first.
	ListMeasurements(ctx context.Context, potID string, limit int) ([]Measure, error)

	// ActiveOwner returns the user id of the pot's active owner.
	// Returns ErrNoOwner if the pot has no active owner connection.
	ActiveOwner(ctx context.Context, potID string) (string, error)

	// CreateConnection inserts a user↔pot connection.
	// Returns ErrOwnerConflict if it would create a second active owner,
	// ErrAlreadyConnected if the pair already exists.
	CreateConnection(ctx context.Context, conn Connection) error

	// TransferOwner atomically deactivates the current owner connection
	// and installs the new user as active owner and admin.
	TransferOwner(ctx context.Context, potID, newUserID string) error

	// ListConnections returns all connections for a pot.
	ListConnections(ctx context.Context, potID string) ([]Connection, error)

	// ListUserPots returns the pots a user holds an active connection to.
	ListUserPots(ctx context.Context, userID string) ([]Pot, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const potColumns = `pot_id, min_temperature, max_temperature, humidity_thresholds,
	illuminance_type, measure_interval_sec, is_watering, created_at, updated_at`

// Exists reports whether a pot with the given id is registered.
func (r *SQLiteRepository) Exists(ctx context.Context, potID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pots WHERE pot_id = ?", potID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking pot exists: %w", err)
	}
	return count > 0, nil
}

// Ensure registers a pot with default configuration if it is not already known.
func (r *SQLiteRepository) Ensure(ctx context.Context, potID string) (bool, error) {
	// Schema defaults fill every configuration column.
	res, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO pots (pot_id) VALUES (?)", potID)
	if err != nil {
		return false, fmt.Errorf("ensuring pot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensuring pot: %w", err)
	}
	return n > 0, nil
}

// Get retrieves a pot by id.
func (r *SQLiteRepository) Get(ctx context.Context, potID string) (*Pot, error) {
	query := "SELECT " + potColumns + " FROM pots WHERE pot_id = ?"

	row := r.db.QueryRowContext(ctx, query, potID)
	p, err := scanPot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPotNotFound
		}
		return nil, fmt.Errorf("querying pot by id: %w", err)
	}
	return p, nil
}

// UpdateConfig persists a configuration pushed to the device.
func (r *SQLiteRepository) UpdateConfig(ctx context.Context, potID string, cfg DeviceConfig) error {
	thresholds, err := json.Marshal(HumidityThresholds{
		VeryLow:  cfg.Moi[0],
		Low:      cfg.Moi[1],
		High:     cfg.Moi[2],
		VeryHigh: cfg.Moi[3],
	})
	if err != nil {
		return fmt.Errorf("encoding humidity thresholds: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE pots
		SET min_temperature = ?, max_temperature = ?, humidity_thresholds = ?,
			illuminance_type = ?, measure_interval_sec = ?, updated_at = ?
		WHERE pot_id = ?`,
		cfg.Tem[0], cfg.Tem[1], string(thresholds),
		cfg.Lux, cfg.Sle, time.Now().UTC().Format(time.RFC3339),
		potID,
	)
	if err != nil {
		return fmt.Errorf("updating pot config: %w", err)
	}
	return requireRow(res, potID)
}

// SetWatering updates the pump state reported by the device.
func (r *SQLiteRepository) SetWatering(ctx context.Context, potID string, watering bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE pots SET is_watering = ?, updated_at = ? WHERE pot_id = ?",
		boolToInt(watering), time.Now().UTC().Format(time.RFC3339), potID,
	)
	if err != nil {
		return fmt.Errorf("updating watering state: %w", err)
	}
	return requireRow(res, potID)
}

// CredentialIssued reports whether the pot's broker credential has been delivered.
func (r *SQLiteRepository) CredentialIssued(ctx context.Context, potID string) (bool, error) {
	var issued int
	err := r.db.QueryRowContext(ctx,
		"SELECT credential_issued FROM pots WHERE pot_id = ?", potID).Scan(&issued)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrPotNotFound, potID)
	}
	if err != nil {
		return false, fmt.Errorf("querying credential state: %w", err)
	}
	return issued != 0, nil
}

// MarkCredentialIssued records that the pot's broker credential has been delivered.
func (r *SQLiteRepository) MarkCredentialIssued(ctx context.Context, potID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE pots SET credential_issued = 1, updated_at = ? WHERE pot_id = ?",
		time.Now().UTC().Format(time.RFC3339), potID,
	)
	if err != nil {
		return fmt.Errorf("recording credential issuance: %w", err)
	}
	return requireRow(res, potID)
}

// InsertMeasurement stores a sensor reading.
func (r *SQLiteRepository) InsertMeasurement(ctx context.Context, m Measure) error {
	// INSERT OR IGNORE: QoS 1 can redeliver a reading; (pot_id, timestamp)
	// is the primary key, so the duplicate is dropped, not an error.
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO measures
			(pot_id, timestamp, air_temp, air_pressure, soil_moisture, illuminance)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.PotID, m.Timestamp, m.AirTemp, m.AirPressure, m.SoilMoisture, m.Illuminance,
	)
	if err != nil {
		return fmt.Errorf("inserting measurement: %w", err)
	}
	return nil
}

// ListMeasurements returns up to limit readings for a pot, newest first.
func (r *SQLiteRepository) ListMeasurements(ctx context.Context, potID string, limit int) ([]Measure, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pot_id, timestamp, air_temp, air_pressure, soil_moisture, illuminance
		FROM measures
		WHERE pot_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		potID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	var measures []Measure
	for rows.Next() {
		var m Measure
		if err := rows.Scan(&m.PotID, &m.Timestamp, &m.AirTemp, &m.AirPressure, &m.SoilMoisture, &m.Illuminance); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}
		measures = append(measures, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurements: %w", err)
	}
	return measures, nil
}

// ActiveOwner returns the user id of the pot's active owner.
func (r *SQLiteRepository) ActiveOwner(ctx context.Context, potID string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id FROM connections
		WHERE pot_id = ? AND is_active = 1 AND is_owner = 1`,
		potID,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoOwner
	}
	if err != nil {
		return "", fmt.Errorf("querying active owner: %w", err)
	}
	return userID, nil
}

// CreateConnection inserts a user↔pot connection.
func (r *SQLiteRepository) CreateConnection(ctx context.Context, conn Connection) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connections (pot_id, user_id, is_active, is_admin, is_owner)
		VALUES (?, ?, ?, ?, ?)`,
		conn.PotID, conn.UserID,
		boolToInt(conn.IsActive), boolToInt(conn.IsAdmin), boolToInt(conn.IsOwner),
	)
	if err != nil {
		if constraint, ok := asConstraintError(err); ok {
			// The partial owner index and the (pot, user) primary key are
			// the only unique constraints on connections.
			if conn.IsOwner && conn.IsActive && constraint == sqlite3.ErrConstraintUnique {
				return ErrOwnerConflict
			}
			return ErrAlreadyConnected
		}
		return fmt.Errorf("creating connection: %w", err)
	}
	return nil
}

// TransferOwner atomically deactivates the current owner connection and
// installs the new user as active owner and admin.
func (r *SQLiteRepository) TransferOwner(ctx context.Context, potID, newUserID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transfer: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Retire the outgoing owner's connection entirely; after a factory
	// reset the pot no longer knows them.
	if _, err := tx.ExecContext(ctx, `
		UPDATE connections SET is_active = 0, is_owner = 0
		WHERE pot_id = ? AND is_active = 1 AND is_owner = 1`,
		potID,
	); err != nil {
		return fmt.Errorf("retiring previous owner: %w", err)
	}

	// The new owner may already hold a plain connection to this pot.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO connections (pot_id, user_id, is_active, is_admin, is_owner)
		VALUES (?, ?, 1, 1, 1)
		ON CONFLICT (pot_id, user_id)
		DO UPDATE SET is_active = 1, is_admin = 1, is_owner = 1`,
		potID, newUserID,
	); err != nil {
		return fmt.Errorf("installing new owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transfer: %w", err)
	}
	return nil
}

// ListConnections returns all connections for a pot.
func (r *SQLiteRepository) ListConnections(ctx context.Context, potID string) ([]Connection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pot_id, user_id, is_active, is_admin, is_owner, created_at
		FROM connections
		WHERE pot_id = ?
		ORDER BY created_at`,
		potID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		var c Connection
		var active, admin, owner int
		var createdAt string
		if err := rows.Scan(&c.PotID, &c.UserID, &active, &admin, &owner, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		c.IsActive = active == 1
		c.IsAdmin = admin == 1
		c.IsOwner = owner == 1
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			c.CreatedAt = t
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connections: %w", err)
	}
	return conns, nil
}

// ListUserPots returns the pots a user holds an active connection to.
func (r *SQLiteRepository) ListUserPots(ctx context.Context, userID string) ([]Pot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pots.pot_id, pots.min_temperature, pots.max_temperature, pots.humidity_thresholds,
			pots.illuminance_type, pots.measure_interval_sec, pots.is_watering, pots.created_at, pots.updated_at
		FROM pots
		JOIN connections USING (pot_id)
		WHERE connections.user_id = ? AND connections.is_active = 1
		ORDER BY pot_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying user pots: %w", err)
	}
	defer rows.Close()

	var pots []Pot
	for rows.Next() {
		p, err := scanPot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pot: %w", err)
		}
		pots = append(pots, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pots: %w", err)
	}
	return pots, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPot scans a pot row in potColumns order.
func scanPot(row rowScanner) (*Pot, error) {
	var p Pot
	var thresholds string
	var watering int
	var createdAt, updatedAt string

	err := row.Scan(
		&p.PotID, &p.MinTemperature, &p.MaxTemperature, &thresholds,
		&p.IlluminanceType, &p.MeasureIntervalSec, &watering,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(thresholds), &p.HumidityThresholds); err != nil {
		return nil, fmt.Errorf("decoding humidity thresholds: %w", err)
	}
	p.IsWatering = watering == 1

	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &p, nil
}

// requireRow converts a zero-row UPDATE into ErrPotNotFound.
func requireRow(res sql.Result, potID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPotNotFound, potID)
	}
	return nil
}

// asConstraintError unwraps a sqlite3 constraint violation.
func asConstraintError(err error) (sqlite3.ErrNoExtended, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return sqliteErr.ExtendedCode, true
	}
	return 0, false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
