package pot

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the pot schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE pots (
			pot_id               TEXT PRIMARY KEY,
			min_temperature      REAL NOT NULL DEFAULT 10.0,
			max_temperature      REAL NOT NULL DEFAULT 35.0,
			humidity_thresholds  TEXT NOT NULL DEFAULT '{"very_low":20,"low":35,"high":65,"very_high":80}',
			illuminance_type     INTEGER NOT NULL DEFAULT 1,
			measure_interval_sec INTEGER NOT NULL DEFAULT 600,
			is_watering          INTEGER NOT NULL DEFAULT 0,
			credential_issued    INTEGER NOT NULL DEFAULT 0,
			created_at           TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at           TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE TABLE users (
			user_id       TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE TABLE connections (
			pot_id     TEXT NOT NULL REFERENCES pots(pot_id),
			user_id    TEXT NOT NULL REFERENCES users(user_id),
			is_active  INTEGER NOT NULL DEFAULT 1,
			is_admin   INTEGER NOT NULL DEFAULT 0,
			is_owner   INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (pot_id, user_id)
		) STRICT;
		CREATE UNIQUE INDEX ux_connections_active_owner
			ON connections(pot_id)
			WHERE is_active = 1 AND is_owner = 1;
		CREATE TABLE measures (
			pot_id        TEXT NOT NULL REFERENCES pots(pot_id),
			timestamp     INTEGER NOT NULL,
			air_temp      REAL NOT NULL,
			air_pressure  REAL NOT NULL,
			soil_moisture INTEGER NOT NULL,
			illuminance   INTEGER NOT NULL,
			PRIMARY KEY (pot_id, timestamp)
		) STRICT;
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testMeasure(potID string, ts int64) Measure {
	return Measure{
		PotID:        potID,
		Timestamp:    ts,
		AirTemp:      21.5,
		AirPressure:  1013.2,
		SoilMoisture: 40,
		Illuminance:  220,
	}
}

// =============================================================================
// Pot Tests
// =============================================================================

func TestEnsure(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Ensure(ctx, "POT1")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !created {
		t.Error("Ensure() created = false on first call, want true")
	}

	created, err = repo.Ensure(ctx, "POT1")
	if err != nil {
		t.Fatalf("Ensure() (repeat) error = %v", err)
	}
	if created {
		t.Error("Ensure() created = true on repeat call, want false")
	}

	exists, err := repo.Exists(ctx, "POT1")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false after Ensure()")
	}
}

func TestGetDefaults(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	p, err := repo.Get(ctx, "POT1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if p.MinTemperature != 10.0 || p.MaxTemperature != 35.0 {
		t.Errorf("temperature defaults = [%v, %v], want [10, 35]", p.MinTemperature, p.MaxTemperature)
	}
	if p.HumidityThresholds.VeryLow != 20 || p.HumidityThresholds.VeryHigh != 80 {
		t.Errorf("humidity defaults = %+v", p.HumidityThresholds)
	}
	if p.MeasureIntervalSec != 600 {
		t.Errorf("MeasureIntervalSec = %d, want 600", p.MeasureIntervalSec)
	}
	if p.IsWatering {
		t.Error("IsWatering = true for fresh pot")
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
}

func TestGetNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), "MISSING")
	if !errors.Is(err, ErrPotNotFound) {
		t.Errorf("Get() error = %v, want ErrPotNotFound", err)
	}
}

func TestUpdateConfig(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	cfg := DeviceConfig{
		Lux: 2,
		Moi: [4]int{10, 30, 60, 85},
		Tem: [2]float64{12.5, 30.0},
		Sle: 300,
	}
	if err := repo.UpdateConfig(ctx, "POT1", cfg); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}

	p, err := repo.Get(ctx, "POT1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.MinTemperature != 12.5 || p.MaxTemperature != 30.0 {
		t.Errorf("temperatures = [%v, %v], want [12.5, 30]", p.MinTemperature, p.MaxTemperature)
	}
	if p.HumidityThresholds != (HumidityThresholds{VeryLow: 10, Low: 30, High: 60, VeryHigh: 85}) {
		t.Errorf("HumidityThresholds = %+v", p.HumidityThresholds)
	}
	if p.IlluminanceType != 2 {
		t.Errorf("IlluminanceType = %d, want 2", p.IlluminanceType)
	}
	if p.MeasureIntervalSec != 300 {
		t.Errorf("MeasureIntervalSec = %d, want 300", p.MeasureIntervalSec)
	}
}

func TestUpdateConfigNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.UpdateConfig(context.Background(), "MISSING", DeviceConfig{Tem: [2]float64{10, 20}, Sle: 60})
	if !errors.Is(err, ErrPotNotFound) {
		t.Errorf("UpdateConfig() error = %v, want ErrPotNotFound", err)
	}
}

func TestSetWatering(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if err := repo.SetWatering(ctx, "POT1", true); err != nil {
		t.Fatalf("SetWatering() error = %v", err)
	}
	p, _ := repo.Get(ctx, "POT1")
	if !p.IsWatering {
		t.Error("IsWatering = false after SetWatering(true)")
	}

	if err := repo.SetWatering(ctx, "POT1", false); err != nil {
		t.Fatalf("SetWatering(false) error = %v", err)
	}
	p, _ = repo.Get(ctx, "POT1")
	if p.IsWatering {
		t.Error("IsWatering = true after SetWatering(false)")
	}
}

func TestCredentialIssuedLifecycle(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	issued, err := repo.CredentialIssued(ctx, "POT1")
	if err != nil {
		t.Fatalf("CredentialIssued() error = %v", err)
	}
	if issued {
		t.Error("CredentialIssued() = true for a fresh pot")
	}

	if err := repo.MarkCredentialIssued(ctx, "POT1"); err != nil {
		t.Fatalf("MarkCredentialIssued() error = %v", err)
	}

	issued, err = repo.CredentialIssued(ctx, "POT1")
	if err != nil {
		t.Fatalf("CredentialIssued() error = %v", err)
	}
	if !issued {
		t.Error("CredentialIssued() = false after MarkCredentialIssued()")
	}
}

func TestCredentialIssuedNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.CredentialIssued(ctx, "MISSING"); !errors.Is(err, ErrPotNotFound) {
		t.Errorf("CredentialIssued() error = %v, want ErrPotNotFound", err)
	}
	if err := repo.MarkCredentialIssued(ctx, "MISSING"); !errors.Is(err, ErrPotNotFound) {
		t.Errorf("MarkCredentialIssued() error = %v, want ErrPotNotFound", err)
	}
}

// =============================================================================
// Measurement Tests
// =============================================================================

func TestInsertAndListMeasurements(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	for _, ts := range []int64{1700000000, 1700000600, 1700001200} {
		if err := repo.InsertMeasurement(ctx, testMeasure("POT1", ts)); err != nil {
			t.Fatalf("InsertMeasurement(%d) error = %v", ts, err)
		}
	}

	measures, err := repo.ListMeasurements(ctx, "POT1", 2)
	if err != nil {
		t.Fatalf("ListMeasurements() error = %v", err)
	}
	if len(measures) != 2 {
		t.Fatalf("len(measures) = %d, want 2", len(measures))
	}
	// Newest first.
	if measures[0].Timestamp != 1700001200 || measures[1].Timestamp != 1700000600 {
		t.Errorf("order = [%d, %d], want [1700001200, 1700000600]", measures[0].Timestamp, measures[1].Timestamp)
	}
}

func TestInsertMeasurementDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	m := testMeasure("POT1", 1700000000)
	if err := repo.InsertMeasurement(ctx, m); err != nil {
		t.Fatalf("InsertMeasurement() error = %v", err)
	}
	// QoS 1 redelivery: same reading again must be a no-op, not an error.
	if err := repo.InsertMeasurement(ctx, m); err != nil {
		t.Fatalf("InsertMeasurement() (duplicate) error = %v", err)
	}

	measures, err := repo.ListMeasurements(ctx, "POT1", 10)
	if err != nil {
		t.Fatalf("ListMeasurements() error = %v", err)
	}
	if len(measures) != 1 {
		t.Errorf("len(measures) = %d, want 1", len(measures))
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func addUser(t *testing.T, db *sql.DB, userID string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO users (user_id, email, username, password_hash) VALUES (?, ?, ?, ?)",
		userID, userID+"@example.com", userID, "x",
	)
	if err != nil {
		t.Fatalf("inserting user %s: %v", userID, err)
	}
}

func TestCreateConnectionAndActiveOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	addUser(t, db, "alice")

	if _, err := repo.ActiveOwner(ctx, "POT1"); !errors.Is(err, ErrNoOwner) {
		t.Fatalf("ActiveOwner() error = %v, want ErrNoOwner", err)
	}

	conn := Connection{PotID: "POT1", UserID: "alice", IsActive: true, IsAdmin: true, IsOwner: true}
	if err := repo.CreateConnection(ctx, conn); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	owner, err := repo.ActiveOwner(ctx, "POT1")
	if err != nil {
		t.Fatalf("ActiveOwner() error = %v", err)
	}
	if owner != "alice" {
		t.Errorf("ActiveOwner() = %q, want alice", owner)
	}
}

func TestCreateConnectionOwnerConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	addUser(t, db, "alice")
	addUser(t, db, "bob")

	first := Connection{PotID: "POT1", UserID: "alice", IsActive: true, IsAdmin: true, IsOwner: true}
	if err := repo.CreateConnection(ctx, first); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	// Second active owner for the same pot violates the partial index.
	second := Connection{PotID: "POT1", UserID: "bob", IsActive: true, IsAdmin: true, IsOwner: true}
	err := repo.CreateConnection(ctx, second)
	if !errors.Is(err, ErrOwnerConflict) {
		t.Fatalf("CreateConnection() error = %v, want ErrOwnerConflict", err)
	}

	// Bob can still join as a plain member.
	second.IsAdmin = false
	second.IsOwner = false
	if err := repo.CreateConnection(ctx, second); err != nil {
		t.Fatalf("CreateConnection() (non-owner retry) error = %v", err)
	}
}

func TestCreateConnectionDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	addUser(t, db, "alice")

	conn := Connection{PotID: "POT1", UserID: "alice", IsActive: true}
	if err := repo.CreateConnection(ctx, conn); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	err := repo.CreateConnection(ctx, conn)
	if !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("CreateConnection() (duplicate) error = %v, want ErrAlreadyConnected", err)
	}
}

func TestTransferOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	addUser(t, db, "alice")
	addUser(t, db, "bob")

	if err := repo.CreateConnection(ctx, Connection{PotID: "POT1", UserID: "alice", IsActive: true, IsAdmin: true, IsOwner: true}); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	if err := repo.TransferOwner(ctx, "POT1", "bob"); err != nil {
		t.Fatalf("TransferOwner() error = %v", err)
	}

	owner, err := repo.ActiveOwner(ctx, "POT1")
	if err != nil {
		t.Fatalf("ActiveOwner() error = %v", err)
	}
	if owner != "bob" {
		t.Errorf("ActiveOwner() = %q, want bob", owner)
	}

	// Alice's connection is retired, not deleted.
	conns, err := repo.ListConnections(ctx, "POT1")
	if err != nil {
		t.Fatalf("ListConnections() error = %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("len(conns) = %d, want 2", len(conns))
	}
	for _, c := range conns {
		if c.UserID == "alice" && (c.IsActive || c.IsOwner) {
			t.Errorf("alice's connection still active/owner after transfer: %+v", c)
		}
	}
}

func TestTransferOwnerToExistingMember(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := repo.Ensure(ctx, "POT1"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	addUser(t, db, "alice")
	addUser(t, db, "bob")

	if err := repo.CreateConnection(ctx, Connection{PotID: "POT1", UserID: "alice", IsActive: true, IsAdmin: true, IsOwner: true}); err != nil {
		t.Fatalf("CreateConnection(alice) error = %v", err)
	}
	if err := repo.CreateConnection(ctx, Connection{PotID: "POT1", UserID: "bob", IsActive: true}); err != nil {
		t.Fatalf("CreateConnection(bob) error = %v", err)
	}

	// Bob already has a row; transfer must upgrade it, not fail on the PK.
	if err := repo.TransferOwner(ctx, "POT1", "bob"); err != nil {
		t.Fatalf("TransferOwner() error = %v", err)
	}

	owner, err := repo.ActiveOwner(ctx, "POT1")
	if err != nil {
		t.Fatalf("ActiveOwner() error = %v", err)
	}
	if owner != "bob" {
		t.Errorf("ActiveOwner() = %q, want bob", owner)
	}
}

func TestListUserPots(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, id := range []string{"POT1", "POT2", "POT3"} {
		if _, err := repo.Ensure(ctx, id); err != nil {
			t.Fatalf("Ensure(%s) error = %v", id, err)
		}
	}
	addUser(t, db, "alice")

	if err := repo.CreateConnection(ctx, Connection{PotID: "POT1", UserID: "alice", IsActive: true, IsOwner: true, IsAdmin: true}); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	if err := repo.CreateConnection(ctx, Connection{PotID: "POT3", UserID: "alice", IsActive: true}); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	pots, err := repo.ListUserPots(ctx, "alice")
	if err != nil {
		t.Fatalf("ListUserPots() error = %v", err)
	}
	if len(pots) != 2 {
		t.Fatalf("len(pots) = %d, want 2", len(pots))
	}
	if pots[0].PotID != "POT1" || pots[1].PotID != "POT3" {
		t.Errorf("pots = [%s, %s], want [POT1, POT3]", pots[0].PotID, pots[1].PotID)
	}
}
