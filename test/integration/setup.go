package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container and connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	dbConfig := config.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPool(ctx, dbConfig, logger)
	if err != nil {
		// The container maps to a random host port, so fall back to the
		// connection string it reports.
		poolConfig, parseErr := pgxpool.ParseConfig(connStr)
		if parseErr != nil {
			t.Fatalf("failed to parse connection string: %v", parseErr)
		}
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			t.Fatalf("failed to create connection pool: %v", err)
		}
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	createSchema(t, pool)

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// createSchema creates the database schema for testing.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			sku VARCHAR(100) NOT NULL UNIQUE,
			price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
			quantity INTEGER NOT NULL DEFAULT 0,
			allow_backorder BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS product_variants (
			id UUID PRIMARY KEY,
			product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			price_cents BIGINT,
			quantity INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS cart_items (
			id UUID PRIMARY KEY,
			user_id UUID,
			session_id VARCHAR(128),
			product_id UUID NOT NULL REFERENCES products(id),
			variant_id UUID REFERENCES product_variants(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (user_id IS NOT NULL OR session_id IS NOT NULL)
		);

		CREATE TABLE IF NOT EXISTS discount_codes (
			id UUID PRIMARY KEY,
			code VARCHAR(64) NOT NULL UNIQUE,
			type VARCHAR(20) NOT NULL,
			value NUMERIC(12, 4) NOT NULL,
			min_order_cents BIGINT,
			max_uses INTEGER,
			used_count INTEGER NOT NULL DEFAULT 0,
			starts_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			order_number VARCHAR(20) NOT NULL UNIQUE,
			user_id UUID,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(50),
			subtotal_cents BIGINT NOT NULL,
			discount_cents BIGINT NOT NULL DEFAULT 0,
			shipping_cents BIGINT NOT NULL DEFAULT 0,
			total_cents BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			status VARCHAR(20) NOT NULL,
			payment_status VARCHAR(20) NOT NULL,
			payment_session_id VARCHAR(255),
			payment_method VARCHAR(50),
			discount_code_id UUID REFERENCES discount_codes(id),
			shipping_first_name VARCHAR(100) NOT NULL,
			shipping_last_name VARCHAR(100) NOT NULL,
			shipping_phone VARCHAR(50) NOT NULL,
			shipping_street VARCHAR(255) NOT NULL,
			shipping_city VARCHAR(100) NOT NULL,
			shipping_state VARCHAR(100),
			shipping_postal_code VARCHAR(20),
			shipping_country VARCHAR(2) NOT NULL,
			notes TEXT,
			tracking_number VARCHAR(100),
			paid_at TIMESTAMPTZ,
			shipped_at TIMESTAMPTZ,
			delivered_at TIMESTAMPTZ,
			cancelled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL,
			variant_id UUID,
			name VARCHAR(255) NOT NULL,
			sku VARCHAR(100) NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			total_cents BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS order_events (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			status VARCHAR(20) NOT NULL,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS outbox (
			id BIGSERIAL PRIMARY KEY,
			event_id UUID NOT NULL,
			topic VARCHAR(255) NOT NULL,
			key VARCHAR(255) NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sent_at TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_cart_items_user_id ON cart_items(user_id);
		CREATE INDEX IF NOT EXISTS idx_cart_items_session_id ON cart_items(session_id);
		CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
		CREATE INDEX IF NOT EXISTS idx_order_events_order_id ON order_events(order_id);
		CREATE INDEX IF NOT EXISTS idx_outbox_unsent ON outbox(id) WHERE sent_at IS NULL;
	`

	_, err := pool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
}

// SeededCatalogue holds ids of the rows inserted by SeedCatalogue.
type SeededCatalogue struct {
	WidgetID    uuid.UUID
	GadgetID    uuid.UUID
	ScarceID    uuid.UUID
	BackorderID uuid.UUID
	VariantID   uuid.UUID
}

// SeedCatalogue inserts a small product catalogue for testing. Widget carries
// a variant with its own price and stock.
func SeedCatalogue(t *testing.T, pool *pgxpool.Pool) SeededCatalogue {
	t.Helper()

	ctx := context.Background()
	seeded := SeededCatalogue{
		WidgetID:    uuid.New(),
		GadgetID:    uuid.New(),
		ScarceID:    uuid.New(),
		BackorderID: uuid.New(),
		VariantID:   uuid.New(),
	}

	products := []struct {
		id             uuid.UUID
		name           string
		sku            string
		priceCents     int64
		quantity       int
		allowBackorder bool
	}{
		{seeded.WidgetID, "Widget", "WID-001", 5000, 100, false},
		{seeded.GadgetID, "Gadget", "GAD-001", 12000, 50, false},
		{seeded.ScarceID, "Scarce Item", "SCR-001", 3000, 2, false},
		{seeded.BackorderID, "Backorder Item", "BCK-001", 8000, 0, true},
	}

	for _, p := range products {
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, sku, price_cents, quantity, allow_backorder) VALUES ($1, $2, $3, $4, $5, $6)`,
			p.id, p.name, p.sku, p.priceCents, p.quantity, p.allowBackorder,
		)
		if err != nil {
			t.Fatalf("failed to seed product %s: %v", p.sku, err)
		}
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO product_variants (id, product_id, name, price_cents, quantity) VALUES ($1, $2, $3, $4, $5)`,
		seeded.VariantID, seeded.WidgetID, "Large", 7500, 10,
	)
	if err != nil {
		t.Fatalf("failed to seed variant: %v", err)
	}

	return seeded
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"outbox", "order_events", "order_items", "orders", "cart_items", "discount_codes", "product_variants", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
