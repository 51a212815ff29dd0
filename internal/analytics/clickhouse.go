package analytics

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseConfig mirrors the teacher's ClickHouseConfig, trimmed to
// the fields a single hand_history table needs.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Secure   bool
}

// ClickHouseSink implements HandHistorySink against a ClickHouse
// table, one row per completed hand.
type ClickHouseSink struct {
	conn clickhouse.Conn
}

// NewClickHouseSink dials ClickHouse and pings it before returning.
func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		TLS: &tls.Config{InsecureSkipVerify: cfg.Secure},
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: connect clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("analytics: ping clickhouse: %w", err)
	}
	return &ClickHouseSink{conn: conn}, nil
}

// CreateTable creates the hand_history table if it doesn't exist.
func (c *ClickHouseSink) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS hand_history (
			game_id String,
			hand_number Int32,
			pot Int64,
			street_reached String,
			fold_win Bool,
			winners Array(String),
			descriptions String,
			timestamp DateTime64(3)
		) ENGINE = ReplacingMergeTree(timestamp)
		ORDER BY (game_id, hand_number)
	`
	return c.conn.Exec(ctx, query)
}

// RecordHand inserts one row summarizing the completed hand.
func (c *ClickHouseSink) RecordHand(ctx context.Context, rec HandRecord) error {
	query := `
		INSERT INTO hand_history (
			game_id, hand_number, pot, street_reached, fold_win, winners, descriptions, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		rec.GameID, rec.HandNumber, rec.Pot, rec.StreetReached, rec.FoldWin,
		rec.Winners, describe(rec.Descriptions), rec.Timestamp,
	)
}

// Close releases the underlying connection pool.
func (c *ClickHouseSink) Close() error {
	return c.conn.Close()
}

func describe(m map[string]string) string {
	out := ""
	for id, desc := range m {
		if out != "" {
			out += "; "
		}
		out += id + ": " + desc
	}
	return out
}
