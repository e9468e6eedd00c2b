package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

// chConn drives the primary columnar warehouse. Bulk inserts go through
// PrepareBatch with per-column appends, so the wire order is exactly the
// caller's column order.
type chConn struct {
	conn driver.Conn
}

func openClickHouse(ctx context.Context, tgt *config.Target) (Conn, error) {
	opts, err := clickhouse.ParseDSN(tgt.URL)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConfig, err, "target %s: parse connection.url", tgt.Name)
	}
	if tgt.Username != "" {
		opts.Auth.Username = tgt.Username
		opts.Auth.Password = tgt.Password
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindLoad, err, "target %s: open", tgt.Name)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, etlerr.Wrap(etlerr.KindLoad, err, "target %s: ping", tgt.Name)
	}

	log.WithFields(log.Fields{"target": tgt.Name, "type": tgt.Type}).Debug("store connected")
	return &chConn{conn: conn}, nil
}

func (c *chConn) Exec(ctx context.Context, script string) error {
	if err := c.conn.Exec(ctx, script); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func (c *chConn) BulkInsert(ctx context.Context, table string, columns []ColumnData) error {
	if _, err := batchLen(columns); err != nil {
		return err
	}

	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}

	batch, err := c.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(names, ", ")))
	if err != nil {
		return fmt.Errorf("prepare batch for %s: %w", table, err)
	}
	// Abort is a no-op once Send succeeded
	defer batch.Abort()

	for i, col := range columns {
		if err := batch.Column(i).Append(col.Values); err != nil {
			return fmt.Errorf("append column %s: %w", col.Name, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch to %s: %w", table, err)
	}
	return nil
}

func (c *chConn) Count(ctx context.Context, table string) (int64, error) {
	var count uint64
	row := c.conn.QueryRow(ctx, fmt.Sprintf("SELECT count() FROM %s", table))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return int64(count), nil
}

func (c *chConn) Tables(ctx context.Context, prefix string) ([]string, error) {
	rows, err := c.conn.Query(ctx,
		"SELECT name FROM system.tables WHERE database = currentDatabase() AND name LIKE ? ORDER BY name",
		prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *chConn) Close() error { return c.conn.Close() }
