package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

// pgConn drives a PostgreSQL target. Bulk inserts use CopyFrom, which is
// row-oriented; the column batch is transposed on the fly.
type pgConn struct {
	conn *pgx.Conn
}

func openPostgres(ctx context.Context, tgt *config.Target) (Conn, error) {
	cfg, err := pgx.ParseConfig(tgt.URL)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConfig, err, "target %s: parse connection.url", tgt.Name)
	}
	if tgt.Username != "" {
		cfg.User = tgt.Username
		cfg.Password = tgt.Password
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindLoad, err, "target %s: connect", tgt.Name)
	}

	log.WithFields(log.Fields{"target": tgt.Name, "type": tgt.Type}).Debug("store connected")
	return &pgConn{conn: conn}, nil
}

func (c *pgConn) Exec(ctx context.Context, script string) error {
	if _, err := c.conn.Exec(ctx, script); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func (c *pgConn) BulkInsert(ctx context.Context, table string, columns []ColumnData) error {
	n, err := batchLen(columns)
	if err != nil {
		return err
	}

	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}

	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = col.Value(i)
		}
		rows[i] = row
	}

	copied, err := c.conn.CopyFrom(ctx, pgx.Identifier{table}, names, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", table, err)
	}
	if copied != int64(n) {
		return fmt.Errorf("copy into %s: wrote %d of %d rows", table, copied, n)
	}
	return nil
}

func (c *pgConn) Count(ctx context.Context, table string) (int64, error) {
	var count int64
	if err := c.conn.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

func (c *pgConn) Tables(ctx context.Context, prefix string) ([]string, error) {
	rows, err := c.conn.Query(ctx,
		"SELECT tablename FROM pg_tables WHERE schemaname = current_schema() AND tablename LIKE $1 ORDER BY tablename",
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

func (c *pgConn) Close() error { return c.conn.Close(context.Background()) }
