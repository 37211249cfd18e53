package counters

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/postgres"
	"github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS counter_data (
    name  TEXT   NOT NULL,
    day   DATE   NOT NULL,
    value BIGINT NOT NULL,
    PRIMARY KEY (name, day)
)`

// PostgresStore holds archived day totals.
//
// It requires a `counter_data` table, created by EnsureSchema:
//
//	CREATE TABLE counter_data (
//	    name  TEXT   NOT NULL,
//	    day   DATE   NOT NULL,
//	    value BIGINT NOT NULL,
//	    PRIMARY KEY (name, day)
//	);
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "counter-postgres-store"),
	}
}

// EnsureSchema creates the counter_data table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating counter_data table: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCounterData(ctx context.Context, names []string, start, end *time.Time) (AggregateData, error) {
	data := newAggregate(names)
	if len(names) == 0 {
		return data, nil
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT name, day, value FROM counter_data
		 WHERE name = ANY($1)
		   AND ($2::date IS NULL OR day >= $2::date)
		   AND ($3::date IS NULL OR day <= $3::date)
		 ORDER BY name, day`,
		pq.Array(names), dateArg(start), dateArg(end),
	)
	if err != nil {
		return nil, fmt.Errorf("querying counter data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			day   time.Time
			value int64
		)
		if err := rows.Scan(&name, &day, &value); err != nil {
			return nil, fmt.Errorf("scanning counter row: %w", err)
		}
		data[name] = append(data[name], DataPoint{Timestamp: truncateDay(day).Unix(), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counter rows: %w", err)
	}

	for _, points := range data {
		sortPoints(points)
	}
	return data, nil
}

// SaveDays upserts the given day totals for name in a single transaction.
func (s *PostgresStore) SaveDays(ctx context.Context, name string, days map[string]int64) error {
	if len(days) == 0 {
		return nil
	}
	keys := make([]string, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Strings(keys)

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, day := range keys {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO counter_data (name, day, value) VALUES ($1, $2, $3)
				 ON CONFLICT (name, day) DO UPDATE SET value = EXCLUDED.value`,
				name, day, days[day],
			)
			if err != nil {
				return fmt.Errorf("upserting %s/%s: %w", name, day, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("counter days saved", "counter", name, "days", len(keys))
	return nil
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(DayLayout)
}
