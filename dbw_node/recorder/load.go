package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	loop "dbw-bridge/dbw_node/control_loop"
)

type Run struct {
	ID        string
	StartedAt time.Time
	StoppedAt *time.Time
	Dropped   uint64

	Actuations []ActuationRow
	CTEs       []CTERow
}

type ActuationRow struct {
	At        time.Time
	Actuation loop.Actuation
}

type CTERow struct {
	At  time.Time
	CTE float64
}

// Runs lists the run ids in the database, oldest first.
func Runs(ctx context.Context, path string) ([]string, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT run_id FROM runs ORDER BY started_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Load reads one recorded run back.
func Load(ctx context.Context, path, runID string) (*Run, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	run := &Run{ID: runID}
	var started int64
	var stopped sql.NullInt64
	var dropped int64
	err = db.QueryRowContext(ctx, "SELECT started_at, stopped_at, dropped FROM runs WHERE run_id = ?", runID).
		Scan(&started, &stopped, &dropped)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	run.StartedAt = time.Unix(0, started)
	if stopped.Valid {
		t := time.Unix(0, stopped.Int64)
		run.StoppedAt = &t
	}
	run.Dropped = uint64(dropped)

	rows, err := db.QueryContext(ctx,
		"SELECT ts_ns, throttle, throttle_type, brake, brake_type, steering FROM actuation WHERE run_id = ? ORDER BY ts_ns, rowid", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ts int64
		var throttle, brake, steering float64
		var throttleType, brakeType int
		if err := rows.Scan(&ts, &throttle, &throttleType, &brake, &brakeType, &steering); err != nil {
			return nil, err
		}
		a := loop.NewActuation(throttle, brake, steering)
		a.Throttle.PedalCmdType = loop.PedalCmdType(throttleType)
		a.Brake.PedalCmdType = loop.PedalCmdType(brakeType)
		run.Actuations = append(run.Actuations, ActuationRow{At: time.Unix(0, ts), Actuation: a})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cteRows, err := db.QueryContext(ctx, "SELECT ts_ns, cte FROM cte WHERE run_id = ? ORDER BY ts_ns, rowid", runID)
	if err != nil {
		return nil, err
	}
	defer cteRows.Close()
	for cteRows.Next() {
		var ts int64
		var v float64
		if err := cteRows.Scan(&ts, &v); err != nil {
			return nil, err
		}
		run.CTEs = append(run.CTEs, CTERow{At: time.Unix(0, ts), CTE: v})
	}
	return run, cteRows.Err()
}
