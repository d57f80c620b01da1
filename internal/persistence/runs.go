package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/regionsim/internal/agents"
	"github.com/talgya/regionsim/internal/engine"
	"github.com/talgya/regionsim/internal/world"
)

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of the runs table.
type Run struct {
	ID              string         `db:"id"`
	Seed            int64          `db:"seed"`
	Cycles          int            `db:"cycles"`
	StartedAt       string         `db:"started_at"`
	FinishedAt      sql.NullString `db:"finished_at"`
	ConfigJSON      string         `db:"config_json"`
	FinalCycle      int            `db:"final_cycle"`
	AliveRegions    int            `db:"alive_regions"`
	TotalPopulation float64        `db:"total_population"`
	TotalTrades     int            `db:"total_trades"`
	TotalEvents     int            `db:"total_events"`
	ClimateStress   float64        `db:"climate_stress"`
}

// CycleRow is one recorded cycle.
type CycleRow struct {
	Cycle         int    `db:"cycle"`
	Season        string `db:"season"`
	TradeCount    int    `db:"trade_count"`
	EventCount    int    `db:"event_count"`
	CollapseCount int    `db:"collapse_count"`
}

// RegionRow is one region's recorded state at the end of a cycle.
type RegionRow struct {
	Cycle      int     `db:"cycle"`
	Region     string  `db:"region"`
	Water      float64 `db:"water"`
	Food       float64 `db:"food"`
	Energy     float64 `db:"energy"`
	Land       float64 `db:"land"`
	Population float64 `db:"population"`
	Happiness  float64 `db:"happiness"`
	TechLevel  float64 `db:"tech_level"`
	Action     string  `db:"action"`
}

// TradeRow is one recorded trade.
type TradeRow struct {
	Cycle          int     `db:"cycle"`
	Buyer          string  `db:"buyer"`
	Seller         string  `db:"seller"`
	ResourceBought string  `db:"resource_bought"`
	Amount         float64 `db:"amount"`
	ResourceSold   string  `db:"resource_sold"`
	ExchangeAmount float64 `db:"exchange_amount"`
}

// EventRow is one recorded climate event.
type EventRow struct {
	Cycle    int     `db:"cycle"`
	Type     string  `db:"type"`
	Region   string  `db:"region"`
	Season   string  `db:"season"`
	Severity float64 `db:"severity"`
	IsGlobal bool    `db:"is_global"`
}

// AgentRow is one agent's statistics at the end of a run.
type AgentRow struct {
	Region           string  `db:"region"`
	Epsilon          float64 `db:"epsilon"`
	StatesVisited    int     `db:"states_visited"`
	Decisions        int     `db:"decisions"`
	DominantStrategy string  `db:"dominant_strategy"`
	AverageReward    float64 `db:"average_reward"`
}

// SaveCycle records one cycle's log and region snapshot in a single transaction.
func (db *DB) SaveCycle(runID string, log engine.CycleLog, rec engine.CycleRecord) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO cycles
		(run_id, cycle, season, trade_count, event_count, collapse_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, log.Cycle, log.Season, len(log.Trades), len(log.Events), len(log.Collapses),
	); err != nil {
		return fmt.Errorf("insert cycle %d: %w", log.Cycle, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO region_history
		(run_id, cycle, region, water, food, energy, land, population, happiness, tech_level, action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range rec.Regions {
		_, err := stmt.Exec(
			runID, rec.Cycle, s.Name,
			s.Resources[world.Water], s.Resources[world.Food],
			s.Resources[world.Energy], s.Resources[world.Land],
			s.Population, s.Happiness, s.TechLevel, s.Action.String(),
		)
		if err != nil {
			return fmt.Errorf("insert region %s: %w", s.Name, err)
		}
	}

	for _, e := range log.Events {
		_, err := tx.Exec(`INSERT INTO events
			(run_id, cycle, type, region, season, severity, is_global)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Cycle, e.Type.String(), e.Region, e.Season, e.Severity, e.IsGlobal,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	for _, t := range log.Trades {
		_, err := tx.Exec(`INSERT INTO trades
			(run_id, cycle, buyer, seller, resource_bought, amount, resource_sold, exchange_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, t.Cycle, t.Buyer, t.Seller, t.ResourceBought.String(), t.Amount,
			t.ResourceSold.String(), t.ExchangeAmount,
		)
		if err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
	}

	return tx.Commit()
}

// Recorder returns a cycle callback that saves every cycle of w under runID.
// It is meant for engine.Runner.OnCycle.
func (db *DB) Recorder(runID string, w *engine.World) func(engine.CycleLog) error {
	return func(log engine.CycleLog) error {
		cycles := w.History.Cycles
		if len(cycles) == 0 || cycles[len(cycles)-1].Cycle != log.Cycle {
			return fmt.Errorf("no history record for cycle %d", log.Cycle)
		}
		return db.SaveCycle(runID, log, cycles[len(cycles)-1])
	}
}

// SaveFinalState writes the end-of-run regions, relationships and agent
// statistics for a run (full replace).
func (db *DB) SaveFinalState(runID string, w *engine.World, stats []agents.AgentSummary) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"regions", "relationships", "agents"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
			return err
		}
	}

	for _, r := range w.Regions {
		resJSON, _ := json.Marshal(r.Resources)
		maxJSON, _ := json.Marshal(r.MaxResources)
		neighborsJSON, _ := json.Marshal(r.Neighbors)

		alive := 0
		if r.Alive {
			alive = 1
		}

		_, err := tx.Exec(`INSERT INTO regions
			(run_id, name, biome, alive, collapse_cycle, population, happiness, tech_level,
			 resources_json, max_resources_json, neighbors_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Name, r.Biome.String(), alive, r.CollapseCycle,
			r.Population, r.Happiness, r.TechLevel,
			string(resJSON), string(maxJSON), string(neighborsJSON),
		)
		if err != nil {
			return fmt.Errorf("insert region %s: %w", r.Name, err)
		}
	}

	for _, rel := range w.Trade.Ledger.All() {
		_, err := tx.Exec(`INSERT INTO relationships (run_id, region_a, region_b, score) VALUES (?, ?, ?, ?)`,
			runID, rel.A, rel.B, rel.Score,
		)
		if err != nil {
			return fmt.Errorf("insert relationship %s-%s: %w", rel.A, rel.B, err)
		}
	}

	if err := insertAgents(tx, runID, stats); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveAgents replaces only the agent statistics of a run.
func (db *DB) SaveAgents(runID string, stats []agents.AgentSummary) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents WHERE run_id = ?", runID); err != nil {
		return err
	}
	if err := insertAgents(tx, runID, stats); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAgents(tx *sqlx.Tx, runID string, stats []agents.AgentSummary) error {
	for _, s := range stats {
		_, err := tx.Exec(`INSERT INTO agents
			(run_id, region, epsilon, states_visited, decisions, dominant_strategy, average_reward)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, s.Region, s.Epsilon, s.StatesVisited, s.Decisions,
			s.DominantStrategy.String(), s.AverageReward,
		)
		if err != nil {
			return fmt.Errorf("insert agent %s: %w", s.Region, err)
		}
	}
	return nil
}

// FinishRun stores the run's closing summary.
func (db *DB) FinishRun(runID string, s engine.Summary) error {
	res, err := db.conn.Exec(`UPDATE runs SET
		finished_at = ?, final_cycle = ?, alive_regions = ?, total_population = ?,
		total_trades = ?, total_events = ?, climate_stress = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), s.Cycle, len(s.AliveRegions), s.TotalPopulation,
		s.TotalTrades, s.TotalEvents, s.ClimateStress, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	slog.Info("run saved", "run", runID, "cycle", s.Cycle, "alive", len(s.AliveRegions))
	return nil
}

// GetRun returns one run.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return r, err
}

// Runs returns every run, oldest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at, id")
	return runs, err
}

// Cycles returns a run's recorded cycles in order.
func (db *DB) Cycles(runID string) ([]CycleRow, error) {
	var rows []CycleRow
	err := db.conn.Select(&rows,
		"SELECT cycle, season, trade_count, event_count, collapse_count FROM cycles WHERE run_id = ? ORDER BY cycle",
		runID,
	)
	return rows, err
}

// RegionSeries returns one region's recorded states in cycle order.
func (db *DB) RegionSeries(runID, region string) ([]RegionRow, error) {
	var rows []RegionRow
	err := db.conn.Select(&rows,
		`SELECT cycle, region, water, food, energy, land, population, happiness, tech_level, action
		 FROM region_history WHERE run_id = ? AND region = ? ORDER BY cycle`,
		runID, region,
	)
	return rows, err
}

// Trades returns a run's trades in execution order.
func (db *DB) Trades(runID string) ([]TradeRow, error) {
	var rows []TradeRow
	err := db.conn.Select(&rows,
		`SELECT cycle, buyer, seller, resource_bought, amount, resource_sold, exchange_amount
		 FROM trades WHERE run_id = ? ORDER BY id`,
		runID,
	)
	return rows, err
}

// RecentEvents returns a run's most recent N events, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]EventRow, error) {
	var rows []EventRow
	err := db.conn.Select(&rows,
		`SELECT cycle, type, region, season, severity, is_global
		 FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		runID, limit,
	)
	return rows, err
}

// Agents returns a run's agent statistics.
func (db *DB) Agents(runID string) ([]AgentRow, error) {
	var rows []AgentRow
	err := db.conn.Select(&rows,
		`SELECT region, epsilon, states_visited, decisions, dominant_strategy, average_reward
		 FROM agents WHERE run_id = ? ORDER BY region`,
		runID,
	)
	return rows, err
}
