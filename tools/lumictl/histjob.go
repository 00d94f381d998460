package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const recentRun = 120 * time.Second

var (
	jobName     string
	jobTable    string
	jobDSN      string
	jobInterval time.Duration
	jobAttempts int
)

var histjobCmd = &cobra.Command{
	Use:   "histjob",
	Short: "Run the SQL Server Agent job that refreshes TAB_HIST_SRA and wait for it",
	RunE:  runHistjob,
}

func init() {
	f := histjobCmd.Flags()
	f.StringVar(&jobName, "job", "TAB_HIST_SRA", "Agent job name")
	f.StringVar(&jobTable, "table", "TAB_HIST_SRA", "table counted after the run")
	f.StringVar(&jobDSN, "dsn", "", "sqlserver:// connection string (default SQLSERVER_DSN)")
	f.DurationVar(&jobInterval, "interval", 5*time.Second, "time between status checks")
	f.IntVar(&jobAttempts, "attempts", 60, "status checks before giving up")
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type jobRun struct {
	Status   int
	Step     string
	Message  string
	Finished time.Time
}

// Outcome of one execution as recorded by sysjobhistory.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
	Unknown   Outcome = "unknown"
	TimedOut  Outcome = "timeout"
)

func (r jobRun) outcome() Outcome {
	switch r.Status {
	case 1:
		return Succeeded
	case 0:
		return Failed
	}
	return Unknown
}

// Agent is the slice of SQL Server Agent the command needs.
type Agent interface {
	Job(ctx context.Context, name string) (enabled, found bool, err error)
	Start(ctx context.Context, name string) error
	LatestRun(ctx context.Context, name string) (jobRun, bool, error)
	Count(ctx context.Context, table string) (int, error)
}

type sqlAgent struct{ db *sql.DB }

func (a sqlAgent) Job(ctx context.Context, name string) (bool, bool, error) {
	var enabled int
	err := a.db.QueryRowContext(ctx, "SELECT enabled FROM msdb.dbo.sysjobs WHERE name = @p1", name).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	return enabled == 1, err == nil, err
}

func (a sqlAgent) Start(ctx context.Context, name string) error {
	_, err := a.db.ExecContext(ctx, "EXEC msdb.dbo.sp_start_job @job_name = @p1", name)
	return err
}

func (a sqlAgent) LatestRun(ctx context.Context, name string) (jobRun, bool, error) {
	var (
		status           sql.NullInt64
		runDate, runTime int
		step, message    sql.NullString
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT TOP 1 h.run_status, h.step_name, h.message, h.run_date, h.run_time
		FROM msdb.dbo.sysjobhistory h
		INNER JOIN msdb.dbo.sysjobs j ON h.job_id = j.job_id
		WHERE j.name = @p1
		ORDER BY h.run_date DESC, h.run_time DESC`, name).Scan(&status, &step, &message, &runDate, &runTime)
	if errors.Is(err, sql.ErrNoRows) {
		return jobRun{}, false, nil
	}
	if err != nil {
		return jobRun{}, false, err
	}
	if !status.Valid {
		return jobRun{}, false, nil
	}
	return jobRun{
		Status:   int(status.Int64),
		Step:     step.String,
		Message:  message.String,
		Finished: agentTime(runDate, runTime),
	}, true, nil
}

func (a sqlAgent) Count(ctx context.Context, table string) (int, error) {
	if !identifier.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

// agentTime decodes the YYYYMMDD and HHMMSS integers Agent history uses.
func agentTime(runDate, runTime int) time.Time {
	return time.Date(runDate/10000, time.Month(runDate/100%100), runDate%100,
		runTime/10000, runTime/100%100, runTime%100, 0, time.Local)
}

type jobOptions struct {
	Name     string
	Table    string
	Interval time.Duration
	Attempts int
}

type jobReport struct {
	Outcome Outcome
	Run     jobRun
	Rows    int
}

// RunJob starts the job and polls its history until a run finished within
// the last two minutes shows up or the attempts run out. The target table
// is counted either way.
func RunJob(ctx context.Context, a Agent, clock clockwork.Clock, opts jobOptions, out io.Writer) (jobReport, error) {
	var rep jobReport
	enabled, found, err := a.Job(ctx, opts.Name)
	if err != nil {
		return rep, err
	}
	if !found {
		return rep, fmt.Errorf("job %s not found", opts.Name)
	}
	if !enabled {
		log.Warn("job is disabled, starting it anyway", zap.String("job", opts.Name))
	}

	started := clock.Now()
	if err := a.Start(ctx, opts.Name); err != nil {
		return rep, fmt.Errorf("start job %s: %w", opts.Name, err)
	}
	fmt.Fprintf(out, "job %s started at %s\n", opts.Name, started.Format("02/01/2006 15:04:05"))

	rep.Outcome = TimedOut
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return rep, ctx.Err()
		case <-clock.After(opts.Interval):
		}
		run, ok, err := a.LatestRun(ctx, opts.Name)
		if err != nil {
			return rep, err
		}
		if ok && clock.Now().Sub(run.Finished) < recentRun {
			rep.Run = run
			rep.Outcome = run.outcome()
			break
		}
		log.Debug("waiting for job", zap.String("job", opts.Name), zap.Int("attempt", attempt))
	}

	switch rep.Outcome {
	case Succeeded:
		fmt.Fprintf(out, "job succeeded, step %s, finished %s\n", rep.Run.Step, rep.Run.Finished.Format("02/01/2006 15:04:05"))
	case Failed:
		msg := rep.Run.Message
		if msg == "" {
			msg = "no message"
		}
		fmt.Fprintf(out, "job failed, step %s: %s\n", rep.Run.Step, msg)
	case Unknown:
		fmt.Fprintf(out, "job finished with unknown status %d\n", rep.Run.Status)
	default:
		fmt.Fprintln(out, "timed out waiting for the job; check SQL Server Agent")
	}

	if rep.Rows, err = a.Count(ctx, opts.Table); err != nil {
		return rep, err
	}
	fmt.Fprintf(out, "%s rows: %d (%.2fs)\n", opts.Table, rep.Rows, clock.Since(started).Seconds())
	return rep, nil
}

func runHistjob(cmd *cobra.Command, args []string) error {
	dsn := jobDSN
	if dsn == "" {
		dsn = cfg.AgentDSN
	}
	if dsn == "" {
		return errors.New("no SQL Server connection: pass --dsn or set SQLSERVER_DSN")
	}
	if !identifier.MatchString(jobTable) {
		return fmt.Errorf("invalid table name %q", jobTable)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(cmd.Context()); err != nil {
		return fmt.Errorf("connect to SQL Server: %w", err)
	}

	rep, err := RunJob(cmd.Context(), sqlAgent{db: db}, clockwork.NewRealClock(), jobOptions{
		Name:     jobName,
		Table:    jobTable,
		Interval: jobInterval,
		Attempts: jobAttempts,
	}, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if rep.Outcome == Failed {
		return fmt.Errorf("job %s failed", jobName)
	}
	return nil
}
