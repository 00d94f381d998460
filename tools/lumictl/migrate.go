package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lumigente_backend/main/database"
	"lumigente_backend/main/play_sql"
)

var scriptFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the built-in schema, or a SQL script with --file",
	Long: `Without flags, creates the missing tables, columns and indexes of the
LumiGente schema. With --file, runs every statement of the script inside one
transaction. Statements end with a ';' at the end of a line or with a GO line.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVarP(&scriptFile, "file", "f", "", "SQL script to execute")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conn, err := database.Open()
	if err != nil {
		return err
	}
	defer database.Close()

	if scriptFile == "" {
		log.Info("applying schema", zap.String("driver", database.Driver()))
		if err := database.Migrate(ctx, conn, database.Driver()); err != nil {
			return err
		}
		log.Info("schema up to date")
		return nil
	}

	raw, err := os.ReadFile(scriptFile)
	if err != nil {
		return err
	}
	stmts := SplitStatements(string(raw))
	log.Info("running script", zap.String("file", scriptFile), zap.Int("statements", len(stmts)))
	if err := RunScript(ctx, stmts); err != nil {
		return err
	}
	log.Info("script applied", zap.String("file", scriptFile))
	return nil
}

// SplitStatements breaks a script into statements. A line holding only GO
// closes a batch, and so does a line ending in ';'. Comment-only batches
// are dropped.
func SplitStatements(script string) []string {
	var (
		out []string
		cur []string
	)
	flush := func() {
		stmt := strings.TrimSpace(strings.Join(cur, "\n"))
		cur = cur[:0]
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
		if stmt == "" || onlyComments(stmt) {
			return
		}
		out = append(out, stmt)
	}
	sc := bufio.NewScanner(strings.NewReader(script))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if strings.EqualFold(trimmed, "GO") {
			flush()
			continue
		}
		cur = append(cur, line)
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return out
}

func onlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

// RunScript executes stmts in one transaction on the process database.
func RunScript(ctx context.Context, stmts []string) error {
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range stmts {
			if _, err := play_sql.ExecOn(ctx, tx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}
