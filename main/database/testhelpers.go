package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// OpenTest installs a migrated SQLite database as the process database for the
// duration of the test. Tests that use it must not run in parallel.
func OpenTest(t *testing.T) *sql.DB {
	t.Helper()

	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "test.db") + "?_pragma=busy_timeout(5000)"
	conn, err := sql.Open(DriverSQLite, dsn)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, Migrate(ctx, conn, DriverSQLite))

	Use(conn, DriverSQLite)
	t.Cleanup(func() {
		_ = Close()
	})
	return conn
}

// TestUser describes a Users row. Zero values give an active employee that
// already registered.
type TestUser struct {
	UserName              string
	NomeCompleto          string
	CPF                   string
	Matricula             string
	Departamento          string
	DescricaoDepartamento string
	Filial                string
	HierarchyPath         string
	Email                 string
	Role                  string
	PasswordHash          string
	Inactive              bool
	External              bool
	FirstLogin            bool
}

func CreateTestUser(t *testing.T, conn *sql.DB, u TestUser) int64 {
	t.Helper()

	if u.UserName == "" {
		u.UserName = u.CPF
	}
	if u.NomeCompleto == "" {
		u.NomeCompleto = "Usuário " + u.UserName
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	res, err := conn.Exec(`INSERT INTO Users
		(UserName, PasswordHash, nome, NomeCompleto, Departamento, DescricaoDepartamento, Filial,
		 CPF, Matricula, HierarchyPath, Email, Role, IsActive, IsExternal, FirstLogin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserName, u.PasswordHash, u.NomeCompleto, u.NomeCompleto, u.Departamento, u.DescricaoDepartamento, u.Filial,
		u.CPF, u.Matricula, u.HierarchyPath, u.Email, u.Role, flag(!u.Inactive), flag(u.External), flag(u.FirstLogin), now, now,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// TestEmployee describes a TAB_HIST_SRA row.
type TestEmployee struct {
	CPF          string
	Matricula    string
	Nome         string
	Departamento string
	Filial       string
	CentroCusto  string
	Status       string
	Admissao     string
}

func CreateTestEmployee(t *testing.T, conn *sql.DB, e TestEmployee) {
	t.Helper()

	if e.Status == "" {
		e.Status = "ATIVO"
	}
	if e.Admissao == "" {
		e.Admissao = "2020-01-01"
	}
	_, err := conn.Exec(`INSERT INTO TAB_HIST_SRA
		(MATRICULA, NOME, CPF, DEPARTAMENTO, FILIAL, CENTRO_CUSTO, STATUS_GERAL, DTA_ADMISSAO)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Matricula, e.Nome, e.CPF, e.Departamento, e.Filial, e.CentroCusto, e.Status, e.Admissao,
	)
	require.NoError(t, err)
}

// TestHierarchy describes a HIERARQUIA_CC row.
type TestHierarchy struct {
	Depto          string
	Descricao      string
	Responsavel    string
	CPFResponsavel string
	Filial         string
	Completa       string
}

func CreateTestHierarchy(t *testing.T, conn *sql.DB, h TestHierarchy) {
	t.Helper()

	_, err := conn.Exec(`INSERT INTO HIERARQUIA_CC
		(DEPTO_ATUAL, DESCRICAO_ATUAL, RESPONSAVEL_ATUAL, CPF_RESPONSAVEL, FILIAL, HIERARQUIA_COMPLETA)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.Depto, h.Descricao, h.Responsavel, h.CPFResponsavel, h.Filial, h.Completa,
	)
	require.NoError(t, err)
}

func flag(v bool) int {
	if v {
		return 1
	}
	return 0
}
