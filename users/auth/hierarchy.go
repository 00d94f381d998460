package auth

import (
	"context"
	"fmt"
	"strings"

	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/access"
)

// Employee is the most recent TAB_HIST_SRA row for a CPF.
type Employee struct {
	Matricula    string
	Nome         string
	CPF          string
	Departamento string
	Filial       string
	CentroCusto  string
	Status       string
	Admissao     string
}

func (e Employee) Active() bool {
	return strings.EqualFold(strings.TrimSpace(e.Status), "ATIVO")
}

// LatestEmployee prefers the active contract, then the latest admission.
func LatestEmployee(ctx context.Context, cpf string) (Employee, bool, error) {
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT MATRICULA, NOME, CPF, DEPARTAMENTO, FILIAL, CENTRO_CUSTO, STATUS_GERAL, DTA_ADMISSAO
		FROM TAB_HIST_SRA
		WHERE CPF = ? OR CPF = ?
		ORDER BY CASE WHEN STATUS_GERAL = 'ATIVO' THEN 0 ELSE 1 END, DTA_ADMISSAO DESC, MATRICULA DESC
		LIMIT 1`, Digits(cpf), FormatCPF(cpf))
	if err != nil || !found {
		return Employee{}, false, err
	}
	return Employee{
		Matricula:    row["MATRICULA"],
		Nome:         strings.TrimSpace(row["NOME"]),
		CPF:          row["CPF"],
		Departamento: strings.TrimSpace(row["DEPARTAMENTO"]),
		Filial:       row["FILIAL"],
		CentroCusto:  row["CENTRO_CUSTO"],
		Status:       row["STATUS_GERAL"],
		Admissao:     row["DTA_ADMISSAO"],
	}, true, nil
}

// HierarchyPath finds the path of the department the employee manages, or of
// the department the employee works in.
func HierarchyPath(ctx context.Context, e Employee) (string, error) {
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT HIERARQUIA_COMPLETA FROM HIERARQUIA_CC
		WHERE RESPONSAVEL_ATUAL = ? AND (CPF_RESPONSAVEL = ? OR CPF_RESPONSAVEL = ? OR CPF_RESPONSAVEL IS NULL)
		ORDER BY LENGTH(HIERARQUIA_COMPLETA) DESC
		LIMIT 1`, e.Matricula, Digits(e.CPF), FormatCPF(e.CPF))
	if err != nil {
		return "", fmt.Errorf("hierarchy as responsible: %w", err)
	}
	if found {
		return cleanPath(row["HIERARQUIA_COMPLETA"]), nil
	}
	if e.Departamento == "" {
		return "", nil
	}
	row, found, err = play_sql.QueryRow(ctx, `
		SELECT HIERARQUIA_COMPLETA FROM HIERARQUIA_CC
		WHERE TRIM(DEPTO_ATUAL) = TRIM(?)
		ORDER BY LENGTH(HIERARQUIA_COMPLETA) DESC
		LIMIT 1`, e.Departamento)
	if err != nil {
		return "", fmt.Errorf("hierarchy of department: %w", err)
	}
	if !found {
		return "", nil
	}
	return cleanPath(row["HIERARQUIA_COMPLETA"]), nil
}

func cleanPath(path string) string {
	parts := []string{}
	for _, p := range strings.Split(path, ">") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " > ")
}

// Level is the hierarchy level of a matricula: the position of the managed
// department inside its path, 1 for people who manage nothing.
func Level(ctx context.Context, matricula, filial string) (int, error) {
	if strings.TrimSpace(matricula) == "" {
		return 1, nil
	}
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT DEPTO_ATUAL, HIERARQUIA_COMPLETA FROM HIERARQUIA_CC
		WHERE RESPONSAVEL_ATUAL = ? AND (FILIAL = ? OR ? = '' OR FILIAL IS NULL)
		ORDER BY LENGTH(HIERARQUIA_COMPLETA) DESC
		LIMIT 1`, matricula, filial, filial)
	if err != nil {
		return 1, err
	}
	if !found {
		return 1, nil
	}
	return access.LevelFromPath(row["HIERARQUIA_COMPLETA"], row["DEPTO_ATUAL"], true), nil
}

// IsResponsible reports whether matricula manages any department.
func IsResponsible(ctx context.Context, matricula string) (bool, error) {
	if strings.TrimSpace(matricula) == "" {
		return false, nil
	}
	n, err := play_sql.Count(ctx, "SELECT COUNT(*) AS total FROM HIERARQUIA_CC WHERE RESPONSAVEL_ATUAL = ?", matricula)
	return n > 0, err
}

// ManagedDepartment is one HIERARQUIA_CC row a user is responsible for.
type ManagedDepartment struct {
	Depto     string `json:"DEPTO_ATUAL"`
	Descricao string `json:"DESCRICAO_ATUAL"`
	Path      string `json:"HIERARQUIA_COMPLETA"`
}

func ManagedDepartments(ctx context.Context, matricula string) ([]ManagedDepartment, error) {
	if strings.TrimSpace(matricula) == "" {
		return []ManagedDepartment{}, nil
	}
	rows, err := play_sql.QueryRows(ctx, `
		SELECT DISTINCT DEPTO_ATUAL, DESCRICAO_ATUAL, HIERARQUIA_COMPLETA
		FROM HIERARQUIA_CC WHERE RESPONSAVEL_ATUAL = ?
		ORDER BY DEPTO_ATUAL`, matricula)
	if err != nil {
		return nil, err
	}
	out := make([]ManagedDepartment, 0, len(rows))
	for _, row := range rows {
		out = append(out, ManagedDepartment{
			Depto:     strings.TrimSpace(row["DEPTO_ATUAL"]),
			Descricao: row["DESCRICAO_ATUAL"],
			Path:      row["HIERARQUIA_COMPLETA"],
		})
	}
	return out, nil
}

// TeamUserIDs returns the active users working in a department the manager
// is responsible for, the manager excluded.
func TeamUserIDs(ctx context.Context, manager *access.User) ([]int64, error) {
	if manager == nil || strings.TrimSpace(manager.Matricula) == "" {
		return []int64{}, nil
	}
	rows, err := play_sql.QueryRows(ctx, `
		SELECT DISTINCT u.Id
		FROM Users u
		JOIN TAB_HIST_SRA s ON s.MATRICULA = u.Matricula
		JOIN HIERARQUIA_CC h ON TRIM(h.DEPTO_ATUAL) = TRIM(s.DEPARTAMENTO)
		WHERE h.RESPONSAVEL_ATUAL = ? AND u.IsActive = 1 AND s.STATUS_GERAL = 'ATIVO' AND u.Id <> ?
		ORDER BY u.Id`, manager.Matricula, manager.ID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(rows))
	for _, row := range rows {
		out = append(out, play_sql.ToInt64(row["Id"]))
	}
	return out, nil
}

// ManagerUserID resolves the user responsible for the cost center an
// employee works in. Found is false when no registered user manages it.
func ManagerUserID(ctx context.Context, centroCusto, departamento string) (int64, bool, error) {
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT u.Id
		FROM HIERARQUIA_CC h
		JOIN Users u ON (u.Matricula = h.RESPONSAVEL_ATUAL OR REPLACE(REPLACE(u.CPF, '.', ''), '-', '') = h.CPF_RESPONSAVEL)
		WHERE (TRIM(h.DEPTO_ATUAL) = TRIM(?) OR TRIM(h.DEPTO_ATUAL) = TRIM(?)) AND u.IsActive = 1
		ORDER BY CASE WHEN u.Matricula = h.RESPONSAVEL_ATUAL THEN 0 ELSE 1 END, u.Id
		LIMIT 1`, centroCusto, departamento)
	if err != nil || !found {
		return 0, false, err
	}
	return play_sql.ToInt64(row["Id"]), true, nil
}
