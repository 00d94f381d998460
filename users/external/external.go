// Package external manages the users that log in without a payroll record:
// consultants and suppliers registered by T&D or the RH supervision.
package external

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/auth"
)

// Error is a validation failure shown to the user as is.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrRequired       Error = "CPF, nome completo, email e senha são obrigatórios"
	ErrInvalidCPF     Error = "CPF inválido"
	ErrShortName      Error = "Nome completo deve ter no mínimo 3 caracteres"
	ErrInvalidEmail   Error = "Email inválido"
	ErrShortPassword  Error = "A senha deve ter no mínimo 6 caracteres"
	ErrCPFTaken       Error = "CPF já cadastrado"
	ErrEmailTaken     Error = "Email já cadastrado"
	ErrEmailInUse     Error = "Email já cadastrado para outro usuário"
	ErrNothingToSave  Error = "Nenhum campo para atualizar"
	ErrAlreadyActive  Error = "Usuário externo já está ativo"
	ErrAlreadyStopped Error = "Usuário externo já está inativo"
)

var ErrNotFound = errors.New("usuário externo não encontrado")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Placement of every external user in the organization tables.
const (
	Departamento          = "Usuarios Externos"
	DescricaoDepartamento = "USUARIOS EXTERNOS"
	Filial                = "SEM FILIAL"
)

type User struct {
	ID           int64  `json:"id"`
	CPF          string `json:"cpf"`
	Email        string `json:"email"`
	NomeCompleto string `json:"nomeCompleto"`
	IsActive     bool   `json:"isActive"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

const columns = "Id, CPF, Email, NomeCompleto, IsActive, created_at, updated_at"

func fromRow(row map[string]string) User {
	return User{
		ID:           play_sql.ToInt64(row["Id"]),
		CPF:          auth.FormatCPF(row["CPF"]),
		Email:        row["Email"],
		NomeCompleto: row["NomeCompleto"],
		IsActive:     play_sql.ToBool(row["IsActive"]),
		CreatedAt:    row["created_at"],
		UpdatedAt:    row["updated_at"],
	}
}

// List returns external users, active ones first. status narrows to
// "active" or "inactive"; anything else lists all.
func List(ctx context.Context, status string) ([]User, error) {
	query := "SELECT " + columns + " FROM Users WHERE IsExternal = 1"
	switch status {
	case "active":
		query += " AND IsActive = 1"
	case "inactive":
		query += " AND IsActive = 0"
	}
	rows, err := play_sql.QueryRows(ctx, query+" ORDER BY IsActive DESC, created_at DESC, Id DESC")
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func Get(ctx context.Context, id int64) (User, error) {
	row, found, err := play_sql.QueryRow(ctx,
		"SELECT "+columns+" FROM Users WHERE Id = ? AND IsExternal = 1", id)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, ErrNotFound
	}
	return fromRow(row), nil
}

type CreateInput struct {
	CPF          string `json:"cpf"`
	NomeCompleto string `json:"nomeCompleto"`
	Email        string `json:"email"`
	Senha        string `json:"senha"`
	IsActive     *bool  `json:"isActive"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return full
}

// Create registers an external user with a bcrypt password.
func Create(ctx context.Context, in CreateInput) (User, error) {
	if in.CPF == "" || in.NomeCompleto == "" || in.Email == "" || in.Senha == "" {
		return User{}, ErrRequired
	}
	cpf := auth.Digits(in.CPF)
	if !auth.ValidCPF(cpf) {
		return User{}, ErrInvalidCPF
	}
	nome := strings.TrimSpace(in.NomeCompleto)
	if len([]rune(nome)) < 3 {
		return User{}, ErrShortName
	}
	email := normalizeEmail(in.Email)
	if !emailPattern.MatchString(email) {
		return User{}, ErrInvalidEmail
	}
	if len(in.Senha) < 6 {
		return User{}, ErrShortPassword
	}

	n, err := play_sql.Count(ctx, "SELECT COUNT(*) FROM Users WHERE CPF = ? OR CPF = ?", cpf, auth.FormatCPF(cpf))
	if err != nil {
		return User{}, fmt.Errorf("check cpf: %w", err)
	}
	if n > 0 {
		return User{}, ErrCPFTaken
	}
	n, err = play_sql.Count(ctx, "SELECT COUNT(*) FROM Users WHERE LOWER(Email) = ?", email)
	if err != nil {
		return User{}, fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		return User{}, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Senha)
	if err != nil {
		return User{}, err
	}
	active := in.IsActive == nil || *in.IsActive
	now := play_sql.Now()
	id, err := play_sql.Insert(ctx, `
		INSERT INTO Users (CPF, nome, NomeCompleto, Email, PasswordHash, UserName, Role, IsActive, IsExternal,
			FirstLogin, Departamento, DescricaoDepartamento, Filial, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?, ?, ?, ?)`,
		cpf, firstName(nome), nome, email, hash, email, auth.RoleExternal, flag(active),
		Departamento, DescricaoDepartamento, Filial, now, now)
	if err != nil {
		return User{}, fmt.Errorf("insert external user: %w", err)
	}
	return Get(ctx, id)
}

func flag(v bool) int {
	if v {
		return 1
	}
	return 0
}

// UpdateInput fields left empty (or nil) are kept.
type UpdateInput struct {
	NomeCompleto string `json:"nomeCompleto"`
	Email        string `json:"email"`
	Senha        string `json:"senha"`
	IsActive     *bool  `json:"isActive"`
}

func Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	in.Email = normalizeEmail(in.Email)
	if in.Email != "" && !emailPattern.MatchString(in.Email) {
		return User{}, ErrInvalidEmail
	}
	if in.Senha != "" && len(in.Senha) < 6 {
		return User{}, ErrShortPassword
	}
	current, err := Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	var sets []string
	var args []any
	if nome := strings.TrimSpace(in.NomeCompleto); nome != "" {
		sets = append(sets, "NomeCompleto = ?", "nome = ?")
		args = append(args, nome, firstName(nome))
	}
	if in.Email != "" {
		email := in.Email
		if email != normalizeEmail(current.Email) {
			n, err := play_sql.Count(ctx, "SELECT COUNT(*) FROM Users WHERE LOWER(Email) = ? AND Id <> ?", email, id)
			if err != nil {
				return User{}, fmt.Errorf("check email: %w", err)
			}
			if n > 0 {
				return User{}, ErrEmailInUse
			}
		}
		sets = append(sets, "Email = ?")
		args = append(args, email)
	}
	if in.Senha != "" {
		hash, err := auth.HashPassword(in.Senha)
		if err != nil {
			return User{}, err
		}
		sets = append(sets, "PasswordHash = ?")
		args = append(args, hash)
	}
	if in.IsActive != nil {
		sets = append(sets, "IsActive = ?")
		args = append(args, flag(*in.IsActive))
	}
	if len(sets) == 0 {
		return User{}, ErrNothingToSave
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, play_sql.Now(), id)
	if _, err := play_sql.Exec(ctx,
		"UPDATE Users SET "+strings.Join(sets, ", ")+" WHERE Id = ? AND IsExternal = 1", args...); err != nil {
		return User{}, fmt.Errorf("update external user: %w", err)
	}
	return Get(ctx, id)
}

// SetActive flips IsActive, refusing a no-op change.
func SetActive(ctx context.Context, id int64, active bool) error {
	u, err := Get(ctx, id)
	if err != nil {
		return err
	}
	if u.IsActive == active {
		if active {
			return ErrAlreadyActive
		}
		return ErrAlreadyStopped
	}
	_, err = play_sql.Exec(ctx,
		"UPDATE Users SET IsActive = ?, updated_at = ? WHERE Id = ? AND IsExternal = 1",
		flag(active), play_sql.Now(), id)
	return err
}
