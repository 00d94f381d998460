package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lumigente_backend/main/logger"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/access"
)

// Error is a login or registration failure whose message is shown to the user.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrInvalidLogin       Error = "CPF inválido ou senha não fornecida"
	ErrUserNotFound       Error = "Usuário não encontrado no sistema."
	ErrEmployeeNotFound   Error = "CPF não encontrado na base de funcionários"
	ErrEmployeeInactive   Error = "Funcionário inativo no sistema"
	ErrUserInactive       Error = "Usuário inativo. Entre em contato com o administrador."
	ErrPasswordNotSet     Error = "Senha não configurada. Por favor, complete o seu registro."
	ErrWrongPassword      Error = "Senha incorreta"
	ErrInvalidRegister    Error = "Dados de registro inválidos."
	ErrRegisterNotFound   Error = "CPF não encontrado no sistema para registro."
	ErrAlreadyRegistered  Error = "Usuário já possui registro realizado."
	ErrInvalidCPF         Error = "CPF inválido"
	ErrWeakPassword       Error = "A nova senha deve ter pelo menos 6 caracteres"
	ErrWrongCurrentPasswd Error = "Senha atual incorreta"
)

const needsRegistrationMessage = "Você ainda não possui registro. Crie uma conta primeiro."

const RoleExternal = "Usuário Externo"

type Settings struct {
	SpecialCPFs []string
	BcryptCost  int
}

var (
	settingsMu sync.RWMutex
	settings   = Settings{BcryptCost: bcrypt.DefaultCost}
)

// Configure installs the CPFs allowed in while inactive and the bcrypt cost.
func Configure(s Settings) {
	if s.BcryptCost < bcrypt.MinCost || s.BcryptCost > bcrypt.MaxCost {
		s.BcryptCost = bcrypt.DefaultCost
	}
	special := make([]string, 0, len(s.SpecialCPFs))
	for _, cpf := range s.SpecialCPFs {
		if d := Digits(cpf); d != "" {
			special = append(special, d)
		}
	}
	s.SpecialCPFs = special
	settingsMu.Lock()
	settings = s
	settingsMu.Unlock()
}

func current() Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings
}

func isSpecial(cpf string) bool {
	d := Digits(cpf)
	for _, s := range current().SpecialCPFs {
		if s == d {
			return true
		}
	}
	return false
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), current().BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// LoginResult is either a session user or a request to register first.
type LoginResult struct {
	User              *access.User
	NeedsRegistration bool
	Message           string
}

func findUserByCPF(ctx context.Context, cpf string) (map[string]string, bool, error) {
	return play_sql.QueryRow(ctx, `
		SELECT Id, UserName, PasswordHash, nome, NomeCompleto, Departamento, DescricaoDepartamento,
			Filial, CPF, Matricula, HierarchyPath, Email, Role, IsActive, IsExternal, FirstLogin
		FROM Users WHERE CPF = ? OR CPF = ?
		ORDER BY Id
		LIMIT 1`, FormatCPF(cpf), Digits(cpf))
}

// Login authenticates by CPF and password. Failures the user should see are
// returned as Error values; anything else is an infrastructure error.
func Login(ctx context.Context, cpf, password string) (*LoginResult, error) {
	if cpf == "" || password == "" || !ValidCPF(cpf) {
		return nil, ErrInvalidLogin
	}

	row, found, err := findUserByCPF(ctx, cpf)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !found {
		return nil, ErrUserNotFound
	}

	if play_sql.ToBool(row["IsExternal"]) {
		return loginExternal(ctx, row, cpf, password)
	}

	employee, found, err := LatestEmployee(ctx, cpf)
	if err != nil {
		return nil, fmt.Errorf("find employee: %w", err)
	}
	if !found {
		return nil, ErrEmployeeNotFound
	}
	if !employee.Active() && !isSpecial(cpf) {
		return nil, ErrEmployeeInactive
	}

	if play_sql.ToBool(row["FirstLogin"]) {
		return &LoginResult{NeedsRegistration: true, Message: needsRegistrationMessage}, nil
	}
	if !play_sql.ToBool(row["IsActive"]) {
		return nil, ErrUserInactive
	}
	if row["PasswordHash"] == "" {
		return nil, ErrPasswordNotSet
	}
	if !checkPassword(row["PasswordHash"], password) {
		return nil, ErrWrongPassword
	}

	id := play_sql.ToInt64(row["Id"])
	if err := syncEmployee(ctx, id, row, employee); err != nil {
		return nil, err
	}
	touchLastLogin(ctx, id)

	user, err := sessionUser(ctx, row)
	if err != nil {
		return nil, err
	}
	user.CPF = FormatCPF(cpf)
	logger.L().Info("login",
		zap.Int64("user_id", user.ID),
		zap.String("role", user.Role),
		zap.Int("level", user.HierarchyLevel),
	)
	return &LoginResult{User: user}, nil
}

func loginExternal(ctx context.Context, row map[string]string, cpf, password string) (*LoginResult, error) {
	if !play_sql.ToBool(row["IsActive"]) {
		return nil, ErrUserInactive
	}
	if row["PasswordHash"] == "" {
		return nil, ErrPasswordNotSet
	}
	if !checkPassword(row["PasswordHash"], password) {
		return nil, ErrWrongPassword
	}

	id := play_sql.ToInt64(row["Id"])
	touchLastLogin(ctx, id)

	name := firstNonEmpty(row["NomeCompleto"], row["Email"], RoleExternal)
	user := &access.User{
		ID:             id,
		UserName:       firstNonEmpty(row["UserName"], row["Email"]),
		Role:           RoleExternal,
		NomeCompleto:   name,
		Nome:           firstName(name),
		CPF:            FormatCPF(cpf),
		HierarchyLevel: 1,
		Email:          row["Email"],
		IsExternal:     true,
	}
	perms := access.AllPermissions(user)
	user.CachedPermissions = &perms
	logger.L().Info("login", zap.Int64("user_id", id), zap.String("role", RoleExternal))
	return &LoginResult{User: user}, nil
}

// syncEmployee copies matricula, name, department, path and filial from the
// payroll mirror when any of them drifted.
func syncEmployee(ctx context.Context, id int64, row map[string]string, e Employee) error {
	path, err := HierarchyPath(ctx, e)
	if err != nil {
		return err
	}
	departamento := firstNonEmpty(e.Departamento, row["Departamento"])
	nome := firstNonEmpty(e.Nome, row["NomeCompleto"])

	if row["Matricula"] == e.Matricula && row["Departamento"] == departamento &&
		row["HierarchyPath"] == path && row["Filial"] == e.Filial && row["NomeCompleto"] == nome {
		return nil
	}
	_, err = play_sql.Exec(ctx, `
		UPDATE Users SET Matricula = ?, NomeCompleto = ?, Departamento = ?, HierarchyPath = ?, Filial = ?, updated_at = ?
		WHERE Id = ?`, e.Matricula, nome, departamento, path, e.Filial, play_sql.Now(), id)
	if err != nil {
		return fmt.Errorf("sync user %d: %w", id, err)
	}
	row["Matricula"] = e.Matricula
	row["NomeCompleto"] = nome
	row["Departamento"] = departamento
	row["HierarchyPath"] = path
	row["Filial"] = e.Filial
	return nil
}

func touchLastLogin(ctx context.Context, id int64) {
	if _, err := play_sql.Exec(ctx, "UPDATE Users SET LastLogin = ? WHERE Id = ?", play_sql.Now(), id); err != nil {
		logger.L().Warn("update LastLogin", zap.Int64("user_id", id), zap.Error(err))
	}
}

// sessionUser builds the session user from a Users row, computing the
// hierarchy level and the permission cache.
func sessionUser(ctx context.Context, row map[string]string) (*access.User, error) {
	level, err := Level(ctx, row["Matricula"], row["Filial"])
	if err != nil {
		return nil, fmt.Errorf("hierarchy level: %w", err)
	}
	nomeCompleto := strings.TrimSpace(row["NomeCompleto"])
	user := &access.User{
		ID:                    play_sql.ToInt64(row["Id"]),
		UserName:              row["UserName"],
		Role:                  row["Role"],
		NomeCompleto:          nomeCompleto,
		Nome:                  firstName(firstNonEmpty(nomeCompleto, "Usuário")),
		Departamento:          row["Departamento"],
		DescricaoDepartamento: row["DescricaoDepartamento"],
		Filial:                row["Filial"],
		CPF:                   FormatCPF(row["CPF"]),
		Matricula:             row["Matricula"],
		HierarchyLevel:        level,
		HierarchyPath:         row["HierarchyPath"],
		Email:                 row["Email"],
		IsExternal:            play_sql.ToBool(row["IsExternal"]),
	}
	if user.IsExternal {
		user.Role = RoleExternal
		user.HierarchyLevel = 1
	}
	perms := access.AllPermissions(user)
	if !user.IsExternal {
		user.Role = perms.ManagerType
	}
	user.CachedPermissions = &perms
	return user, nil
}

// Reload rebuilds the session user from the database. Used after permission
// relevant data changed.
func Reload(ctx context.Context, id int64) (*access.User, error) {
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT Id, UserName, nome, NomeCompleto, Departamento, DescricaoDepartamento,
			Filial, CPF, Matricula, HierarchyPath, Email, Role, IsActive, IsExternal
		FROM Users WHERE Id = ?`, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	return sessionUser(ctx, row)
}

// Register sets the password of a pre-provisioned user.
func Register(ctx context.Context, cpf, password, nomeCompleto string) error {
	if cpf == "" || !ValidCPF(cpf) || len(password) < 6 {
		return ErrInvalidRegister
	}
	row, found, err := findUserByCPF(ctx, cpf)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if !found {
		return ErrRegisterNotFound
	}
	if !play_sql.ToBool(row["FirstLogin"]) && row["PasswordHash"] != "" {
		return ErrAlreadyRegistered
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	nome := firstNonEmpty(strings.TrimSpace(nomeCompleto), row["NomeCompleto"], row["UserName"])
	_, err = play_sql.Exec(ctx, `
		UPDATE Users SET PasswordHash = ?, FirstLogin = 0, NomeCompleto = ?, nome = ?, IsActive = 1, updated_at = ?
		WHERE Id = ?`, hash, nome, firstName(nome), play_sql.Now(), row["Id"])
	return err
}

type CPFStatus struct {
	Exists            bool   `json:"exists"`
	NeedsRegistration bool   `json:"needsRegistration"`
	Message           string `json:"message"`
}

func CheckCPF(ctx context.Context, cpf string) (CPFStatus, error) {
	if cpf == "" || !ValidCPF(cpf) {
		return CPFStatus{}, ErrInvalidCPF
	}
	row, found, err := findUserByCPF(ctx, cpf)
	if err != nil {
		return CPFStatus{}, err
	}
	if !found {
		return CPFStatus{Message: "CPF não encontrado na base de funcionários"}, nil
	}
	if !play_sql.ToBool(row["FirstLogin"]) && row["PasswordHash"] != "" {
		return CPFStatus{Exists: true, Message: "CPF já cadastrado no sistema"}, nil
	}
	return CPFStatus{NeedsRegistration: true, Message: "CPF válido para registro"}, nil
}

// ChangePassword checks the current password before storing the new one.
func ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}
	row, found, err := play_sql.QueryRow(ctx, "SELECT PasswordHash FROM Users WHERE Id = ?", userID)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	if row["PasswordHash"] == "" || !checkPassword(row["PasswordHash"], currentPassword) {
		return ErrWrongCurrentPasswd
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = play_sql.Exec(ctx, "UPDATE Users SET PasswordHash = ?, updated_at = ? WHERE Id = ?", hash, play_sql.Now(), userID)
	return err
}

// IsUserError reports whether err carries a message meant for the user.
func IsUserError(err error) bool {
	var e Error
	return errors.As(err, &e)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
