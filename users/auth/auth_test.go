package auth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"lumigente_backend/main/database"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
)

const (
	cpfAna   = "111.444.777-35"
	cpfBruno = "529.982.247-25"
	cpfCaio  = "123.456.789-09"
)

func TestMain(m *testing.M) {
	Configure(Settings{BcryptCost: bcrypt.MinCost})
	goleak.VerifyTestMain(m)
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := HashPassword(password)
	require.NoError(t, err)
	return h
}

func TestCPF(t *testing.T) {
	assert.True(t, ValidCPF("11144477735"))
	assert.True(t, ValidCPF(cpfBruno))
	assert.True(t, ValidCPF(cpfCaio))
	assert.False(t, ValidCPF("111.444.777-36"))
	assert.False(t, ValidCPF("11111111111"))
	assert.False(t, ValidCPF("1234"))

	assert.Equal(t, "111.444.777-35", FormatCPF("11144477735"))
	assert.Equal(t, "1234", FormatCPF("12-34"))
	assert.Equal(t, "11144477735", Digits(cpfAna))
}

// seedManager: Ana manages department 300 under DIR > 200 > 300.
func seedManager(t *testing.T, conn *sql.DB) int64 {
	t.Helper()
	id := database.CreateTestUser(t, conn, database.TestUser{
		CPF: cpfAna, Matricula: "M100", NomeCompleto: "Ana Souza", PasswordHash: hash(t, "secret1"),
	})
	database.CreateTestEmployee(t, conn, database.TestEmployee{
		CPF: "11144477735", Matricula: "M100", Nome: "ANA SOUZA", Departamento: "300", Filial: "01",
	})
	database.CreateTestHierarchy(t, conn, database.TestHierarchy{
		Depto: "300", Descricao: "Vendas", Responsavel: "M100", CPFResponsavel: "11144477735", Filial: "01",
		Completa: "DIR > 200 > 300",
	})
	return id
}

func TestLoginSyncsEmployeeAndComputesLevel(t *testing.T) {
	conn := database.OpenTest(t)
	id := seedManager(t, conn)

	res, err := Login(context.Background(), "11144477735", "secret1")
	require.NoError(t, err)
	require.False(t, res.NeedsRegistration)

	u := res.User
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "M100", u.Matricula)
	assert.Equal(t, "300", u.Departamento)
	assert.Equal(t, "DIR > 200 > 300", u.HierarchyPath)
	assert.Equal(t, 3, u.HierarchyLevel)
	assert.Equal(t, "Gestor", u.Role)
	assert.Equal(t, "ANA", u.Nome)
	require.NotNil(t, u.CachedPermissions)
	assert.True(t, u.CachedPermissions.Team)

	var matricula string
	var lastLogin sql.NullString
	require.NoError(t, conn.QueryRow("SELECT Matricula, LastLogin FROM Users WHERE Id = ?", id).Scan(&matricula, &lastLogin))
	assert.Equal(t, "M100", matricula)
	assert.True(t, lastLogin.Valid)
}

func TestLoginFailures(t *testing.T) {
	conn := database.OpenTest(t)
	seedManager(t, conn)
	ctx := context.Background()

	_, err := Login(ctx, "123", "x")
	assert.Equal(t, ErrInvalidLogin, err)

	_, err = Login(ctx, cpfAna, "wrong")
	assert.Equal(t, ErrWrongPassword, err)

	_, err = Login(ctx, cpfBruno, "secret1")
	assert.Equal(t, ErrUserNotFound, err)

	// registered user without a payroll row
	database.CreateTestUser(t, conn, database.TestUser{CPF: cpfBruno, PasswordHash: hash(t, "secret1")})
	_, err = Login(ctx, cpfBruno, "secret1")
	assert.Equal(t, ErrEmployeeNotFound, err)

	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "52998224725", Matricula: "M200", Status: "DEMITIDO"})
	_, err = Login(ctx, cpfBruno, "secret1")
	assert.Equal(t, ErrEmployeeInactive, err)
	assert.True(t, IsUserError(err))
}

func TestLoginSpecialCPFWhileInactive(t *testing.T) {
	conn := database.OpenTest(t)
	Configure(Settings{BcryptCost: bcrypt.MinCost, SpecialCPFs: []string{cpfBruno}})
	defer Configure(Settings{BcryptCost: bcrypt.MinCost})

	database.CreateTestUser(t, conn, database.TestUser{CPF: cpfBruno, PasswordHash: hash(t, "secret1")})
	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "52998224725", Matricula: "M200", Status: "DEMITIDO"})

	res, err := Login(context.Background(), cpfBruno, "secret1")
	require.NoError(t, err)
	assert.Equal(t, "M200", res.User.Matricula)
	assert.Equal(t, 1, res.User.HierarchyLevel)
}

func TestLoginPrefersActiveContract(t *testing.T) {
	conn := database.OpenTest(t)
	database.CreateTestUser(t, conn, database.TestUser{CPF: cpfBruno, PasswordHash: hash(t, "secret1")})
	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "52998224725", Matricula: "OLD", Status: "DEMITIDO", Admissao: "2024-01-01"})
	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "52998224725", Matricula: "NEW", Admissao: "2019-01-01"})

	res, err := Login(context.Background(), cpfBruno, "secret1")
	require.NoError(t, err)
	assert.Equal(t, "NEW", res.User.Matricula)
}

func TestLoginNeedsRegistration(t *testing.T) {
	conn := database.OpenTest(t)
	database.CreateTestUser(t, conn, database.TestUser{CPF: cpfCaio, FirstLogin: true})
	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "12345678909", Matricula: "M300"})

	res, err := Login(context.Background(), cpfCaio, "whatever")
	require.NoError(t, err)
	assert.True(t, res.NeedsRegistration)
	assert.Nil(t, res.User)
}

func TestLoginExternalUser(t *testing.T) {
	conn := database.OpenTest(t)
	database.CreateTestUser(t, conn, database.TestUser{
		CPF: cpfCaio, NomeCompleto: "Consultor Externo", Email: "ext@fornecedor.com",
		External: true, PasswordHash: hash(t, "secret1"),
	})

	res, err := Login(context.Background(), cpfCaio, "secret1")
	require.NoError(t, err)
	assert.True(t, res.User.IsExternal)
	assert.Equal(t, RoleExternal, res.User.Role)
	assert.Equal(t, "Consultor", res.User.Nome)
	assert.False(t, res.User.CachedPermissions.Analytics)
}

func TestAdministratorRoleIsKept(t *testing.T) {
	conn := database.OpenTest(t)
	id := database.CreateTestUser(t, conn, database.TestUser{CPF: cpfCaio, Role: access.RoleAdmin})

	u, err := Reload(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, access.RoleAdmin, u.Role)
	assert.True(t, u.CachedPermissions.IsFullAccess)
}

func TestRegisterAndCheckCPF(t *testing.T) {
	conn := database.OpenTest(t)
	ctx := context.Background()
	database.CreateTestUser(t, conn, database.TestUser{CPF: cpfCaio, FirstLogin: true})
	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "12345678909", Matricula: "M300"})

	status, err := CheckCPF(ctx, cpfCaio)
	require.NoError(t, err)
	assert.True(t, status.NeedsRegistration)

	assert.Equal(t, ErrInvalidRegister, Register(ctx, cpfCaio, "123", ""))
	assert.Equal(t, ErrRegisterNotFound, Register(ctx, cpfBruno, "secret1", ""))
	require.NoError(t, Register(ctx, cpfCaio, "secret1", "Caio Lima"))
	assert.Equal(t, ErrAlreadyRegistered, Register(ctx, cpfCaio, "secret2", ""))

	status, err = CheckCPF(ctx, "12345678909")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.False(t, status.NeedsRegistration)

	status, err = CheckCPF(ctx, cpfBruno)
	require.NoError(t, err)
	assert.False(t, status.Exists)

	_, err = CheckCPF(ctx, "000")
	assert.Equal(t, ErrInvalidCPF, err)

	res, err := Login(ctx, cpfCaio, "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Caio Lima", res.User.NomeCompleto)
}

func TestChangePassword(t *testing.T) {
	conn := database.OpenTest(t)
	id := database.CreateTestUser(t, conn, database.TestUser{CPF: cpfCaio, PasswordHash: hash(t, "secret1")})
	ctx := context.Background()

	assert.Equal(t, ErrWeakPassword, ChangePassword(ctx, id, "secret1", "123"))
	assert.Equal(t, ErrWrongCurrentPasswd, ChangePassword(ctx, id, "nope", "secret2"))
	require.NoError(t, ChangePassword(ctx, id, "secret1", "secret2"))

	var h string
	require.NoError(t, conn.QueryRow("SELECT PasswordHash FROM Users WHERE Id = ?", id).Scan(&h))
	assert.True(t, checkPassword(h, "secret2"))
}

func TestTeamAndManagerResolution(t *testing.T) {
	conn := database.OpenTest(t)
	managerID := seedManager(t, conn)
	memberID := database.CreateTestUser(t, conn, database.TestUser{CPF: cpfBruno, Matricula: "M200"})
	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "52998224725", Matricula: "M200", Departamento: "300"})
	ctx := context.Background()

	ids, err := TeamUserIDs(ctx, &access.User{ID: managerID, Matricula: "M100"})
	require.NoError(t, err)
	assert.Equal(t, []int64{memberID}, ids)

	got, found, err := ManagerUserID(ctx, "", "300")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, managerID, got)

	_, found, err = ManagerUserID(ctx, "999", "999")
	require.NoError(t, err)
	assert.False(t, found)

	deps, err := ManagedDepartments(ctx, "M100")
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "Vendas", deps[0].Descricao)
}

func newRouter(user *access.User) (*gin.Engine, *session.Manager) {
	gin.SetMode(gin.TestMode)
	m := session.NewManager(session.NewMemoryStore(), session.Options{Secret: "0123456789abcdef0123456789abcdef"})
	r := gin.New()
	r.Use(m.Load())
	if user != nil {
		r.Use(session.WithUser(user))
	}
	r.POST("/api/login", LoginHandler)
	r.POST("/api/register", RegisterHandler)
	r.POST("/api/check-cpf", CheckCPFHandler)
	r.POST("/api/logout", LogoutHandler)
	r.GET("/api/analytics", RequireFeature("analytics"), ok)
	r.GET("/api/manager", RequireManager(), ok)
	r.GET("/api/hr", RequireHR(), ok)
	return r, m
}

func ok(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }

func post(r *gin.Engine, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLoginHandlers(t *testing.T) {
	conn := database.OpenTest(t)
	seedManager(t, conn)
	r, m := newRouter(nil)

	w := post(r, "/api/login", gin.H{"cpf": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/api/login", gin.H{"cpf": cpfAna, "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Senha incorreta"}`, w.Body.String())

	w = post(r, "/api/login", gin.H{"cpf": cpfAna, "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool        `json:"success"`
		User    access.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "M100", body.User.Matricula)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, 1, m.Store().(*session.MemoryStore).Len())

	w = post(r, "/api/logout", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Logout realizado com sucesso")
	assert.Equal(t, 0, m.Store().(*session.MemoryStore).Len())
}

func TestRegisterAndCheckHandlers(t *testing.T) {
	conn := database.OpenTest(t)
	database.CreateTestUser(t, conn, database.TestUser{CPF: cpfCaio, FirstLogin: true})
	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "12345678909", Matricula: "M300"})
	r, _ := newRouter(nil)

	w := post(r, "/api/login", gin.H{"cpf": cpfCaio, "password": "x"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"needsRegistration":true`)

	w = post(r, "/api/check-cpf", gin.H{"cpf": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/api/register", gin.H{"cpf": cpfCaio, "password": "secret1", "nomeCompleto": "Caio Lima"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Registro realizado com sucesso")

	w = post(r, "/api/register", gin.H{"cpf": cpfCaio, "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/api/check-cpf", gin.H{"cpf": cpfCaio})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"exists":true`)
}

func TestRequireFeature(t *testing.T) {
	r, _ := newRouter(nil)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/analytics").Code)

	r, _ = newRouter(&access.User{ID: 1, HierarchyLevel: 1, Departamento: "VENDAS"})
	w := get(r, "/api/analytics")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Acesso negado. Você não tem permissão para acessar analytics.","requiredLevel":"Gestor ou T&D"}`, w.Body.String())

	r, _ = newRouter(&access.User{ID: 1, HierarchyLevel: 2, Departamento: "VENDAS"})
	assert.Equal(t, http.StatusOK, get(r, "/api/analytics").Code)
}

func TestRequireManager(t *testing.T) {
	conn := database.OpenTest(t)
	seedManager(t, conn)

	r, _ := newRouter(&access.User{ID: 5, Departamento: "VENDAS"})
	w := get(r, "/api/manager")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "sem matrícula válida")

	r, _ = newRouter(&access.User{ID: 5, Matricula: "M999", HierarchyLevel: 1, Departamento: "VENDAS"})
	w = get(r, "/api/manager")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Apenas gestores, RH e T")

	// responsible for a department even with a stale level
	r, _ = newRouter(&access.User{ID: 1, Matricula: "M100", HierarchyLevel: 1, Departamento: "300"})
	assert.Equal(t, http.StatusOK, get(r, "/api/manager").Code)

	r, _ = newRouter(&access.User{ID: 9, Departamento: "RECURSOS HUMANOS"})
	assert.Equal(t, http.StatusOK, get(r, "/api/manager").Code)
}

func TestRequireHR(t *testing.T) {
	r, _ := newRouter(&access.User{ID: 5, Departamento: "VENDAS", HierarchyLevel: 4})
	w := get(r, "/api/hr")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"userDepartment":"VENDAS"`)

	r, _ = newRouter(&access.User{ID: 6, Departamento: "TREINAMENTO E DESENVOLVIMENTO"})
	assert.Equal(t, http.StatusOK, get(r, "/api/hr").Code)
}
