package access

import (
	"strings"
)

const RoleAdmin = "Administrador"

// User is the session user. The JSON names are the ones the frontend reads.
type User struct {
	ID                    int64        `json:"userId"`
	UserName              string       `json:"userName"`
	Role                  string       `json:"role"`
	NomeCompleto          string       `json:"nomeCompleto"`
	Nome                  string       `json:"nome"`
	Departamento          string       `json:"departamento"`
	DescricaoDepartamento string       `json:"descricaoDepartamento"`
	Filial                string       `json:"filial"`
	CPF                   string       `json:"cpf"`
	Matricula             string       `json:"matricula"`
	HierarchyLevel        int          `json:"hierarchyLevel"`
	HierarchyPath         string       `json:"hierarchyPath"`
	Email                 string       `json:"email"`
	IsExternal            bool         `json:"isExternal"`
	CachedPermissions     *Permissions `json:"_cachedPermissions,omitempty"`
}

// Permissions drives which sidebar sections the frontend shows.
type Permissions struct {
	Dashboard           bool   `json:"dashboard"`
	Feedbacks           bool   `json:"feedbacks"`
	Recognitions        bool   `json:"recognitions"`
	Humor               bool   `json:"humor"`
	Objetivos           bool   `json:"objetivos"`
	Pesquisas           bool   `json:"pesquisas"`
	Avaliacoes          bool   `json:"avaliacoes"`
	Team                bool   `json:"team"`
	Analytics           bool   `json:"analytics"`
	Historico           bool   `json:"historico"`
	IsManager           bool   `json:"isManager"`
	IsFullAccess        bool   `json:"isFullAccess"`
	ManagerType         string `json:"managerType"`
	CanCreatePesquisas  bool   `json:"canCreatePesquisas"`
	CanCreateAvaliacoes bool   `json:"canCreateAvaliacoes"`
	CanViewEmpresaHumor bool   `json:"canViewEmpresaHumor"`
}

var (
	hrMarkers = []string{"RH", "RECURSOS HUMANOS", "ADM/RH", "RH/SESMT"}
	tdMarkers = []string{"TREINAM", "DESENVOLV", "T&D", "TREINAMENTO"}
)

// externalAdminDepartments may manage external users.
var externalAdminDepartments = []string{"DEPARTAMENTO TREINAM&DESENVOLV", "SUPERVISAO RH"}

// hrDepartmentCode is the ADM/RH/SESMT cost center.
const hrDepartmentCode = "122134101"

// CheckHRTD classifies a department code or description.
func CheckHRTD(departamento string) (isHR, isTD bool) {
	dep := strings.ToUpper(strings.TrimSpace(departamento))
	if dep == "" {
		return false, false
	}
	isHR = dep == hrDepartmentCode || containsAny(dep, hrMarkers)
	isTD = containsAny(dep, tdMarkers)
	return isHR, isTD
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) hrtd() (bool, bool) {
	if u == nil {
		return false, false
	}
	return CheckHRTD(u.Departamento)
}

// IsHRTD reports membership of the HR or T&D departments.
func (u *User) IsHRTD() bool {
	hr, td := u.hrtd()
	return hr || td
}

func (u *User) FullAccess() bool {
	if u == nil {
		return false
	}
	return u.IsAdmin() || u.IsHRTD()
}

// CanManageExternal: admins and the T&D and RH supervision departments,
// matched on the department description.
func (u *User) CanManageExternal() bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	return containsAny(strings.ToUpper(strings.TrimSpace(u.DescricaoDepartamento)), externalAdminDepartments)
}

// IsManager: admins, HR/T&D from level 3, everybody else from level 2.
func (u *User) IsManager() bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	if u.IsHRTD() && u.HierarchyLevel >= 3 {
		return true
	}
	return u.HierarchyLevel >= 2
}

func (u *User) DisplayName() string {
	if u == nil {
		return "Usuário"
	}
	if u.NomeCompleto != "" {
		return u.NomeCompleto
	}
	if u.Nome != "" {
		return u.Nome
	}
	return "Usuário"
}

// AllPermissions computes the permission set for u. A nil user gets nothing.
func AllPermissions(u *User) Permissions {
	if u == nil {
		return Permissions{ManagerType: "Nenhum"}
	}
	isHR, isTD := u.hrtd()
	fullAccess := u.FullAccess()
	manager := u.IsManager()
	levelManager := u.HierarchyLevel >= 2 || u.IsAdmin()

	managerType := "Funcionário"
	switch {
	case u.IsAdmin():
		managerType = RoleAdmin
	case isHR:
		managerType = "RH"
	case isTD:
		managerType = "T&D"
	case manager:
		managerType = "Gestor"
	}

	return Permissions{
		Dashboard:           true,
		Feedbacks:           true,
		Recognitions:        true,
		Humor:               true,
		Objetivos:           true,
		Pesquisas:           true,
		Avaliacoes:          levelManager,
		Team:                levelManager,
		Analytics:           fullAccess,
		Historico:           fullAccess,
		IsManager:           levelManager,
		IsFullAccess:        fullAccess,
		ManagerType:         managerType,
		CanCreatePesquisas:  fullAccess,
		CanCreateAvaliacoes: manager,
		CanViewEmpresaHumor: manager,
	}
}

// LevelFromPath returns the position of departamento inside a
// "A > B > C" hierarchy path plus one, clamped to 1..4. Users that are not
// responsible for a department are level 1.
func LevelFromPath(path, departamento string, responsavel bool) int {
	if !responsavel {
		return 1
	}
	parts := []string{}
	for _, p := range strings.Split(path, ">") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	dep := strings.TrimSpace(departamento)
	for i, p := range parts {
		if p == dep {
			return clamp(i+1, 1, 4)
		}
	}
	return 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Decision is the outcome of a feature check.
type Decision struct {
	Allowed       bool
	RequiredLevel string
}

// Feature applies the per-feature access rules. method and path are the
// request's, used by the read-only exceptions.
func Feature(u *User, feature, method, path string) Decision {
	if u.IsAdmin() {
		return Decision{Allowed: true}
	}
	isHR, isTD := u.hrtd()
	manager := u.IsManager()

	allowed := false
	switch feature {
	case "analytics", "relatorios":
		allowed = manager || isTD
	case "pesquisas":
		allowed = u.FullAccess() ||
			(method == "GET" && !strings.Contains(path, "/resultados") && !strings.Contains(path, "/meta/"))
	case "avaliacoes":
		allowed = isHR || isTD || manager || method == "GET"
	case "historico":
		allowed = u.FullAccess()
	case "team", "equipe":
		allowed = manager
	case "humor_empresa":
		allowed = manager || isHR || isTD
	default:
		allowed = true
	}
	if allowed {
		return Decision{Allowed: true}
	}

	required := "Permissão restrita"
	switch feature {
	case "analytics", "relatorios":
		required = "Gestor ou T&D"
	case "historico":
		required = "Gestor RH/T&D ou T&D"
	}
	return Decision{RequiredLevel: required}
}
