package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migration adds a column to an existing table when it is missing.
type Migration struct {
	Table  string
	Column string
	Def    string
}

type index struct {
	Name    string
	Table   string
	Columns string
}

// id and engine are replaced per dialect before execution.
const (
	idPlaceholder     = "{{ID}}"
	enginePlaceholder = "{{ENGINE}}"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS Users (
		Id {{ID}},
		UserName VARCHAR(255) NOT NULL,
		PasswordHash VARCHAR(255) NULL,
		nome VARCHAR(255) NULL,
		NomeCompleto VARCHAR(255) NULL,
		Departamento VARCHAR(100) NULL,
		DescricaoDepartamento VARCHAR(200) NULL,
		Filial VARCHAR(100) NULL,
		CPF VARCHAR(14) NULL,
		Matricula VARCHAR(20) NULL,
		HierarchyPath VARCHAR(500) NULL,
		Email VARCHAR(255) NULL,
		Role VARCHAR(50) NULL,
		IsActive INT DEFAULT 1,
		IsExternal INT NOT NULL DEFAULT 0,
		FirstLogin INT DEFAULT 1,
		LastLogin DATETIME NULL,
		created_at DATETIME NULL,
		updated_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS TAB_HIST_SRA (
		UNIDADE VARCHAR(6) NULL,
		MATRICULA VARCHAR(20) NULL,
		EMAIL VARCHAR(100) NULL,
		NOME VARCHAR(255) NULL,
		DTA_ADMISSAO DATE NULL,
		FILIAL VARCHAR(20) NULL,
		CENTRO_CUSTO VARCHAR(20) NULL,
		CPF VARCHAR(14) NULL,
		DEPARTAMENTO VARCHAR(100) NULL,
		SITUACAO_FOLHA VARCHAR(1) NULL,
		STATUS_GERAL VARCHAR(10) NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS HIERARQUIA_CC (
		UNIDADE VARCHAR(10) NULL,
		DEPTO_ATUAL VARCHAR(100) NULL,
		DESCRICAO_ATUAL VARCHAR(200) NULL,
		RESPONSAVEL_ATUAL VARCHAR(20) NULL,
		FILIAL VARCHAR(20) NULL,
		CPF_RESPONSAVEL VARCHAR(20) NULL,
		HIERARQUIA_COMPLETA VARCHAR(500) NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS TiposAvaliacao (
		Id INT PRIMARY KEY,
		Nome VARCHAR(50) NOT NULL,
		DiasMinimos INT NOT NULL,
		DiasMaximos INT NOT NULL,
		Descricao VARCHAR(500) NULL,
		Ativo INT DEFAULT 1
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS Feedbacks (
		Id {{ID}},
		from_user_id INT NOT NULL,
		to_user_id INT NOT NULL,
		type VARCHAR(100) NOT NULL,
		category VARCHAR(100) NOT NULL,
		message TEXT NOT NULL,
		viewed INT DEFAULT 0,
		viewed_at DATETIME NULL,
		created_at DATETIME NULL,
		updated_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS FeedbackReactions (
		Id {{ID}},
		feedback_id INT NOT NULL,
		user_id INT NOT NULL,
		reaction_type VARCHAR(50) NOT NULL,
		created_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS FeedbackReplies (
		Id {{ID}},
		feedback_id INT NOT NULL,
		user_id INT NOT NULL,
		reply_text TEXT NOT NULL,
		reply_to_id INT NULL,
		reply_to_message TEXT NULL,
		reply_to_user VARCHAR(255) NULL,
		created_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS FeedbackReplyReactions (
		Id {{ID}},
		reply_id INT NOT NULL,
		user_id INT NOT NULL,
		emoji VARCHAR(16) NOT NULL,
		created_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS Recognitions (
		Id {{ID}},
		from_user_id INT NOT NULL,
		to_user_id INT NOT NULL,
		badge VARCHAR(100) NOT NULL,
		message TEXT NOT NULL,
		points INT DEFAULT 5,
		created_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS Gamification (
		Id {{ID}},
		UserId INT NOT NULL,
		Action VARCHAR(100) NOT NULL,
		Points INT NOT NULL,
		CreatedAt DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS UserPoints (
		Id {{ID}},
		UserId INT NOT NULL,
		TotalPoints INT DEFAULT 0,
		LastUpdated DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS Notifications (
		Id {{ID}},
		UserId INT NOT NULL,
		Type VARCHAR(50) NOT NULL,
		Message VARCHAR(500) NOT NULL,
		RelatedId INT NULL,
		IsRead INT DEFAULT 0,
		CreatedAt DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS DailyMood (
		Id {{ID}},
		user_id INT NOT NULL,
		score INT NOT NULL,
		description TEXT NULL,
		created_at DATETIME NULL,
		updated_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS Objetivos (
		Id {{ID}},
		titulo VARCHAR(255) NOT NULL,
		descricao TEXT NULL,
		data_inicio DATE NOT NULL,
		data_fim DATE NOT NULL,
		status VARCHAR(50) DEFAULT 'Ativo',
		progresso DECIMAL(5,2) DEFAULT 0,
		criado_por INT NOT NULL,
		created_at DATETIME NULL,
		updated_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS ObjetivoResponsaveis (
		Id {{ID}},
		objetivo_id INT NOT NULL,
		responsavel_id INT NOT NULL,
		created_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS ObjetivoCheckins (
		Id {{ID}},
		objetivo_id INT NOT NULL,
		user_id INT NOT NULL,
		progresso DECIMAL(5,2) NOT NULL,
		observacoes TEXT NULL,
		created_at DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS PDIs (
		Id {{ID}},
		UserId INT NOT NULL,
		GestorId INT NULL,
		Titulo VARCHAR(255) NOT NULL,
		Objetivos TEXT NOT NULL,
		Acoes TEXT NOT NULL,
		PrazoConclusao DATE NOT NULL,
		Status VARCHAR(50) DEFAULT 'Ativo',
		Progresso DECIMAL(5,2) DEFAULT 0,
		DataCriacao DATETIME NULL,
		DataAtualizacao DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS Surveys (
		Id {{ID}},
		titulo VARCHAR(200) NOT NULL,
		descricao TEXT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'Ativa',
		anonima INT NOT NULL DEFAULT 0,
		data_inicio DATETIME NULL,
		data_encerramento DATETIME NULL,
		criado_por INT NOT NULL,
		data_criacao DATETIME NULL,
		data_atualizacao DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS SurveyQuestions (
		Id {{ID}},
		survey_id INT NOT NULL,
		pergunta TEXT NOT NULL,
		tipo VARCHAR(20) NOT NULL,
		obrigatoria INT NOT NULL DEFAULT 0,
		ordem INT NOT NULL,
		escala_min INT NULL,
		escala_max INT NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS SurveyQuestionOptions (
		Id {{ID}},
		question_id INT NOT NULL,
		opcao VARCHAR(500) NOT NULL,
		ordem INT NOT NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS SurveyEligibleUsers (
		Id {{ID}},
		survey_id INT NOT NULL,
		user_id INT NOT NULL,
		data_calculo DATETIME NULL,
		motivo_inclusao VARCHAR(100) NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS SurveyResponses (
		Id {{ID}},
		survey_id INT NOT NULL,
		question_id INT NOT NULL,
		user_id INT NOT NULL,
		resposta_texto TEXT NULL,
		resposta_numerica INT NULL,
		option_id INT NULL,
		data_resposta DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS SurveyFilialFilters (
		Id {{ID}},
		survey_id INT NOT NULL,
		filial_codigo VARCHAR(20) NOT NULL,
		filial_nome VARCHAR(100) NOT NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS SurveyDepartamentoFilters (
		Id {{ID}},
		survey_id INT NOT NULL,
		departamento_codigo VARCHAR(200) NULL,
		departamento_nome VARCHAR(200) NOT NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS Avaliacoes (
		Id {{ID}},
		UserId INT NOT NULL,
		GestorId INT NULL,
		TipoAvaliacaoId INT NOT NULL,
		Matricula VARCHAR(50) NOT NULL,
		DataAdmissao DATE NOT NULL,
		DataLimiteResposta DATE NULL,
		StatusAvaliacao VARCHAR(20) DEFAULT 'Agendada',
		RespostaColaboradorConcluida INT DEFAULT 0,
		RespostaGestorConcluida INT DEFAULT 0,
		DataRespostaColaborador DATETIME NULL,
		DataRespostaGestor DATETIME NULL,
		Observacoes VARCHAR(2000) NULL,
		CriadoEm DATETIME NULL,
		AtualizadoEm DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS QuestionarioPadrao (
		Id {{ID}},
		TipoAvaliacaoId INT NOT NULL,
		Ordem INT NOT NULL,
		TipoPergunta VARCHAR(20) NOT NULL,
		Pergunta VARCHAR(1000) NOT NULL,
		Obrigatoria INT DEFAULT 1,
		Ativo INT DEFAULT 1,
		EscalaMinima INT DEFAULT 1,
		EscalaMaxima INT DEFAULT 5,
		EscalaLabelMinima VARCHAR(100) NULL,
		EscalaLabelMaxima VARCHAR(100) NULL,
		CriadoEm DATETIME NULL,
		AtualizadoEm DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS OpcoesQuestionarioPadrao (
		Id {{ID}},
		PerguntaId INT NOT NULL,
		TextoOpcao VARCHAR(500) NOT NULL,
		Ordem INT NOT NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS PerguntasAvaliacao (
		Id {{ID}},
		AvaliacaoId INT NOT NULL,
		Ordem INT NOT NULL,
		Pergunta TEXT NOT NULL,
		TipoPergunta VARCHAR(50) NOT NULL,
		Obrigatoria INT NOT NULL DEFAULT 1,
		EscalaMinima INT NULL,
		EscalaMaxima INT NULL,
		EscalaLabelMinima VARCHAR(100) NULL,
		EscalaLabelMaxima VARCHAR(100) NULL,
		CriadoEm DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS OpcoesPerguntasAvaliacao (
		Id {{ID}},
		PerguntaAvaliacaoId INT NOT NULL,
		TextoOpcao VARCHAR(500) NOT NULL,
		Ordem INT NOT NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS RespostasAvaliacoes (
		Id {{ID}},
		AvaliacaoId INT NOT NULL,
		PerguntaId INT NOT NULL,
		Pergunta VARCHAR(1000) NOT NULL,
		TipoPergunta VARCHAR(20) NOT NULL,
		Resposta TEXT NULL,
		OpcaoSelecionadaId INT NULL,
		RespondidoPor INT NOT NULL,
		TipoRespondente VARCHAR(20) NOT NULL,
		DataResposta DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS AvaliacoesDesempenho (
		Id {{ID}},
		UserId INT NOT NULL,
		GestorId INT NULL,
		Titulo VARCHAR(255) NOT NULL,
		DataLimiteAutoAvaliacao DATE NULL,
		DataLimiteGestor DATE NULL,
		CriadoPor INT NOT NULL,
		Status VARCHAR(50) NOT NULL DEFAULT 'Pendente',
		DataCriacao DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS PerguntasDesempenho (
		Id {{ID}},
		Texto TEXT NOT NULL,
		Tipo VARCHAR(30) NOT NULL,
		Opcoes TEXT NULL,
		Obrigatoria INT NOT NULL DEFAULT 1,
		Ordem INT NOT NULL DEFAULT 0,
		EscalaMinima INT NULL,
		EscalaMaxima INT NULL,
		EscalaLabelMinima VARCHAR(100) NULL,
		EscalaLabelMaxima VARCHAR(100) NULL,
		Ativo INT NOT NULL DEFAULT 1
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS PerguntasAvaliacaoDesempenho (
		Id {{ID}},
		AvaliacaoId INT NOT NULL,
		Texto TEXT NOT NULL,
		Tipo VARCHAR(30) NOT NULL,
		Obrigatoria INT NOT NULL DEFAULT 1,
		Ordem INT NOT NULL DEFAULT 0,
		EscalaMinima INT NULL,
		EscalaMaxima INT NULL,
		EscalaLabelMinima VARCHAR(100) NULL,
		EscalaLabelMaxima VARCHAR(100) NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS OpcoesPerguntasAvaliacaoDesempenho (
		Id {{ID}},
		PerguntaId INT NOT NULL,
		TextoOpcao VARCHAR(500) NOT NULL,
		Ordem INT NOT NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS RespostasDesempenho (
		Id {{ID}},
		AvaliacaoId INT NOT NULL,
		PerguntaId INT NOT NULL,
		RespostaColaborador TEXT NULL,
		DataRespostaColaborador DATETIME NULL,
		RespostaGestor TEXT NULL,
		DataRespostaGestor DATETIME NULL,
		RespostaCalibrada TEXT NULL,
		JustificativaCalibrada TEXT NULL,
		DataRespostaCalibrada DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS CalibragemConsideracoes (
		Id {{ID}},
		AvaliacaoId INT NOT NULL,
		ConsideracoesFinais TEXT NOT NULL,
		CriadoPor INT NOT NULL,
		DataCriacao DATETIME NULL,
		DataAtualizacao DATETIME NULL
	){{ENGINE}}`,
	`CREATE TABLE IF NOT EXISTS FeedbacksAvaliacaoDesempenho (
		Id {{ID}},
		AvaliacaoId INT NOT NULL,
		FeedbackGestor TEXT NOT NULL,
		GestorId INT NOT NULL,
		DataCriacao DATETIME NULL
	){{ENGINE}}`,
}

// Migrations patch databases created by older releases.
var Migrations = []Migration{
	{Table: "Users", Column: "Role", Def: "VARCHAR(50) NULL"},
	{Table: "Users", Column: "IsExternal", Def: "INT NOT NULL DEFAULT 0"},
	{Table: "Users", Column: "DescricaoDepartamento", Def: "VARCHAR(200) NULL"},
	{Table: "Feedbacks", Column: "viewed", Def: "INT DEFAULT 0"},
	{Table: "Feedbacks", Column: "viewed_at", Def: "DATETIME NULL"},
	{Table: "FeedbackReplies", Column: "reply_to_id", Def: "INT NULL"},
	{Table: "FeedbackReplies", Column: "reply_to_message", Def: "TEXT NULL"},
	{Table: "FeedbackReplies", Column: "reply_to_user", Def: "VARCHAR(255) NULL"},
	{Table: "RespostasAvaliacoes", Column: "OpcaoSelecionadaId", Def: "INT NULL"},
	{Table: "Avaliacoes", Column: "GestorId", Def: "INT NULL"},
	{Table: "PDIs", Column: "AvaliacaoId", Def: "INT NULL"},
}

var indexes = []index{
	{"IX_Users_CPF", "Users", "CPF"},
	{"IX_Users_Matricula", "Users", "Matricula"},
	{"IX_TAB_HIST_SRA_CPF", "TAB_HIST_SRA", "CPF"},
	{"IX_HIERARQUIA_CC_DEPTO", "HIERARQUIA_CC", "DEPTO_ATUAL"},
	{"IX_Feedbacks_ToUser", "Feedbacks", "to_user_id"},
	{"IX_Feedbacks_FromUser", "Feedbacks", "from_user_id"},
	{"IX_Notifications_UserId_IsRead", "Notifications", "UserId, IsRead"},
	{"IX_Gamification_UserId", "Gamification", "UserId"},
	{"IX_DailyMood_User_Date", "DailyMood", "user_id, created_at"},
	{"IX_SurveyResponses_SurveyUser", "SurveyResponses", "survey_id, user_id"},
	{"IX_SurveyEligibleUsers_SurveyUser", "SurveyEligibleUsers", "survey_id, user_id"},
	{"IX_Avaliacoes_UserId", "Avaliacoes", "UserId"},
	{"IX_AvaliacoesDesempenho_UserId", "AvaliacoesDesempenho", "UserId"},
	{"IX_RespostasDesempenho_Avaliacao", "RespostasDesempenho", "AvaliacaoId, PerguntaId"},
}

var tiposAvaliacao = []struct {
	ID   int
	Nome string
	Dias int
	Desc string
}{
	{1, "Avaliação de 45 dias", 45, "Avaliação de experiência após 45 dias de admissão"},
	{2, "Avaliação de 90 dias", 90, "Avaliação de experiência após 90 dias de admissão"},
}

// Migrate creates every table, adds missing columns and indexes and seeds the
// evaluation types. Running it twice is a no-op.
func Migrate(ctx context.Context, conn *sql.DB, dialect string) error {
	for _, ddl := range schema {
		if _, err := conn.ExecContext(ctx, renderDDL(ddl, dialect)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	for _, m := range Migrations {
		exists, err := columnExists(ctx, conn, dialect, m.Table, m.Column)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", m.Table, m.Column, err)
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", m.Table, m.Column, err)
		}
	}

	for _, idx := range indexes {
		if err := ensureIndex(ctx, conn, dialect, idx); err != nil {
			return fmt.Errorf("index %s: %w", idx.Name, err)
		}
	}

	for _, t := range tiposAvaliacao {
		var count int
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM TiposAvaliacao WHERE Id = ?", t.ID).Scan(&count); err != nil {
			return fmt.Errorf("seed TiposAvaliacao: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := conn.ExecContext(ctx,
			"INSERT INTO TiposAvaliacao (Id, Nome, DiasMinimos, DiasMaximos, Descricao, Ativo) VALUES (?, ?, ?, ?, ?, 1)",
			t.ID, t.Nome, t.Dias, t.Dias, t.Desc,
		); err != nil {
			return fmt.Errorf("seed TiposAvaliacao: %w", err)
		}
	}
	return nil
}

// MigrateDefault migrates the process database.
func MigrateDefault(ctx context.Context) error {
	conn, err := Open()
	if err != nil {
		return err
	}
	return Migrate(ctx, conn, Driver())
}

func renderDDL(ddl, dialect string) string {
	id := "INT AUTO_INCREMENT PRIMARY KEY"
	engine := " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci"
	if dialect == DriverSQLite {
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
		engine = ""
	}
	out := strings.ReplaceAll(ddl, idPlaceholder, id)
	return strings.ReplaceAll(out, enginePlaceholder, engine)
}

func columnExists(ctx context.Context, conn *sql.DB, dialect, table, column string) (bool, error) {
	if dialect == DriverSQLite {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return false, err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				cid       int
				name      string
				colType   string
				notNull   int
				dfltValue sql.NullString
				pk        int
			)
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
				return false, err
			}
			if strings.EqualFold(name, column) {
				return true, nil
			}
		}
		return false, rows.Err()
	}

	var count int
	err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		table, column,
	).Scan(&count)
	return count > 0, err
}

func ensureIndex(ctx context.Context, conn *sql.DB, dialect string, idx index) error {
	if dialect == DriverSQLite {
		_, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.Name, idx.Table, idx.Columns))
		return err
	}
	var count int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.STATISTICS
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME = ?`,
		idx.Table, idx.Name,
	).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.Name, idx.Table, idx.Columns))
	return err
}
