package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumigente_backend/engagement/analytics"
	"lumigente_backend/engagement/avaliacoes"
	"lumigente_backend/engagement/desempenho"
	"lumigente_backend/engagement/feedbacks"
	"lumigente_backend/engagement/gamification"
	"lumigente_backend/engagement/historico"
	"lumigente_backend/engagement/humor"
	"lumigente_backend/engagement/notifications"
	"lumigente_backend/engagement/objetivos"
	"lumigente_backend/engagement/pesquisas"
	"lumigente_backend/engagement/recognitions"
	"lumigente_backend/main/api"
	"lumigente_backend/main/logger"
	"lumigente_backend/main/metrics"
	"lumigente_backend/main/ratelimit"
	"lumigente_backend/main/session"
	"lumigente_backend/users/auth"
	"lumigente_backend/users/external"
	"lumigente_backend/users/profile"
)

func registerRoutes(r *gin.Engine, limits *ratelimit.Set, frontendDir string) {
	r.GET("/internal/metrics", metrics.Handler())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"project": "LumiGente",
			"status":  "ok",
		})
	})

	pub := r.Group("/api", limits.API.Middleware())
	login := []gin.HandlerFunc{limits.Login.Middleware(), logger.Audit("LOGIN_ATTEMPT"), auth.LoginHandler}
	pub.POST("/login", login...)
	pub.POST("/auth/login", login...)
	pub.POST("/register", limits.Token.Middleware(), logger.Audit("REGISTER"), auth.RegisterHandler)
	pub.POST("/check-cpf", limits.Token.Middleware(), auth.CheckCPFHandler)
	pub.POST("/logout", logger.Audit("LOGOUT"), auth.LogoutHandler)

	a := pub.Group("", session.RequireAuth())
	create := limits.Create.Middleware()

	// Usuários
	a.GET("/usuario", profile.CurrentUserHandler)
	a.GET("/users", profile.CurrentUserHandler)
	a.GET("/users/permissions", profile.PermissionsHandler)
	a.GET("/users/status", profile.StatusHandler)
	a.GET("/users/debug/permissions", profile.DebugUserPermissionsHandler)
	a.POST("/refresh-permissions", profile.RefreshPermissionsHandler)
	a.GET("/debug-permissions/:matricula", profile.DebugPermissionsHandler)
	a.GET("/users/list", profile.ListUsersHandler)
	a.GET("/users/feedback", profile.FeedbackUsersHandler)
	a.GET("/users/subordinates", profile.SubordinatesHandler)
	a.GET("/departments", auth.RequireManager(), profile.DepartmentsHandler)
	a.PUT("/users/profile", profile.UpdateProfileHandler)
	a.PUT("/users/password", logger.Audit("CHANGE_PASSWORD"), profile.ChangePasswordHandler)

	// Feedbacks
	a.GET("/metrics", feedbacks.MetricsHandler)
	fb := a.Group("/feedbacks")
	fb.GET("", feedbacks.MetricsHandler)
	fb.GET("/received", feedbacks.ReceivedHandler)
	fb.GET("/sent", feedbacks.SentHandler)
	fb.GET("/filters", feedbacks.FiltersHandler)
	fb.POST("", create, logger.Audit("CREATE_FEEDBACK"), feedbacks.CreateHandler)
	fb.GET("/:id/info", feedbacks.InfoHandler)
	fb.GET("/:id/messages", feedbacks.MessagesHandler)
	fb.POST("/:id/messages", create, feedbacks.PostMessageHandler)
	fb.POST("/:id/react", feedbacks.ReactHandler)
	fb.POST("/messages/:messageId/react", feedbacks.ReactMessageHandler)

	// Reconhecimentos e gamificação
	rc := a.Group("/recognitions")
	rc.POST("", create, logger.Audit("CREATE_RECOGNITION"), recognitions.CreateHandler)
	rc.GET("", recognitions.ReceivedHandler)
	rc.GET("/received", recognitions.ReceivedHandler)
	rc.GET("/given", recognitions.GivenHandler)
	rc.GET("/all", recognitions.AllHandler)
	rc.GET("/points", gamification.PointsHandler)
	rc.GET("/leaderboard", gamification.LeaderboardHandler)
	a.GET("/gamification/leaderboard", gamification.LeaderboardHandler)
	a.GET("/gamification/actions", gamification.ActionsHandler)

	// Notificações
	nt := a.Group("/notifications")
	nt.GET("", notifications.ListHandler)
	nt.GET("/count", notifications.CountHandler)
	nt.PUT("/read-all", notifications.MarkAllReadHandler)
	nt.PUT("/:id/read", notifications.MarkReadHandler)

	// Humor
	hm := a.Group("/humor")
	hm.POST("", humor.RecordHandler)
	hm.GET("", humor.TodayHandler)
	hm.GET("/colleagues-today", humor.ColleaguesTodayHandler)
	hm.GET("/history", humor.HistoryHandler)
	hm.GET("/team-metrics", auth.RequireManager(), humor.TeamMetricsHandler)
	hm.GET("/team-history", auth.RequireManager(), humor.TeamHistoryHandler)
	hm.GET("/empresa", auth.RequireFeature("humor_empresa"), humor.CompanyHandler)
	hm.GET("/metrics", auth.RequireFeature("analytics"), humor.MetricsHandler)

	// Objetivos
	ob := a.Group("/objetivos")
	ob.GET("", objetivos.ListHandler)
	ob.POST("", create, objetivos.CreateHandler)
	ob.GET("/filtros", objetivos.FiltersHandler)
	ob.GET("/:id", objetivos.GetHandler)
	ob.PUT("/:id", objetivos.UpdateHandler)
	ob.DELETE("/:id", objetivos.DeleteHandler)
	ob.POST("/:id/checkin", objetivos.CheckinHandler)
	ob.GET("/:id/checkins", objetivos.CheckinsHandler)
	ob.POST("/:id/approve", auth.RequireManager(), objetivos.ApproveHandler)
	ob.POST("/:id/reject", auth.RequireManager(), objetivos.RejectHandler)

	// Pesquisas, also served as /surveys
	for _, prefix := range []string{"/pesquisas", "/surveys"} {
		pesquisaRoutes(a.Group(prefix), create)
	}

	// Avaliações
	av := a.Group("/avaliacoes")
	av.GET("/minhas", avaliacoes.MinhasHandler)
	av.POST("/responder", avaliacoes.RespondHandler)
	av.GET("/:id", avaliacoes.GetHandler)
	av.GET("/:id/respostas", avaliacoes.RespostasHandler)
	av.GET("/:id/relatorio", avaliacoes.RelatorioHandler)
	avf := av.Group("", auth.RequireFeature("avaliacoes"))
	avf.GET("/todas", avaliacoes.TodasHandler)
	avf.POST("/verificar", avaliacoes.VerifyHandler)
	avf.POST("/:id/reabrir", avaliacoes.ReopenHandler)
	avf.GET("/questionario/:tipo", avaliacoes.QuestionarioHandler)
	avf.PUT("/questionario/:tipo", avaliacoes.UpdateQuestionarioHandler)
	avf.GET("/templates/:tipo/perguntas", avaliacoes.QuestionarioHandler)
	avf.POST("/templates/:tipo/perguntas", avaliacoes.AddQuestionHandler)
	avf.PUT("/templates/:tipo/perguntas/reordenar", avaliacoes.ReorderHandler)
	avf.PUT("/templates/:tipo/perguntas/:id", avaliacoes.UpdateQuestionHandler)
	avf.DELETE("/templates/:tipo/perguntas/:id", avaliacoes.DeleteQuestionHandler)
	avf.GET("/questionario/:tipo/perguntas/:id/opcoes", avaliacoes.OptionsHandler)

	// Avaliações de desempenho
	dp := av.Group("/desempenho")
	dp.POST("/criar", create, logger.Audit("CREATE_PERFORMANCE_REVIEW"), desempenho.CriarHandler)
	dp.GET("/minhas", desempenho.MinhasHandler)
	dp.GET("/todas", desempenho.TodasHandler)
	dp.GET("/questionario", desempenho.QuestionarioHandler)
	dp.POST("/perguntas", desempenho.CriarPerguntaHandler)
	dp.POST("/perguntas/reordenar", desempenho.ReordenarHandler)
	dp.PUT("/perguntas/:id", desempenho.AtualizarPerguntaHandler)
	dp.DELETE("/perguntas/:id", desempenho.ExcluirPerguntaHandler)
	dp.GET("/:id", desempenho.GetHandler)
	dp.GET("/:id/respostas", desempenho.RespostasHandler)
	dp.GET("/:id/questionario", desempenho.QuestionarioAvaliacaoHandler)
	dp.POST("/:id/responder", desempenho.ResponderHandler)
	dp.POST("/:id/calibrar", desempenho.CalibrarHandler)
	dp.POST("/:id/feedback-pdi", desempenho.FeedbackPDIHandler)

	// Histórico
	hs := a.Group("/historico", auth.RequireFeature("historico"))
	hs.GET("/dados", historico.DadosHandler)
	hs.GET("/opcoes", historico.OpcoesHandler)
	hs.GET("/export", historico.ExportHandler)
	hs.GET("/tabela", historico.TabelaHandler)
	hs.GET("/rh/objetivos", historico.ObjetivosHandler)
	hs.GET("/rh/feedbacks", historico.FeedbacksHandler)
	hs.GET("/rh/feedbacks/:id/mensagens", historico.FeedbackMessagesHandler)
	hs.GET("/rh/reconhecimentos", historico.ReconhecimentosHandler)
	hs.GET("/rh/humor", historico.HumorHandler)
	hs.GET("/rh/pdis", historico.PDIsHandler)

	// Analytics e equipe, also served as /manager
	for _, prefix := range []string{"/analytics", "/manager"} {
		analyticsRoutes(a.Group(prefix))
	}
	a.GET("/team/members", auth.RequireManager(), analytics.TeamMembersHandler)

	// Usuários externos
	ex := a.Group("/external-users", auth.RequireExternalAdmin())
	ex.GET("", external.ListHandler)
	ex.GET("/:id", external.GetHandler)
	ex.POST("", create, logger.Audit("CREATE_EXTERNAL_USER"), external.CreateHandler)
	ex.PUT("/:id", external.UpdateHandler)
	ex.DELETE("/:id", logger.Audit("DEACTIVATE_EXTERNAL_USER"), external.DeactivateHandler)
	ex.POST("/:id/activate", external.ActivateHandler)

	var static gin.HandlerFunc
	if frontendDir != "" {
		static = frontend(frontendDir)
	}
	r.NoRoute(api.NotFound(static))
}

func pesquisaRoutes(ps *gin.RouterGroup, create gin.HandlerFunc) {
	ps.GET("", pesquisas.ListHandler)
	ps.GET("/stats", pesquisas.StatsHandler)
	ps.GET("/stats/user", pesquisas.StatsHandler)
	ps.GET("/departamentos", pesquisas.DepartamentosHandler)
	ps.GET("/builder/pergunta", pesquisas.BuilderQuestionHandler)
	ps.GET("/builder/opcoes", pesquisas.BuilderOptionsHandler)
	ps.GET("/:id", pesquisas.GetHandler)
	ps.GET("/:id/form", pesquisas.FormHandler)
	ps.GET("/:id/my-response", pesquisas.MyResponseHandler)
	ps.POST("/:id/responder", pesquisas.RespondHandler)
	psf := ps.Group("", auth.RequireFeature("pesquisas"))
	psf.POST("", create, pesquisas.CreateHandler)
	psf.GET("/meta/filtros", pesquisas.MetaFiltrosHandler)
	psf.GET("/:id/resultados", pesquisas.ResultsHandler)
	psf.POST("/:id/reabrir", pesquisas.ReopenHandler)
	psf.POST("/:id/encerrar", pesquisas.CloseHandler)
}

func analyticsRoutes(an *gin.RouterGroup) {
	an.GET("/metrics", analytics.UserMetricsHandler)
	an.GET("/rankings", analytics.RankingsHandler)
	an.GET("/gamification-leaderboard", analytics.LeaderboardHandler)
	anf := an.Group("", auth.RequireFeature("analytics"))
	anf.GET("", analytics.ComprehensiveHandler)
	anf.GET("/comprehensive", analytics.ComprehensiveHandler)
	anf.GET("/departments-list", analytics.DepartmentsListHandler)
	anf.GET("/temporal", analytics.TemporalHandler)
	anf.GET("/dashboard", analytics.DashboardHandler)
	anf.GET("/department-analytics", analytics.DepartmentAnalyticsHandler)
	anf.GET("/trends", analytics.TrendsHandler)
	anf.GET("/available-departments", analytics.AvailableDepartmentsHandler)
	team := an.Group("", auth.RequireFeature("team"))
	team.GET("/team-management", analytics.TeamManagementHandler)
	team.GET("/team-metrics", analytics.TeamMetricsHandler)
	team.GET("/team-status", analytics.TeamStatusHandler)
	team.GET("/departments", analytics.DepartmentsHandler)
	team.GET("/employee-info/:employeeId", analytics.EmployeeInfoHandler)
	team.GET("/employee-feedbacks/:employeeId", analytics.EmployeeFeedbacksHandler)
}

// frontend serves the static pages; index.html answers "/".
func frontend(dir string) gin.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			api.Fail(c, http.StatusNotFound, "Rota não encontrada")
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}
