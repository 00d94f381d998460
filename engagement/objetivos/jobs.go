package objetivos

import (
	"context"

	"go.uber.org/zap"

	"lumigente_backend/main/logger"
	"lumigente_backend/main/play_sql"
)

// UpdateStatus starts scheduled objectives whose start date arrived and
// expires active ones past their end date. Runs as objetivo_status.
func UpdateStatus(ctx context.Context) error {
	today := play_sql.Today()
	now := play_sql.Now()
	started, err := play_sql.Exec(ctx,
		"UPDATE Objetivos SET status = ?, updated_at = ? WHERE status = ? AND data_inicio <= ?",
		Ativo, now, Agendado, today)
	if err != nil {
		return err
	}
	expired, err := play_sql.Exec(ctx,
		"UPDATE Objetivos SET status = ?, updated_at = ? WHERE status = ? AND data_fim < ?",
		Expirado, now, Ativo, today)
	if err != nil {
		return err
	}
	logger.L().Info("objetivos status", zap.Int64("ativados", started), zap.Int64("expirados", expired))
	return nil
}

// ExpirePDIs marks open development plans past their deadline as Expirado.
// Runs as pdi_status.
func ExpirePDIs(ctx context.Context) error {
	n, err := play_sql.Exec(ctx, `
		UPDATE PDIs SET Status = 'Expirado', DataAtualizacao = ?
		WHERE PrazoConclusao < ? AND Status NOT IN ('Concluído', 'Cancelado', 'Expirado')`,
		play_sql.Now(), play_sql.Today())
	if err != nil {
		return err
	}
	logger.L().Info("pdis status", zap.Int64("expirados", n))
	return nil
}
