package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lumigente_backend/engagement/historico"
)

var historicoDir string

var historicoCmd = &cobra.Command{
	Use:   "historico",
	Short: "Histórico spreadsheet tasks",
}

var historicoCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load every configured spreadsheet and print its row count",
	RunE:  runHistoricoCheck,
}

func init() {
	historicoCheckCmd.Flags().StringVar(&historicoDir, "dir", "", "spreadsheet directory (default HISTORICO_DIR)")
	historicoCmd.AddCommand(historicoCheckCmd)
}

func runHistoricoCheck(cmd *cobra.Command, args []string) error {
	dir := cfg.HistoricoDir
	var files map[string]string
	if cfg.HistoricoFiles != "" {
		d, f, err := historico.LoadFiles(cfg.HistoricoFiles)
		if err != nil {
			return err
		}
		if d != "" {
			dir = d
		}
		files = f
	}
	if historicoDir != "" {
		dir = historicoDir
	}
	missing, err := CheckHistorico(cmd, historico.NewLoader(dir, historico.WithFiles(files)))
	if err != nil {
		return err
	}
	if missing == len(historico.Tipos) {
		return fmt.Errorf("no spreadsheet found in %s", dir)
	}
	return nil
}

// CheckHistorico prints one line per tipo and returns how many are missing.
func CheckHistorico(cmd *cobra.Command, l *historico.Loader) (int, error) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIPO\tARQUIVO\tLINHAS\tCOLUNAS")
	missing := 0
	for _, tipo := range historico.Tipos {
		path, err := l.Path(tipo)
		if err != nil {
			return 0, err
		}
		s, err := l.Section(cmd.Context(), tipo)
		switch {
		case errors.Is(err, historico.ErrNoFile):
			missing++
			fmt.Fprintf(w, "%s\t%s\tausente\t-\n", tipo, path)
		case err != nil:
			return 0, fmt.Errorf("%s: %w", tipo, err)
		default:
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", tipo, path, s.Metadados.TotalLinhas, s.Metadados.TotalColunas)
		}
	}
	return missing, w.Flush()
}
