package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/riskscope/riskscope/internal/server"
	"github.com/riskscope/riskscope/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local history as a JSON API",
	Long: `Serve the local history as a JSON API.

  GET    /api/history?filter=&search=&sort=
  GET    /api/stats
  GET    /api/history/export.csv
  GET    /api/history/{pos}/report?format=json|markdown
  DELETE /api/history/{pos}

Positions are 0-based, as returned by /api/history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := displayLocation()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close()

		dbPath, err := utils.HistoryPath(viper.GetString("history.dbpath"))
		if err != nil {
			return err
		}
		srv := server.New(st.history, viper.GetString("server.username"), viper.GetString("server.password"))
		srv.Location = loc
		srv.Lock = utils.NewWriteLock(dbPath)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Start(ctx, viper.GetString("server.listen"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "b", "127.0.0.1:8080", "HTTP listen address")
	serveCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	serveCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("server.username", serveCmd.Flags().Lookup("username"))
	viper.BindPFlag("server.password", serveCmd.Flags().Lookup("password"))
}
