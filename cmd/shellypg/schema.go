package shellypg

import (
	"github.com/edgeflare/shellypg/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the sensor table and index if missing, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if printVersion(cmd) {
			return nil
		}
		defer logger.Sync() //nolint:errcheck

		conn, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		closeConn(conn)

		logger.Info("Schema is up to date", zap.String("table", store.Table))
		return nil
	},
}
