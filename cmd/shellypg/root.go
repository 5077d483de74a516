package shellypg

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/edgeflare/shellypg/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string
var cfg *config.Config
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "shellypg",
	Short: "shellypg stores Shelly H&T sensor readings in PostgreSQL",
	Long: `shellypg subscribes to the MQTT topics of a Shelly H&T sensor and upserts
every reading into the shelly_sensor_data table, reconnecting to the broker
until it is stopped.

The broker and database are configured through the required environment
variables MQTT_BROKER, MQTT_PORT, MQTT_USERNAME, MQTT_PASSWORD, PG_HOST,
PG_DATABASE, PG_USER and PG_PASSWORD.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		if printVersion(cmd) {
			return nil
		}
		return runBridge(cmd.Context())
	},
}

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/shellypg.yaml)")
	rootCmd.PersistentFlags().StringP("log-level", "L", config.DefaultLogLevel, "log at this level (debug, info, warn, error, fatal, none)")
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Print the version number")

	rootCmd.Flags().Duration("retry-interval", config.DefaultRetryInterval, "wait between broker connection attempts")
	rootCmd.Flags().String("client-id", "", "MQTT client id (default shellypg-<random>)")
	rootCmd.Flags().Uint8("qos", 0, "MQTT subscription QoS (0, 1 or 2)")
	rootCmd.Flags().Bool("metrics", true, "Enable Prometheus metrics server")
	rootCmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "Prometheus metrics server address")

	bindFlag("logLevel", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("bridge.retryInterval", rootCmd.Flags().Lookup("retry-interval"))
	bindFlag("bridge.clientID", rootCmd.Flags().Lookup("client-id"))
	bindFlag("bridge.qos", rootCmd.Flags().Lookup("qos"))
	bindFlag("metrics.enabled", rootCmd.Flags().Lookup("metrics"))
	bindFlag("metrics.addr", rootCmd.Flags().Lookup("metrics-addr"))

	rootCmd.AddCommand(schemaCmd)
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %q: %v", key, err))
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if versionRequested(cmd) {
		return nil
	}

	var err error
	if cfg, err = config.Load(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	if logger, err = newLogger(cfg.LogLevel); err != nil {
		return err
	}
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Info("Using config file", zap.String("path", f))
	}
	return nil
}

// versionRequested reports whether --version was passed to cmd or a parent.
// Config is not loaded in that case, so every RunE must check it first.
func versionRequested(cmd *cobra.Command) bool {
	versionFlag, _ := cmd.Flags().GetBool("version")
	return versionFlag
}

func printVersion(cmd *cobra.Command) bool {
	if !versionRequested(cmd) {
		return false
	}
	fmt.Fprintln(cmd.OutOrStdout(), config.Version)
	return true
}

func newLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "none") {
		return zap.NewNop(), nil
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}
