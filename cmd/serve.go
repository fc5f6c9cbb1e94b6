package cmd

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/fleetsim/fleetsim/bus"
	"github.com/fleetsim/fleetsim/dispatch"
	"github.com/fleetsim/fleetsim/fleet"
	"github.com/fleetsim/fleetsim/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, optimizer endpoint, and dashboard stream",
	Long: `serve starts the long-running system: runs are created over HTTP,
the run manager spawns a simulator and dispatcher per run, snapshots are
pushed to websocket dashboard clients, and the GA planner is served on the
/api/optimize endpoint. The dispatcher calls the planner in-process unless
--optimizer-url names an external endpoint.

Settings come from flags, FLEETSIM_* environment variables, and a
fleetsim.yaml config file, in that order of precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		v := viper.New()
		v.SetConfigName("fleetsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.SetEnvPrefix("fleetsim")
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		v.AutomaticEnv()
		v.SetDefault("addr", ":8080")
		v.SetDefault("pace", 1.0)
		v.SetDefault("optimizer-url", "")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return err
			}
		} else {
			logrus.Infof("loaded config %s", v.ConfigFileUsed())
		}
		if cmd.Flags().Changed("addr") {
			v.Set("addr", serveAddr)
		}
		if cmd.Flags().Changed("pace") {
			v.Set("pace", servePace)
		}
		if cmd.Flags().Changed("optimizer-url") {
			v.Set("optimizer-url", optimizerURL)
		}

		simCfg, dispCfg, gaCfg := buildConfigs()

		exchange := bus.NewExchange()
		var opt dispatch.OptimizerClient = dispatch.LocalOptimizer{Cfg: gaCfg}
		if url := v.GetString("optimizer-url"); url != "" {
			opt = dispatch.HTTPOptimizer{URL: url}
		}

		manager := fleet.NewManager(exchange, simCfg, dispCfg, opt, v.GetFloat64("pace"))
		api := server.New(v.GetString("addr"), exchange, gaCfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return manager.Run(ctx) })
		g.Go(func() error { return api.Run(ctx) })
		err := g.Wait()
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	},
}

var (
	serveAddr    string
	servePace    float64
	optimizerURL string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().Float64Var(&servePace, "pace", 1.0, "Wall-clock seconds per sim-second (0 = unpaced)")
	serveCmd.Flags().StringVar(&optimizerURL, "optimizer-url", "", "External optimizer endpoint (empty = in-process)")

	rootCmd.AddCommand(serveCmd)
}
