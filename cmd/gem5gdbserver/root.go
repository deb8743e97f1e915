package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TurnOffNOD/gem5/internal/archx86"
	"github.com/TurnOffNOD/gem5/internal/gdbserver"
	"github.com/TurnOffNOD/gem5/internal/metrics"
	"github.com/TurnOffNOD/gem5/internal/simharness"
)

const demoMemorySize = 1 << 20 // 1 MiB, plenty for manual target.xml/memory pokes.

var rootCmd = &cobra.Command{
	Use:   "gem5gdbserver",
	Short: "Stand up a GDB remote stub over a simulated core",
	RunE:  runServe,
}

func init() {
	flags := rootCmd.Flags()
	flags.Int("port", 7000, "TCP port to accept the GDB connection on")
	flags.String("arch", "x86-64", "architecture port to use (only x86-64 is built in)")
	flags.String("loglevel", "info", "panic, fatal, error, warn, info, debug, trace")
	flags.String("metrics-addr", "", "address to serve Prometheus /metrics on, empty to disable")
	flags.String("config", "", "path to a gem5rsp.yaml config file (flags still take precedence)")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("arch", flags.Lookup("arch"))
	viper.BindPFlag("loglevel", flags.Lookup("loglevel"))
	viper.BindPFlag("metrics-addr", flags.Lookup("metrics-addr"))
	viper.BindPFlag("config", flags.Lookup("config"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg := viper.GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.SetConfigName("gem5rsp")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return err
		}
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(viper.GetString("loglevel"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	entry := logrus.NewEntry(log)

	var mset *metrics.Set
	if addr := viper.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		mset = metrics.NewSet(reg, "gem5gdbserver")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(addr, mux); err != nil {
				entry.WithError(err).Error("metrics server stopped")
			}
		}()
		entry.WithField("addr", addr).Info("serving prometheus metrics")
	}

	if viper.GetString("arch") != "x86-64" {
		entry.Fatalf("unsupported architecture %q: only x86-64 is built in", viper.GetString("arch"))
	}
	port := archx86.New()

	world := simharness.NewWorld()
	cpu := world.NewCPU(make([]byte, demoMemorySize))
	ctx := simharness.NewContext(cpu, port.Name())

	sess := gdbserver.NewSession(viper.GetInt("port"), port, world, world, entry, mset)
	if _, ok := sess.AddThreadContext(ctx); !ok {
		entry.Fatal("failed to register demo thread context")
	}

	return sess.Listen()
}
