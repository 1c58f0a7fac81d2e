// Package commands implements the sharedrt-demo command line.
package commands

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.llib.dev/frameless/pkg/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.llib.dev/sharedrt"
	"go.llib.dev/sharedrt/pkg/observe"
	"go.llib.dev/sharedrt/pkg/observe/otelobserve"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app is the state shared by the subcommands, set up before any of them runs.
type app struct {
	config  sharedrt.Config
	logger  *logging.Logger
	metrics observe.Metrics
	tracer  observe.Tracer

	stats    bool
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider

	trace bool
	spans *sdktrace.TracerProvider
}

func Execute(args []string) error {
	root := NewRoot(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.Execute()
}

// NewRoot builds the command tree writing results to out and logs to errOut.
func NewRoot(out, errOut io.Writer) *cobra.Command {
	var a app
	root := &cobra.Command{
		Use:          "sharedrt-demo",
		Short:        "Demos of interning, lazy loading, dispatch chains and undoable commands",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := sharedrt.LoadConfig()
			if err != nil {
				return err
			}
			lvl, _ := c.Level()
			a.config = c
			a.logger = &logging.Logger{
				Out:         errOut,
				Level:       lvl,
				MarshalFunc: json.Marshal,
			}
			if a.stats {
				a.reader = sdkmetric.NewManualReader()
				a.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(a.reader))
				a.metrics = otelobserve.NewMetrics(a.provider.Meter("sharedrt-demo"))
			}
			if a.trace {
				exporter, err := stdouttrace.New(stdouttrace.WithWriter(errOut))
				if err != nil {
					return err
				}
				a.spans = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
				a.tracer = otelobserve.NewTracer(a.spans.Tracer("sharedrt-demo"))
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.spans != nil {
				if err := a.spans.Shutdown(ctx); err != nil {
					return err
				}
			}
			if a.provider == nil {
				return nil
			}
			defer func() { _ = a.provider.Shutdown(ctx) }()
			var rm metricdata.ResourceMetrics
			if err := a.reader.Collect(ctx, &rm); err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), rm)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.stats, "stats", false, "print the collected metrics after the command")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "write the recorded spans as JSON to stderr")
	root.SetOut(out)
	root.SetErr(errOut)
	root.AddCommand(glyphsCmd(&a), supportCmd(&a), editCmd(&a))
	return root
}

func printStats(w io.Writer, rm metricdata.ResourceMetrics) {
	enc := attribute.DefaultEncoder()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "%s{%s} %d\n", m.Name, dp.Attributes.Encoded(enc), dp.Value)
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "%s{%s} %g\n", m.Name, dp.Attributes.Encoded(enc), dp.Value)
				}
			}
		}
	}
}
