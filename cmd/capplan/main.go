// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The capplan command plans intercity freight capacity for one instance or
// runs a batch of experiments and prints a summary table.
//
// Usage:
//
//	capplan -config instance.yaml -orders orders.json
//	capplan -random 50 -seed 100 -sweep
//	capplan -scale 100,200,500 -detail_dir results
//
// A .env file in the working directory may set CAPPLAN_CONFIG and
// CAPPLAN_ORDERS, used when the flags are empty.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"

	log "github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freightplan/intercity/freight/metrics"
)

var (
	configPath  = flag.String("config", "", "YAML configuration file; defaults apply when empty (env CAPPLAN_CONFIG)")
	ordersPath  = flag.String("orders", "", "JSON or YAML orders file; random orders are drawn when empty (env CAPPLAN_ORDERS)")
	random      = flag.Int("random", 20, "number of random orders when no orders file is given")
	seed        = flag.Uint64("seed", 42, "seed of the random orders")
	timeLimit   = flag.Duration("time_limit", defaultTimeLimit, "wall-clock limit of each solve")
	gap         = flag.Float64("gap", 0, "relative optimality gap at which a solve stops")
	verbose     = flag.Bool("verbose", false, "log solver progress")
	sweep       = flag.Bool("sweep", false, "run the autonomous fleet x autonomous cost x manual fleet sensitivity sweep")
	scale       = flag.String("scale", "", "comma separated order counts of a scale experiment, e.g. 100,200,500")
	detailDir   = flag.String("detail_dir", "", "directory receiving one detail JSON per run")
	summaryOut  = flag.String("summary_out", "", "CSV file receiving the summary table; stdout when empty")
	metricsAddr = flag.String("metrics_addr", "", "address serving Prometheus metrics, e.g. :9090")
)

func main() {
	flag.Parse()
	defer log.Flush()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warningf("loading .env: %v", err)
	}
	opts := options{
		configPath: firstNonEmpty(*configPath, os.Getenv("CAPPLAN_CONFIG")),
		ordersPath: firstNonEmpty(*ordersPath, os.Getenv("CAPPLAN_ORDERS")),
		random:     *random,
		seed:       *seed,
		timeLimit:  *timeLimit,
		gap:        *gap,
		verbose:    *verbose,
		sweep:      *sweep,
		detailDir:  *detailDir,
	}
	var err error
	if opts.scale, err = parseCounts(*scale); err != nil {
		log.Exitf("invalid -scale: %v", err)
	}

	if *metricsAddr != "" {
		metrics.RegisterDefault()
		go func() {
			handler := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
			if err := http.ListenAndServe(*metricsAddr, handler); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := os.Stdout
	if *summaryOut != "" {
		f, err := os.Create(*summaryOut)
		if err != nil {
			log.Exitf("creating summary file: %v", err)
		}
		defer f.Close()
		out = f
	}
	if err := run(ctx, opts, out); err != nil {
		log.Exitf("capplan: %v", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
