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

// Package orders supplies the order batches of a planning run, either read
// from a file or drawn at random.
package orders

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/freightplan/intercity/freight/config"
	"github.com/freightplan/intercity/freight/errs"
	"github.com/freightplan/intercity/freight/network"
)

// Load reads a list of orders from a JSON (.json) or YAML (.yaml, .yml)
// file. Orders are validated when the network is built.
func Load(path string) ([]network.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading orders: %w", err)
	}
	var orders []network.Order
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &orders)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &orders)
	default:
		return nil, fmt.Errorf("orders file %q: unknown extension %q: %w", path, ext, errs.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing orders file %q: %v: %w", path, err, errs.ErrInvalidInput)
	}
	return orders, nil
}

// Generate draws `n` orders with ids 1..n. Each order goes either way with
// equal probability. Its window starts at a uniform period and lasts the
// autonomous travel time plus one to six periods, clipped to the horizon.
// Seven in ten orders are small parcels of 10 to 50 units, the rest bulk
// loads of 100 to 300 units. The same seed gives the same orders.
func Generate(cfg config.Config, n int, seed uint64) ([]network.Order, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative order count %d: %w", n, errs.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewPCG(seed, seed))
	minDuration := cfg.TravelPeriods + 1
	maxStart := cfg.Horizon - minDuration - 1

	orders := make([]network.Order, 0, n)
	for id := 1; id <= n; id++ {
		o := network.Order{ID: id, Flow: network.Reverse, PenaltyRate: cfg.PenaltyRate}
		if r.Float64() > 0.5 {
			o.Flow = network.Forward
		}
		if maxStart <= 0 {
			o.EarliestStart, o.LatestCompletion = 0, cfg.Horizon
		} else {
			o.EarliestStart = r.IntN(maxStart + 1)
			buffer := r.IntN(6)
			o.LatestCompletion = min(cfg.Horizon, o.EarliestStart+minDuration+buffer)
		}
		if r.Float64() > 0.3 {
			o.Quantity = float64(10 + r.IntN(41))
		} else {
			o.Quantity = float64(100 + r.IntN(201))
		}
		orders = append(orders, o)
	}
	return orders, nil
}
