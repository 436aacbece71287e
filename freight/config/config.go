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

// Package config holds the parameters of one planning instance.
//
// A Config is read from YAML and overlaid on Default, so a file only needs
// the fields that differ:
//
//	horizon: 6
//	travel_periods: 2
//	auto_fleet: {city1: 0, city2: 0}
package config

import (
	"fmt"
	"math"
	"os"

	"github.com/freightplan/intercity/freight/errs"
	"gopkg.in/yaml.v3"
)

// PerCity holds a vehicle count for each of the two cities.
type PerCity struct {
	City1 int `yaml:"city1" json:"city1"`
	City2 int `yaml:"city2" json:"city2"`
}

// Get returns the value for city 1 or 2.
func (p PerCity) Get(city int) int {
	if city == 2 {
		return p.City2
	}
	return p.City1
}

// Total returns City1 + City2.
func (p PerCity) Total() int {
	return p.City1 + p.City2
}

// ServiceRate holds the parameters of T(λ) = a·λ + b·√λ.
type ServiceRate struct {
	A float64 `yaml:"a" json:"a"`
	B float64 `yaml:"b" json:"b"`
}

// Config describes the time horizon, the fleets and the cost structure.
type Config struct {
	// Horizon is the number of discrete periods T.
	Horizon int `yaml:"horizon" json:"horizon"`
	// PeriodMinutes is the duration t0 of a single period.
	PeriodMinutes float64 `yaml:"period_minutes" json:"period_minutes"`
	// TravelPeriods is the intercity driving time τ of autonomous vehicles.
	TravelPeriods int `yaml:"travel_periods" json:"travel_periods"`

	ManualFleet PerCity `yaml:"manual_fleet" json:"manual_fleet"`
	AutoFleet   PerCity `yaml:"auto_fleet" json:"auto_fleet"`

	ManualCapacity float64 `yaml:"manual_capacity" json:"manual_capacity"`
	AutoCapacity   float64 `yaml:"auto_capacity" json:"auto_capacity"`

	// ManualCost and AutoCost are per vehicle-minute.
	ManualCost float64 `yaml:"manual_cost" json:"manual_cost"`
	AutoCost   float64 `yaml:"auto_cost" json:"auto_cost"`
	// PenaltyRate is the per-unit penalty given to generated orders.
	PenaltyRate float64 `yaml:"penalty_rate" json:"penalty_rate"`

	ServiceRate1 ServiceRate `yaml:"service_rate_city1" json:"service_rate_city1"`
	ServiceRate2 ServiceRate `yaml:"service_rate_city2" json:"service_rate_city2"`
}

// Default returns the reference instance: a day of hourly periods with a
// four hour intercity drive.
func Default() Config {
	return Config{
		Horizon:        24,
		PeriodMinutes:  60,
		TravelPeriods:  4,
		ManualFleet:    PerCity{City1: 30, City2: 30},
		AutoFleet:      PerCity{City1: 15, City2: 15},
		ManualCapacity: 1000,
		AutoCapacity:   2000,
		ManualCost:     20,
		AutoCost:       15,
		PenaltyRate:    500,
		ServiceRate1:   ServiceRate{A: 0.05, B: 0.1},
		ServiceRate2:   ServiceRate{A: 0.05, B: 0.1},
	}
}

// ServiceRateFor returns the service-rate parameters of city 1 or 2.
func (c Config) ServiceRateFor(city int) ServiceRate {
	if city == 2 {
		return c.ServiceRate2
	}
	return c.ServiceRate1
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %v: %w", err, errs.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first dimensionally invalid field.
func (c Config) Validate() error {
	invalid := func(format string, a ...any) error {
		return fmt.Errorf(format+": %w", append(a, errs.ErrInvalidInput)...)
	}
	switch {
	case c.Horizon <= 0:
		return invalid("horizon %d must be positive", c.Horizon)
	case !positive(c.PeriodMinutes):
		return invalid("period_minutes %v must be positive", c.PeriodMinutes)
	case c.TravelPeriods <= 0:
		return invalid("travel_periods %d must be positive", c.TravelPeriods)
	case c.ManualFleet.City1 < 0 || c.ManualFleet.City2 < 0:
		return invalid("manual_fleet %+v must be non-negative", c.ManualFleet)
	case c.AutoFleet.City1 < 0 || c.AutoFleet.City2 < 0:
		return invalid("auto_fleet %+v must be non-negative", c.AutoFleet)
	case !positive(c.ManualCapacity):
		return invalid("manual_capacity %v must be positive", c.ManualCapacity)
	case !positive(c.AutoCapacity):
		return invalid("auto_capacity %v must be positive", c.AutoCapacity)
	case !nonNegative(c.ManualCost) || !nonNegative(c.AutoCost):
		return invalid("costs (%v, %v) must be non-negative", c.ManualCost, c.AutoCost)
	case !nonNegative(c.PenaltyRate):
		return invalid("penalty_rate %v must be non-negative", c.PenaltyRate)
	}
	for city, sr := range []ServiceRate{c.ServiceRate1, c.ServiceRate2} {
		if !positive(sr.A) || !positive(sr.B) {
			return invalid("service rate of city %d (a=%v, b=%v) must be positive", city+1, sr.A, sr.B)
		}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
