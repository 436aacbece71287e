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

package network

import (
	"fmt"
	"slices"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/freightplan/intercity/freight/config"
	"github.com/freightplan/intercity/freight/errs"
	"github.com/freightplan/intercity/freight/servicerate"
)

// cityNetwork is the manual fleet of one city.
type cityNetwork struct {
	rate     *servicerate.Model
	span     int
	arcs     []TimeArc
	active   ActiveIndex
	capacity CapacityTable
}

// Network is the time-expanded network of one planning instance. It is
// never mutated after Build and may be read concurrently.
type Network struct {
	cfg        config.Config
	cities     map[City]*cityNetwork
	autoArcs   []TimeArc
	autoActive ActiveIndex
	orders     map[int]Order
	orderIDs   []int
	infeasible InfeasibleSet
}

// Build validates `cfg` and `orders` and constructs the network. The two
// cities are built concurrently. Any error aborts the construction.
func Build(cfg config.Config, orders []Order) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Network{
		cfg:    cfg,
		cities: make(map[City]*cityNetwork, len(Cities)),
		orders: make(map[int]Order, len(orders)),
	}
	for _, o := range orders {
		if err := o.Validate(cfg.Horizon); err != nil {
			return nil, err
		}
		if _, dup := n.orders[o.ID]; dup {
			return nil, fmt.Errorf("duplicate order id %d: %w", o.ID, errs.ErrInvalidInput)
		}
		n.orders[o.ID] = o
		n.orderIDs = append(n.orderIDs, o.ID)
	}
	slices.Sort(n.orderIDs)

	built := make([]*cityNetwork, len(Cities))
	var g errgroup.Group
	for i, c := range Cities {
		g.Go(func() error {
			cn, err := buildCity(cfg, c)
			if err != nil {
				return fmt.Errorf("%v: %w", c, err)
			}
			built[i] = cn
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, c := range Cities {
		n.cities[c] = built[i]
	}

	n.autoArcs = AutoArcs(cfg.Horizon, cfg.TravelPeriods)
	n.autoActive = NewActiveIndex(cfg.Horizon, n.autoArcs)

	manual := make(map[City][]TimeArc, len(Cities))
	for c, cn := range n.cities {
		manual[c] = cn.arcs
	}
	n.infeasible = FilterTimeWindows(manual, n.autoArcs, cfg.TravelPeriods, n.Orders())

	if log.V(1) {
		log.Infof("network: T=%d manual arcs city1=%d (span %d) city2=%d (span %d), autonomous arcs=%d, orders=%d, infeasible pairs=%d",
			cfg.Horizon, len(n.cities[City1].arcs), n.cities[City1].span, len(n.cities[City2].arcs), n.cities[City2].span,
			len(n.autoArcs), len(n.orders), n.infeasible.Len())
	}
	return n, nil
}

func buildCity(cfg config.Config, c City) (*cityNetwork, error) {
	sr := cfg.ServiceRateFor(int(c))
	rate, err := servicerate.New(sr.A, sr.B)
	if err != nil {
		return nil, err
	}
	span, err := ManualSpan(rate, cfg.ManualCapacity, cfg.PeriodMinutes)
	if err != nil {
		return nil, err
	}
	arcs := ManualArcs(cfg.Horizon, span)
	capacity, err := NewCapacityTable(rate, arcs, cfg.PeriodMinutes)
	if err != nil {
		return nil, err
	}
	return &cityNetwork{
		rate:     rate,
		span:     span,
		arcs:     arcs,
		active:   NewActiveIndex(cfg.Horizon, arcs),
		capacity: capacity,
	}, nil
}

// Config returns the configuration the network was built from.
func (n *Network) Config() config.Config { return n.cfg }

// Horizon returns the number of periods T.
func (n *Network) Horizon() int { return n.cfg.Horizon }

// ManualArcs returns the manual arcs of city c.
func (n *Network) ManualArcs(c City) []TimeArc {
	if cn, ok := n.cities[c]; ok {
		return slices.Clone(cn.arcs)
	}
	return nil
}

// ManualSpan returns the longest manual trip of city c, in periods.
func (n *Network) ManualSpan(c City) int {
	if cn, ok := n.cities[c]; ok {
		return cn.span
	}
	return 0
}

// ManualActive returns the active-arc index of the manual fleet of city c.
func (n *Network) ManualActive(c City) ActiveIndex {
	if cn, ok := n.cities[c]; ok {
		return cn.active
	}
	return NewActiveIndex(n.cfg.Horizon, nil)
}

// Capacity returns the capacity coefficients of the manual arcs of city c.
func (n *Network) Capacity(c City) CapacityTable {
	if cn, ok := n.cities[c]; ok {
		return cn.capacity
	}
	return CapacityTable{}
}

// ServiceRate returns the service-rate model of city c.
func (n *Network) ServiceRate(c City) *servicerate.Model {
	if cn, ok := n.cities[c]; ok {
		return cn.rate
	}
	return nil
}

// AutoArcs returns the autonomous arcs.
func (n *Network) AutoArcs() []TimeArc {
	return slices.Clone(n.autoArcs)
}

// AutoActive returns the active-arc index of the autonomous fleet.
func (n *Network) AutoActive() ActiveIndex { return n.autoActive }

// Orders returns the orders sorted by id.
func (n *Network) Orders() []Order {
	out := make([]Order, 0, len(n.orderIDs))
	for _, id := range n.orderIDs {
		out = append(out, n.orders[id])
	}
	return out
}

// OrdersByFlow returns the orders of flow f sorted by id.
func (n *Network) OrdersByFlow(f Flow) []Order {
	var out []Order
	for _, id := range n.orderIDs {
		if o := n.orders[id]; o.Flow == f {
			out = append(out, o)
		}
	}
	return out
}

// Order returns the order with the given id.
func (n *Network) Order(id int) (Order, bool) {
	o, ok := n.orders[id]
	return o, ok
}

// TotalDemand returns the summed quantity of all orders.
func (n *Network) TotalDemand() float64 {
	var total float64
	for _, o := range n.orders {
		total += o.Quantity
	}
	return total
}

// Infeasible returns the pairs ruled out by the orders' time windows.
func (n *Network) Infeasible() InfeasibleSet { return n.infeasible }

// IsInfeasible reports whether pair p is ruled out.
func (n *Network) IsInfeasible(p InfeasiblePair) bool {
	return n.infeasible.Contains(p)
}
