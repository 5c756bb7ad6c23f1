package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wastemaster/wastemaster/core/model"
)

// MemStore is an in-memory Store used by tests and the simulator. WithTx is
// a critical section rather than a real transaction; the sqlite store is the
// durable implementation.
type MemStore struct {
	mu         sync.Mutex
	customers  map[string]model.Customer
	categories map[string]model.WasteCategory
	services   map[string]model.Service
	vehicles   map[string]model.Vehicle
	operators  map[string]model.Operator
	occs       map[string]model.Occurrence
	byDate     map[string]string // serviceID|date -> occurrence id
	prices     map[string][]model.PriceSchedule
	billed     map[string]struct{}
	held       map[string]string
	items      []model.BillingLineItem
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		customers:  make(map[string]model.Customer),
		categories: make(map[string]model.WasteCategory),
		services:   make(map[string]model.Service),
		vehicles:   make(map[string]model.Vehicle),
		operators:  make(map[string]model.Operator),
		occs:       make(map[string]model.Occurrence),
		byDate:     make(map[string]string),
		prices:     make(map[string][]model.PriceSchedule),
		billed:     make(map[string]struct{}),
		held:       make(map[string]string),
	}
}

func dateKey(serviceID string, date time.Time) string {
	return serviceID + "|" + model.DateOf(date).Format("2006-01-02")
}

func (m *MemStore) SaveCustomer(_ context.Context, c model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *MemStore) GetCustomer(_ context.Context, id string) (model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return model.Customer{}, fmt.Errorf("%w: customer %s", ErrNotFound, id)
	}
	return c, nil
}

func (m *MemStore) SaveCategory(_ context.Context, c model.WasteCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
	return nil
}

func (m *MemStore) GetCategory(_ context.Context, id string) (model.WasteCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return model.WasteCategory{}, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	return c, nil
}

func (m *MemStore) SaveService(_ context.Context, s model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
	return nil
}

func (m *MemStore) GetService(_ context.Context, id string) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("%w: service %s", ErrNotFound, id)
	}
	return s, nil
}

func (m *MemStore) ListActiveServices(_ context.Context) ([]model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Service
	for _, s := range m.services {
		if s.Status == model.ServiceActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpdateServiceStatus(_ context.Context, id string, status model.ServiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return fmt.Errorf("%w: service %s", ErrNotFound, id)
	}
	s.Status = status
	m.services[id] = s
	return nil
}

func (m *MemStore) SaveVehicle(_ context.Context, v model.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
	return nil
}

func (m *MemStore) ListVehicles(_ context.Context) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) SaveOperator(_ context.Context, o model.Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operators[o.ID] = o
	return nil
}

func (m *MemStore) ListOperators(_ context.Context) ([]model.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Operator, 0, len(m.operators))
	for _, o := range m.operators {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) SaveOccurrence(_ context.Context, o model.Occurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dateKey(o.ServiceID, o.Date)
	if existing, ok := m.byDate[key]; ok && existing != o.ID {
		return fmt.Errorf("%w: occurrence for %s", ErrDuplicate, key)
	}
	m.occs[o.ID] = o
	m.byDate[key] = o.ID
	return nil
}

func (m *MemStore) UpdateOccurrence(_ context.Context, o model.Occurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.occs[o.ID]; !ok {
		return fmt.Errorf("%w: occurrence %s", ErrNotFound, o.ID)
	}
	m.occs[o.ID] = o
	return nil
}

func (m *MemStore) GetOccurrence(_ context.Context, id string) (model.Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.occs[id]
	if !ok {
		return model.Occurrence{}, fmt.Errorf("%w: occurrence %s", ErrNotFound, id)
	}
	return o, nil
}

func (m *MemStore) HasOccurrence(_ context.Context, serviceID string, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byDate[dateKey(serviceID, date)]
	return ok, nil
}

func (m *MemStore) ListOccurrencesByStatus(_ context.Context, statuses ...model.OccurrenceStatus) ([]model.Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[model.OccurrenceStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	var out []model.Occurrence
	for _, o := range m.occs {
		if _, ok := want[o.Status]; ok {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListOpenOccurrencesByService(_ context.Context, serviceID string, from time.Time) ([]model.Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Occurrence
	for _, o := range m.occs {
		if o.ServiceID != serviceID || o.Status.Terminal() {
			continue
		}
		if o.Date.Before(model.DateOf(from)) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) SavePriceSchedule(_ context.Context, p model.PriceSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[p.ServiceID] = append(m.prices[p.ServiceID], p)
	return nil
}

func (m *MemStore) ListPriceSchedules(_ context.Context, serviceID string) ([]model.PriceSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PriceSchedule(nil), m.prices[serviceID]...), nil
}

func (m *MemStore) IsBilled(_ context.Context, occurrenceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.billed[occurrenceID]
	return ok, nil
}

func (m *MemStore) AppendLineItem(_ context.Context, item model.BillingLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.billed[item.OccurrenceID]; ok {
		return fmt.Errorf("%w: occurrence %s already billed", ErrDuplicate, item.OccurrenceID)
	}
	m.billed[item.OccurrenceID] = struct{}{}
	delete(m.held, item.OccurrenceID)
	m.items = append(m.items, item)
	return nil
}

func (m *MemStore) HoldOccurrence(_ context.Context, occurrenceID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[occurrenceID] = reason
	return nil
}

func (m *MemStore) ListLineItems(_ context.Context) ([]model.BillingLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BillingLineItem(nil), m.items...), nil
}

func (m *MemStore) ListHeld(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.held))
	for k, v := range m.held {
		out[k] = v
	}
	return out, nil
}

// WithTx executes fn against the store directly. MemStore offers no
// rollback; the sqlite store provides real transactional semantics.
func (m *MemStore) WithTx(_ context.Context, fn func(Store) error) error {
	return fn(m)
}
