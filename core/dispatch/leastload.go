package dispatch

import (
	"errors"
	"sort"

	"github.com/wastemaster/wastemaster/core/ledger"
	"github.com/wastemaster/wastemaster/core/model"
)

// LeastLoadDispatcher selects the (vehicle, operator) combination with the
// lowest total committed load for the target date among resources meeting
// the service's capacity class. Ties break by lowest resource id so a pass
// over the same inputs always produces the same assignments.
type LeastLoadDispatcher struct{}

type combo struct {
	vehicle  model.Vehicle
	operator model.Operator
	load     int
}

// Dispatch implements the Dispatcher interface.
func (LeastLoadDispatcher) Dispatch(cand Candidate, res Resources) (model.Occurrence, *Deferral, error) {
	occ, svc := cand.Occurrence, cand.Service
	if svc.Cancelled() {
		return occ, nil, &Error{ServiceID: svc.ID, Date: occ.Date, Reason: "service is cancelled"}
	}
	if svc.WindowClosed(occ.Date) {
		return occ, nil, &Error{ServiceID: svc.ID, Date: occ.Date, Reason: "service effective window closed"}
	}

	vehicles := capableVehicles(res.Vehicles, svc.Capacity)
	operators := capableOperators(res.Operators, svc.Capacity)
	if len(vehicles) == 0 || len(operators) == 0 {
		return occ, &Deferral{Candidate: cand, Reason: ReasonNoCapacity}, nil
	}

	combos := rankCombos(vehicles, operators, res.Ledger, occ)
	slot := ledger.Slot{Start: occ.WindowStart, End: occ.WindowEnd}
	load := int(svc.Capacity)

	for _, c := range combos {
		vres, err := res.Ledger.TryReserve(c.vehicle.ID, slot, load)
		if err != nil {
			if errors.Is(err, ledger.ErrSlotConflict) || errors.Is(err, ledger.ErrCapacityExceeded) {
				continue
			}
			return occ, nil, err
		}
		ores, err := res.Ledger.TryReserve(c.operator.ID, slot, load)
		if err != nil {
			// The pair reserves atomically: give the vehicle slot back.
			if rerr := res.Ledger.Release(vres.ResourceID, vres.ID); rerr != nil {
				return occ, nil, rerr
			}
			if errors.Is(err, ledger.ErrSlotConflict) || errors.Is(err, ledger.ErrCapacityExceeded) {
				continue
			}
			return occ, nil, err
		}

		occ.Status = model.StatusScheduled
		occ.VehicleID = c.vehicle.ID
		occ.OperatorID = c.operator.ID
		occ.VehicleReservation = vres.ID
		occ.OperatorReservation = ores.ID
		return occ, nil, nil
	}

	return occ, &Deferral{Candidate: cand, Reason: ReasonNoAvailableResource}, nil
}

func capableVehicles(vs []model.Vehicle, class model.CapacityClass) []model.Vehicle {
	var out []model.Vehicle
	for _, v := range vs {
		if v.Available && v.Capacity >= class {
			out = append(out, v)
		}
	}
	return out
}

func capableOperators(os []model.Operator, class model.CapacityClass) []model.Operator {
	var out []model.Operator
	for _, o := range os {
		if o.Available && o.Capacity >= class {
			out = append(out, o)
		}
	}
	return out
}

func rankCombos(vehicles []model.Vehicle, operators []model.Operator, l *ledger.Ledger, occ model.Occurrence) []combo {
	vloads := make(map[string]int, len(vehicles))
	for _, v := range vehicles {
		vloads[v.ID] = l.CommittedLoad(v.ID, occ.Date)
	}
	oloads := make(map[string]int, len(operators))
	for _, o := range operators {
		oloads[o.ID] = l.CommittedLoad(o.ID, occ.Date)
	}

	combos := make([]combo, 0, len(vehicles)*len(operators))
	for _, v := range vehicles {
		for _, o := range operators {
			combos = append(combos, combo{vehicle: v, operator: o, load: vloads[v.ID] + oloads[o.ID]})
		}
	}
	sort.Slice(combos, func(i, j int) bool {
		if combos[i].load != combos[j].load {
			return combos[i].load < combos[j].load
		}
		if combos[i].vehicle.ID != combos[j].vehicle.ID {
			return combos[i].vehicle.ID < combos[j].vehicle.ID
		}
		return combos[i].operator.ID < combos[j].operator.ID
	})
	return combos
}
