package lifecycle

import (
	"errors"
	"testing"

	"github.com/wastemaster/wastemaster/core/model"
)

func TestValidPaths(t *testing.T) {
	paths := [][]model.OccurrenceStatus{
		{model.StatusPlanned, model.StatusScheduled, model.StatusInProgress, model.StatusCompleted},
		{model.StatusPlanned, model.StatusScheduled, model.StatusInProgress, model.StatusMissed},
		{model.StatusPlanned, model.StatusScheduled, model.StatusMissed},
		{model.StatusPlanned, model.StatusScheduled, model.StatusCancelled},
		{model.StatusPlanned, model.StatusScheduled, model.StatusInProgress, model.StatusCancelled},
		{model.StatusPlanned, model.StatusCancelled},
	}
	for _, path := range paths {
		occ := model.Occurrence{ID: "occ-1", Status: path[0]}
		for _, next := range path[1:] {
			if err := Transition(&occ, next); err != nil {
				t.Fatalf("path %v: transition to %s failed: %v", path, next, err)
			}
		}
	}
}

func TestTerminalStatesReject(t *testing.T) {
	terminals := []model.OccurrenceStatus{
		model.StatusCompleted, model.StatusMissed, model.StatusCancelled,
	}
	targets := []model.OccurrenceStatus{
		model.StatusPlanned, model.StatusScheduled, model.StatusInProgress,
		model.StatusCompleted, model.StatusMissed, model.StatusCancelled,
	}
	for _, from := range terminals {
		for _, to := range targets {
			occ := model.Occurrence{ID: "occ-1", Status: from}
			err := Transition(&occ, to)
			var ite *InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("expected InvalidTransitionError for %s -> %s, got %v", from, to, err)
			}
			if occ.Status != from {
				t.Fatalf("terminal state mutated: %s -> %s", from, occ.Status)
			}
		}
	}
}

func TestSkippingStatesRejected(t *testing.T) {
	occ := model.Occurrence{ID: "occ-1", Status: model.StatusPlanned}
	if err := Transition(&occ, model.StatusInProgress); err == nil {
		t.Fatal("PLANNED -> IN_PROGRESS must be rejected")
	}
	if err := Transition(&occ, model.StatusCompleted); err == nil {
		t.Fatal("PLANNED -> COMPLETED must be rejected")
	}
}
