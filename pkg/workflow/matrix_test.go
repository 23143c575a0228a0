package workflow_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/workflow"
)

func TestExpandMatrix(t *testing.T) {
	strategy := &model.Strategy{
		Matrix: map[string][]string{
			"os":      {"ubuntu", "macos", "windows"},
			"version": {"3.9", "3.10", "3.11"},
		},
		CacheKeyPrefix: "env-{{ .os }}-py{{ .version }}",
	}

	cells := gt.R1(workflow.ExpandMatrix(strategy)).NoError(t)

	// exactly one cell per (os, version) pair
	gt.V(t, len(cells)).Equal(9)

	seen := make(map[string]bool)
	for _, cell := range cells {
		key := cell.Values["os"] + "/" + cell.Values["version"]
		if seen[key] {
			t.Errorf("duplicate cell for %s", key)
		}
		seen[key] = true
	}

	gt.V(t, cells[0].Values).Equal(map[string]string{"os": "ubuntu", "version": "3.9"})
	gt.V(t, cells[0].CacheKey).Equal("env-ubuntu-py3.9")
	gt.V(t, cells[0].Suffix()).Equal("(ubuntu, 3.9)")
}

func TestExpandMatrixDeterministic(t *testing.T) {
	strategy := &model.Strategy{
		Matrix: map[string][]string{
			"version": {"3.10", "3.11"},
			"os":      {"ubuntu", "macos"},
		},
	}

	first := gt.R1(workflow.ExpandMatrix(strategy)).NoError(t)
	for i := 0; i < 10; i++ {
		again := gt.R1(workflow.ExpandMatrix(strategy)).NoError(t)
		gt.V(t, again).Equal(first)
	}

	// axes iterate alphabetically: os is the outer axis
	gt.V(t, first[0].Values).Equal(map[string]string{"os": "ubuntu", "version": "3.10"})
	gt.V(t, first[1].Values).Equal(map[string]string{"os": "ubuntu", "version": "3.11"})
}

func TestExpandMatrixPlainJob(t *testing.T) {
	cells := gt.R1(workflow.ExpandMatrix(nil)).NoError(t)
	gt.V(t, len(cells)).Equal(1)
	gt.V(t, len(cells[0].Values)).Equal(0)
}

func TestExpandMatrixEmptyAxis(t *testing.T) {
	strategy := &model.Strategy{
		Matrix: map[string][]string{"os": {}},
	}
	_, err := workflow.ExpandMatrix(strategy)
	gt.Error(t, err)
}
