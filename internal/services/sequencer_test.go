package services

import (
	"testing"
	"time"

	"taskhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restockTask() *models.Task {
	return &models.Task{
		ID:        "task-101",
		Type:      models.TaskTypeRestock,
		Status:    models.TaskStatusClaimed,
		CreatedAt: time.Now(),
	}
}

func doneAssignment(taskID, userID, stepKey string) models.Assignment {
	now := time.Now()
	return models.Assignment{
		ID:          "a-" + stepKey,
		TaskID:      taskID,
		UserID:      userID,
		Status:      models.AssignmentStatusDone,
		StepKey:     stepKey,
		CompletedAt: &now,
	}
}

// No step done yet - foreman active, delivery and requester locked
func TestComputeStepsInitialState(t *testing.T) {
	steps := ComputeSteps(restockTask())
	require.Len(t, steps, 3)

	assert.Equal(t, "foreman", steps[0].Key)
	assert.True(t, steps[0].IsActive)
	assert.False(t, steps[0].IsDone)

	assert.Equal(t, "delivery", steps[1].Key)
	assert.True(t, steps[1].IsLocked)
	assert.Equal(t, "requester", steps[2].Key)
	assert.True(t, steps[2].IsLocked)
}

func TestComputeStepsAdvances(t *testing.T) {
	task := restockTask()
	task.Assignments = []models.Assignment{doneAssignment(task.ID, "user-7", "foreman")}

	steps := ComputeSteps(task)
	require.Len(t, steps, 3)
	assert.True(t, steps[0].IsDone)
	assert.True(t, steps[1].IsActive)
	assert.True(t, steps[2].IsLocked)
}

// At most one active step, for every completion prefix of the workflow
func TestComputeStepsExactlyOneActive(t *testing.T) {
	keys := []string{"foreman", "delivery", "requester"}
	for done := 0; done <= len(keys); done++ {
		task := restockTask()
		for i := 0; i < done; i++ {
			task.Assignments = append(task.Assignments, doneAssignment(task.ID, "u", keys[i]))
		}

		steps := ComputeSteps(task)
		active := 0
		for _, step := range steps {
			if step.IsActive {
				active++
			}
		}
		if done == len(keys) {
			assert.Zero(t, active, "all steps done: no active step")
			assert.True(t, AllStepsDone(task))
		} else {
			assert.Equal(t, 1, active, "%d steps done", done)
		}
	}
}

func TestComputeStepsNoWorkflow(t *testing.T) {
	task := &models.Task{ID: "task-1", Type: models.TaskTypeSale}
	assert.Nil(t, ComputeSteps(task))
	assert.False(t, AllStepsDone(task), "a task without a workflow never reports all steps done")
}

func TestComputeStepsCustomWorkflowFromMetadata(t *testing.T) {
	task := &models.Task{
		ID:   "task-2",
		Type: models.TaskTypeCustom,
		Metadata: map[string]interface{}{
			"workflow": []interface{}{
				map[string]interface{}{"key": "measure", "role": "storekeeper", "title": "Measure site"},
				map[string]interface{}{"key": "cut", "role": "storekeeper", "action": "Cut to size"},
				map[string]interface{}{"role": "delivery"}, // missing key, skipped
			},
		},
	}

	steps := ComputeSteps(task)
	require.Len(t, steps, 2)
	assert.Equal(t, "measure", steps[0].Key)
	assert.True(t, steps[0].IsActive)
	assert.Equal(t, "cut", steps[1].Key)
	assert.True(t, steps[1].IsLocked)
}

// Same-role steps keep declaration order regardless of completion arrival
func TestComputeStepsSameRoleDeclarationOrder(t *testing.T) {
	task := &models.Task{
		ID:   "task-3",
		Type: models.TaskTypeCustom,
		Metadata: map[string]interface{}{
			"workflow": []interface{}{
				map[string]interface{}{"key": "first", "role": "storekeeper"},
				map[string]interface{}{"key": "second", "role": "storekeeper"},
			},
		},
	}
	// "second" recorded done while "first" is not: "first" is still the
	// active step, by declaration order.
	task.Assignments = []models.Assignment{doneAssignment(task.ID, "u", "second")}

	steps := ComputeSteps(task)
	require.Len(t, steps, 2)
	assert.True(t, steps[0].IsActive)
	assert.True(t, steps[1].IsDone)
}

func TestActiveStepNilWhenAllDone(t *testing.T) {
	task := restockTask()
	for _, key := range []string{"foreman", "delivery", "requester"} {
		task.Assignments = append(task.Assignments, doneAssignment(task.ID, "u", key))
	}
	assert.Nil(t, ActiveStep(task))
}
