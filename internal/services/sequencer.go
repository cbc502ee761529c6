package services

import (
	"taskhub/internal/models"
)

// StepDef declares one workflow step: which role acts, and how the step is
// titled and labelled for the presentation layer.
type StepDef struct {
	Key         string
	Title       string
	ActionLabel string
	Role        string
}

// workflowsByType declares the ordered role sequence for each multi-step
// task type. Types absent from this table have no workflow and fall back to
// plain task status.
var workflowsByType = map[models.TaskType][]StepDef{
	models.TaskTypeRestock: {
		{Key: "foreman", Title: "Prepare order", ActionLabel: "Mark prepared", Role: "foreman"},
		{Key: "delivery", Title: "Deliver order", ActionLabel: "Mark delivered", Role: "delivery"},
		{Key: "requester", Title: "Confirm receipt", ActionLabel: "Confirm received", Role: "requester"},
	},
	models.TaskTypeWholesale: {
		{Key: "storekeeper", Title: "Pick stock", ActionLabel: "Mark picked", Role: "storekeeper"},
		{Key: "delivery", Title: "Deliver order", ActionLabel: "Mark delivered", Role: "delivery"},
	},
}

// StepDefsFor returns the declared workflow for a task. Custom tasks may
// declare their own sequence under metadata["workflow"]; the engine treats
// the rest of the metadata as opaque.
func StepDefsFor(task *models.Task) []StepDef {
	if defs, ok := workflowsByType[task.Type]; ok {
		return defs
	}
	if task.Type == models.TaskTypeCustom {
		return customStepDefs(task.Metadata)
	}
	return nil
}

// customStepDefs parses a declared workflow out of task metadata. Entries
// missing a key or role are skipped rather than failing the whole task.
func customStepDefs(metadata map[string]interface{}) []StepDef {
	raw, ok := metadata["workflow"].([]interface{})
	if !ok {
		return nil
	}
	var defs []StepDef
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		def := StepDef{
			Key:         stringField(m, "key"),
			Title:       stringField(m, "title"),
			ActionLabel: stringField(m, "action"),
			Role:        stringField(m, "role"),
		}
		if def.Key == "" || def.Role == "" {
			continue
		}
		if def.Title == "" {
			def.Title = def.Key
		}
		defs = append(defs, def)
	}
	return defs
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

// ComputeSteps derives the ordered step list for a task: done steps first by
// declaration order, then exactly one active step (the first not done), then
// locked steps. Pure derivation - nothing here is persisted, and tasks with
// no declared workflow yield nil so callers fall back to plain task status.
//
// Same-role steps keep declaration order; completion arrival order never
// reorders them.
func ComputeSteps(task *models.Task) []models.WorkflowStep {
	defs := StepDefsFor(task)
	if len(defs) == 0 {
		return nil
	}

	steps := make([]models.WorkflowStep, len(defs))
	activeSeen := false
	for i, def := range defs {
		step := models.WorkflowStep{
			Key:         def.Key,
			Title:       def.Title,
			ActionLabel: def.ActionLabel,
			Role:        def.Role,
			IsDone:      task.StepDone(def.Key),
		}
		if !step.IsDone {
			if !activeSeen {
				step.IsActive = true
				activeSeen = true
			} else {
				step.IsLocked = true
			}
		}
		steps[i] = step
	}
	return steps
}

// ActiveStep returns the currently active step for a task, or nil when the
// task has no workflow or every step is done
func ActiveStep(task *models.Task) *models.WorkflowStep {
	steps := ComputeSteps(task)
	for i := range steps {
		if steps[i].IsActive {
			return &steps[i]
		}
	}
	return nil
}

// AllStepsDone reports whether the task has a workflow and every step of it
// has a recorded completion
func AllStepsDone(task *models.Task) bool {
	steps := ComputeSteps(task)
	if len(steps) == 0 {
		return false
	}
	for i := range steps {
		if !steps[i].IsDone {
			return false
		}
	}
	return true
}
