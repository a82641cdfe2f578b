package task

// Ready returns the pending tasks that can be dispatched now: those with no
// prerequisite, or whose prerequisite exists and is completed. Original list
// order is preserved.
func Ready(tasks []Task) []Task {
	byID := indexByID(tasks)
	var out []Task
	for _, t := range tasks {
		if t.Status != StatusPending {
			continue
		}
		if isReady(t, byID) {
			out = append(out, t)
		}
	}
	return out
}

// Blocked returns the pending tasks that are not ready. A task whose
// prerequisite id does not exist in the list is blocked forever: the store
// tolerates dangling references, and the resolver is where they surface.
func Blocked(tasks []Task) []Task {
	byID := indexByID(tasks)
	var out []Task
	for _, t := range tasks {
		if t.Status != StatusPending {
			continue
		}
		if !isReady(t, byID) {
			out = append(out, t)
		}
	}
	return out
}

func isReady(t Task, byID map[string]Task) bool {
	if t.After == "" {
		return true
	}
	dep, ok := byID[t.After]
	return ok && dep.Status == StatusCompleted
}

func indexByID(tasks []Task) map[string]Task {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return byID
}
