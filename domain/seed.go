package domain

// SeedTasks returns the tasks the workspace board starts with.
func SeedTasks() map[ColumnID][]Task {
	return map[ColumnID][]Task{
		ColumnBacklog: {
			{ID: "t1", Name: "Design new dashboard UI", Assignee: "AK", Priority: PriorityHigh, Status: StatusNotStarted},
			{ID: "t2", Name: ProtectedTaskName, Assignee: "BL", Priority: PriorityCritical, Status: StatusNotStarted},
			{ID: "t3", Name: "Write integration tests", Assignee: "CM", Priority: PriorityMedium, Status: StatusNotStarted},
		},
		ColumnInProgress: {
			{ID: "t4", Name: "Implement OAuth 2.0 flow", Assignee: "DN", Priority: PriorityHigh, Status: StatusWorkingOnIt},
			{ID: "t5", Name: "Refactor API gateway", Assignee: "EO", Priority: PriorityMedium, Status: StatusWorkingOnIt},
		},
		ColumnReview: {
			{ID: "t6", Name: "Mobile responsiveness fixes", Assignee: "FP", Priority: PriorityHigh, Status: StatusInReview},
		},
		ColumnDone: {
			{ID: "t7", Name: "Setup CI/CD pipeline", Assignee: "GQ", Priority: PriorityLow, Status: StatusDone},
			{ID: "t8", Name: "Security audit Q4", Assignee: "HR", Priority: PriorityCritical, Status: StatusDone},
		},
	}
}

// SeedBoard builds the default board. The fixtures are static, so a failure
// here is a programming error.
func SeedBoard() Board {
	b, err := NewBoard(DefaultLayout, SeedTasks())
	if err != nil {
		panic("domain.SeedBoard: " + err.Error())
	}
	return b
}

// SeedSprints returns the sprints the planner starts with.
func SeedSprints() []Sprint {
	return []Sprint{
		{ID: "s1", Name: "Sprint 1 — Foundation", Goals: "Set up CI/CD pipeline and base architecture", Start: "2024-01-08", End: "2024-01-19", Completed: true},
		{ID: "s2", Name: "Sprint 2 — Auth & Onboarding", Goals: "Implement OAuth 2.0 and user onboarding flow", Start: "2024-01-22", End: "2024-02-02", Completed: true},
		{ID: "s3", Name: "Sprint 3 — Dashboard v1", Goals: "Ship the new board view to 10% of users", Start: "2024-02-05", End: "2024-02-16"},
		{ID: "s4", Name: "Sprint 4 — Mobile", Goals: "Mobile responsive views and PWA support", Start: "2024-02-19", End: "2024-03-01"},
	}
}

// SeedEpics returns the epics the planner starts with.
func SeedEpics() []Epic {
	return []Epic{
		{ID: "e1", Name: "Q1 Platform Redesign", Description: "Overhaul the dashboard, navigation, and core board views", Status: EpicInProgress, Priority: PriorityHigh, Owner: "AK", DueDate: "2024-03-31", Progress: 45, LinkedItems: 12},
		{ID: "e2", Name: "Mobile App Launch", Description: "Native iOS and Android apps with full feature parity to web", Status: EpicPlanning, Priority: PriorityCritical, Owner: "DN", DueDate: "2024-06-30", Progress: 10, LinkedItems: 8},
		{ID: "e3", Name: "API v3 Migration", Description: "Migrate all internal and external clients to the new REST API", Status: EpicInProgress, Priority: PriorityHigh, Owner: "EO", DueDate: "2024-04-15", Progress: 70, LinkedItems: 24},
		{ID: "e4", Name: "SOC 2 Compliance", Description: "Complete SOC 2 Type II certification for enterprise customers", Status: EpicDone, Priority: PriorityCritical, Owner: "HR", DueDate: "2024-01-31", Progress: 100, LinkedItems: 6},
		{ID: "e5", Name: "Automation Engine v2", Description: "Rebuild the workflow automation engine with new triggers and improved throughput", Status: EpicBlocked, Priority: PriorityMedium, Owner: "CM", DueDate: "2024-05-15", Progress: 30, LinkedItems: 15},
	}
}
