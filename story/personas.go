package story

import "fmt"

// RoleGoalBackstory frames a persona for task-oriented prompting.
type RoleGoalBackstory struct {
	Role      string
	Goal      string
	Backstory string
}

// Prompt renders the persona as a system instruction.
func (p RoleGoalBackstory) Prompt() string {
	return fmt.Sprintf("You are a %s.\nYour goal: %s.\nBackstory: %s.", p.Role, p.Goal, p.Backstory)
}

// Persona frames a named voice with an objective.
type Persona struct {
	Name      string
	Role      string
	Voice     string
	Objective string
}

// Prompt renders the persona as a system instruction.
func (p Persona) Prompt() string {
	return fmt.Sprintf("You are %s, a %s.\nYour voice: %s.\nYour objective: %s.",
		p.Name, p.Role, p.Voice, p.Objective)
}

var writerPersona = RoleGoalBackstory{
	Role:      "Creative Storyteller",
	Goal:      "Write engaging and imaginative stories",
	Backstory: "Has a PhD in French literature; used to work in a circus",
}

var reviewerPersona = Persona{
	Name:      "Media Book Review",
	Role:      "New York Times Book Reviewer",
	Voice:     "Professional and insightful",
	Objective: "Help guide readers toward good stories",
}
