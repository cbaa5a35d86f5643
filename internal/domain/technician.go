package domain

// Technician models a support engineer who can take tickets.
type Technician struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Skills          []string `json:"skills"`
	Specializations []string `json:"specializations"`
	CurrentWorkload int      `json:"current_workload"`
	MaxWorkload     int      `json:"max_workload"`
	Active          bool     `json:"active"`
}
