package entity

// EscalationLevel is a time-triggered handoff to a higher authority when
// a step stalls. Levels for one template form a strictly increasing
// threshold ladder.
type EscalationLevel struct {
	ID                 int64   `json:"id"`
	TemplateID         int64   `json:"template_id"`
	Level              int     `json:"level"`
	TimeThresholdHours float64 `json:"time_threshold_hours"`
	AssigneeID         string  `json:"assignee_id"`
	AssigneeName       string  `json:"assignee_name"`
	Role               Role    `json:"role"`
	NotifyEmail        bool    `json:"notify_email"`
	NotifyInApp        bool    `json:"notify_in_app"`
}
