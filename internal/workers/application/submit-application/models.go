// internal/workers/application/submit-application/models.go
package submitapplication

type Input struct {
	ApplicationID  string `json:"applicationId"`
	Username       string `json:"username"`
	ActiveLocation string `json:"activeLocation"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	SubmittedAt       string `json:"submittedAt"`
}
