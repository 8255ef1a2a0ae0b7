// internal/workers/application/abandon-application/models.go
package abandonapplication

type Input struct {
	ApplicationID  string `json:"applicationId"`
	Username       string `json:"username"`
	ActiveLocation string `json:"activeLocation"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	AbandonedAt       string `json:"abandonedAt"`
}
