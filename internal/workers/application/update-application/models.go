// internal/workers/application/update-application/models.go
package updateapplication

type Input struct {
	ApplicationID  string                 `json:"applicationId"`
	Username       string                 `json:"username"`
	ActiveLocation string                 `json:"activeLocation"`
	Data           map[string]interface{} `json:"data"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
}
