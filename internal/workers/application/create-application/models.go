// internal/workers/application/create-application/models.go
package createapplication

type Input struct {
	SubjectID      string                 `json:"subjectId"`
	Username       string                 `json:"username"`
	ActiveLocation string                 `json:"activeLocation"`
	Data           map[string]interface{} `json:"data"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	SchemaVersionID   string `json:"schemaVersionId"`
	CreatedAt         string `json:"createdAt"`
}
