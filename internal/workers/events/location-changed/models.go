// internal/workers/events/location-changed/models.go
package locationchanged

type Output struct {
	Reconciled bool `json:"reconciled"`
}
