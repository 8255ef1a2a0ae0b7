// internal/workers/events/allocation-changed/models.go
package allocationchanged

type Output struct {
	Reconciled bool `json:"reconciled"`
}
