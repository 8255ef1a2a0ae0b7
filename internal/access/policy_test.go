package access

import (
	"testing"
	"time"

	"casework-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanView(t *testing.T) {
	now := time.Now().UTC()
	officer := "officer-3"

	draft := &models.Application{ID: "app-1", Owner: "alice", OriginLocation: "north-office"}
	submitted := &models.Application{ID: "app-2", Owner: "alice", OriginLocation: "north-office", SubmittedAt: &now}

	tests := []struct {
		name    string
		user    models.User
		app     *models.Application
		current *models.AssignmentPeriod
		want    bool
	}{
		{
			name: "owner sees own draft",
			user: models.User{Username: "alice", ActiveLocation: "east-office"},
			app:  draft,
			want: true,
		},
		{
			name: "non-owner never sees a draft",
			user: models.User{Username: "bob", ActiveLocation: "north-office"},
			app:  draft,
			want: false,
		},
		{
			name:    "assigned officer sees submitted application",
			user:    models.User{Username: "officer-3", ActiveLocation: "east-office"},
			app:     submitted,
			current: &models.AssignmentPeriod{Location: "south-office", Officer: &officer},
			want:    true,
		},
		{
			name:    "colleague at assigned location sees submitted application",
			user:    models.User{Username: "bob", ActiveLocation: "south-office"},
			app:     submitted,
			current: &models.AssignmentPeriod{Location: "south-office", Officer: &officer},
			want:    true,
		},
		{
			name:    "outsider at another location is denied",
			user:    models.User{Username: "bob", ActiveLocation: "east-office"},
			app:     submitted,
			current: &models.AssignmentPeriod{Location: "south-office", Officer: &officer},
			want:    false,
		},
		{
			name: "no assignment yet falls back to origin location",
			user: models.User{Username: "bob", ActiveLocation: "north-office"},
			app:  submitted,
			want: true,
		},
		{
			name: "no assignment and wrong location is denied",
			user: models.User{Username: "bob", ActiveLocation: "south-office"},
			app:  submitted,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanView(tt.user, tt.app, tt.current))
		})
	}
}
