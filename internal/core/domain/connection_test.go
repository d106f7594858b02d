package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFrameWireShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{}
		want    string
	}{
		{
			name:    "subscribe without filters",
			payload: SubscribePayload{Channels: []string{"drivers"}},
			want:    `{"channels":["drivers"]}`,
		},
		{
			name: "subscribe with filters",
			payload: SubscribePayload{
				Channels: []string{"incidents"},
				Filters:  &SubscriptionFilter{RegionIDs: []string{"NCR"}},
			},
			want: `{"channels":["incidents"],"filters":{"regionIds":["NCR"]}}`,
		},
		{
			name:    "unsubscribe",
			payload: UnsubscribePayload{Channels: []string{"bookings"}},
			want:    `{"channels":["bookings"]}`,
		},
		{
			name:    "acknowledge",
			payload: AcknowledgePayload{IncidentID: "INC-1", AcknowledgedAt: "2024-05-01T10:00:00Z"},
			want:    `{"incidentId":"INC-1","acknowledgedAt":"2024-05-01T10:00:00Z"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestSubscriptionFilter_IsZero(t *testing.T) {
	assert.True(t, SubscriptionFilter{}.IsZero())
	assert.False(t, SubscriptionFilter{Roles: []string{"dispatcher"}}.IsZero())
}
