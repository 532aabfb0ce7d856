package types

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContact(t *testing.T) {
	t.Run("with address", func(t *testing.T) {
		c, err := NewContact(peer.ID("node-a"), "/ip4/127.0.0.1/tcp/4000/ws")
		require.NoError(t, err)
		require.NotNil(t, c.Addr)
		assert.Equal(t, "/ip4/127.0.0.1/tcp/4000/ws", c.Addr.String())
		assert.Equal(t, peer.ID("node-a").String(), c.Key())
		assert.Contains(t, c.String(), "@/ip4/127.0.0.1")
	})

	t.Run("without address", func(t *testing.T) {
		c, err := NewContact(peer.ID("node-a"), "")
		require.NoError(t, err)
		assert.Nil(t, c.Addr)
		assert.Equal(t, c.Key(), c.String())
	})

	t.Run("invalid address", func(t *testing.T) {
		_, err := NewContact(peer.ID("node-a"), "not-a-multiaddr")
		require.Error(t, err)
	})
}

func TestContact_Equal(t *testing.T) {
	a, err := NewContact(peer.ID("a"), "/ip4/127.0.0.1/tcp/1")
	require.NoError(t, err)
	a2, err := NewContact(peer.ID("a"), "/ip4/127.0.0.1/tcp/1")
	require.NoError(t, err)
	b, err := NewContact(peer.ID("a"), "/ip4/127.0.0.1/tcp/2")
	require.NoError(t, err)

	assert.True(t, a.Equal(a2))
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(Contact{ID: "a"}))
	assert.True(t, Contact{ID: "a"}.Equal(Contact{ID: "a"}))
	assert.False(t, Contact{ID: "a"}.Equal(Contact{ID: "b"}))
}

func TestContact_IsEmpty(t *testing.T) {
	assert.True(t, Contact{}.IsEmpty())
	assert.Equal(t, "", Contact{}.Key())
	assert.False(t, Contact{ID: "x"}.IsEmpty())
}

func TestNewSample(t *testing.T) {
	now := time.Now()
	c := Contact{ID: peer.ID("node-b")}
	s := NewSample("latency", now, 12.5, c)

	assert.Equal(t, "latency", s.Metric)
	assert.Equal(t, now, s.Timestamp)
	assert.Equal(t, 12.5, s.Value)
	assert.Equal(t, c.Key(), s.ContactID)
}

func TestValidateSample(t *testing.T) {
	now := time.Now()
	valid := Sample{Metric: "latency", Timestamp: now, Value: 1}

	tests := []struct {
		name    string
		mutate  func(s *Sample)
		wantErr error
	}{
		{"valid", func(s *Sample) {}, nil},
		{"empty name", func(s *Sample) { s.Metric = "" }, ErrEmptyMetricName},
		{"long name", func(s *Sample) { s.Metric = strings.Repeat("m", MaxMetricNameSize+1) }, ErrMetricNameTooLong},
		{"nul in name", func(s *Sample) { s.Metric = "lat\x00ency" }, ErrInvalidMetricName},
		{"zero timestamp", func(s *Sample) { s.Timestamp = time.Time{} }, ErrZeroTimestamp},
		{"nan", func(s *Sample) { s.Value = math.NaN() }, ErrInvalidValue},
		{"inf", func(s *Sample) { s.Value = math.Inf(1) }, ErrInvalidValue},
		{"long contact", func(s *Sample) { s.ContactID = strings.Repeat("c", MaxContactIDSize+1) }, ErrContactIDTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := ValidateSample(s)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
