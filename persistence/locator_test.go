package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		input  string
		want   Locator
		errIs  error
		String string
	}{
		{input: "", want: Locator{Scheme: SchemeNone}, String: ""},
		{input: "memory:", want: Locator{Scheme: SchemeMemory}, String: "memory:"},
		{input: "leveldb:data/telemetry", want: Locator{Scheme: SchemeLevelDB, Path: "data/telemetry"}, String: "leveldb:data/telemetry"},
		{input: "badger:/var/lib/kad", want: Locator{Scheme: SchemeBadger, Path: "/var/lib/kad"}, String: "badger:/var/lib/kad"},
		{input: "data/telemetry", want: Locator{Scheme: SchemeLevelDB, Path: "data/telemetry"}, String: "leveldb:data/telemetry"},
		{input: "C:/telemetry", want: Locator{Scheme: SchemeLevelDB, Path: "C:/telemetry"}, String: "leveldb:C:/telemetry"},
		{input: "./a:b", want: Locator{Scheme: SchemeLevelDB, Path: "./a:b"}, String: "leveldb:./a:b"},
		{input: "leveldb:", errIs: ErrEmptyStorePath},
		{input: "badger:", errIs: ErrEmptyStorePath},
		{input: "redis:localhost", errIs: ErrUnknownScheme},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLocator(tt.input)
			if tt.errIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.errIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.String, got.String())
		})
	}
}
