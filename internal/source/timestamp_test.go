package source_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/smileynet/envdash/internal/source"
	"github.com/stretchr/testify/require"
)

func TestTime_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "millis with bare offset", input: `"2024-05-01T12:00:00.000+0000"`, want: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{name: "millis with negative offset", input: `"2024-05-01T05:00:00.500-0700"`, want: time.Date(2024, 5, 1, 12, 0, 0, 500000000, time.UTC)},
		{name: "seconds with bare offset", input: `"2024-05-01T14:00:00+0200"`, want: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{name: "rfc3339", input: `"2024-05-01T12:00:00Z"`, want: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{name: "rfc3339 with colon offset", input: `"2024-05-01T13:00:00+01:00"`, want: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{name: "no offset reads as utc", input: `"2024-05-01T12:00:00.123"`, want: time.Date(2024, 5, 1, 12, 0, 0, 123000000, time.UTC)},
		{name: "null", input: `null`},
		{name: "empty string", input: `""`},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
		{name: "number", input: `1714564800`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got source.Time
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, got.Equal(tt.want), "got %v, want %v", got.Time, tt.want)
		})
	}
}

func TestTime_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		At   source.Time  `json:"at"`
		Zero source.Time  `json:"zero"`
		Nil  *source.Time `json:"nil"`
	}{At: source.Time{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}})
	require.NoError(t, err)
	require.JSONEq(t, `{"at":"2024-05-01T12:00:00Z","zero":null,"nil":null}`, string(out))
}
