package combine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schwartzgroup/daymet-aggregation/combine"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    combine.Date
		wantErr bool
	}{
		{name: "valid", token: "20010131", want: 20010131},
		{name: "leading zeros", token: "00990102", want: 990102},
		{name: "too short", token: "2001013", wantErr: true},
		{name: "too long", token: "200101311", wantErr: true},
		{name: "non-digit", token: "2001013a", wantErr: true},
		{name: "separator", token: "2001-1-3", wantErr: true},
		{name: "empty", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := combine.ParseDate(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDate_Components(t *testing.T) {
	d, err := combine.ParseDate("20010203")
	require.NoError(t, err)
	require.Equal(t, 2001, d.Year())
	require.Equal(t, 2, d.Month())
	require.Equal(t, 3, d.Day())
	require.Equal(t, "20010203", d.String())
}

func TestDate_StringZeroPads(t *testing.T) {
	d, err := combine.ParseDate("00990102")
	require.NoError(t, err)
	require.Equal(t, "00990102", d.String())
}

func TestDate_Ordinal(t *testing.T) {
	require.Equal(t, 0, combine.Date(19700101).Ordinal())

	tests := []struct {
		name string
		a, b combine.Date
		gap  int
	}{
		{name: "consecutive days", a: 20010101, b: 20010102, gap: 1},
		{name: "month boundary", a: 20010131, b: 20010201, gap: 1},
		{name: "year boundary", a: 20001231, b: 20010101, gap: 1},
		{name: "leap day", a: 20000228, b: 20000229, gap: 1},
		{name: "century non-leap", a: 19000228, b: 19000301, gap: 1},
		{name: "two day gap", a: 20010101, b: 20010103, gap: 2},
		{name: "same day", a: 20010101, b: 20010101, gap: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.gap, tt.b.Ordinal()-tt.a.Ordinal())
		})
	}
}
