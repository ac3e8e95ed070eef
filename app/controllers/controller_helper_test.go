package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "2025-03-14T08:26:53Z", formatTimePtr(&ts))
}

func TestParseUintParam(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		raw     string
		want    uint
		wantErr bool
	}{
		{name: "plain id", raw: "42", want: 42},
		{name: "zero is invalid", raw: "0", wantErr: true},
		{name: "negative", raw: "-1", wantErr: true},
		{name: "not a number", raw: "abc", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseUintValue(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
