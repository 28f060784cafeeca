package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "bare object", raw: `{"id":"1","leaf":"true"}`, want: 1},
		{name: "list", raw: `[{"id":"1","leaf":"true"},{"id":"2","leaf":"false"}]`, want: 2},
		{name: "empty list", raw: `[]`, want: 0},
		{name: "whitespace around object", raw: "  \n{\"id\":\"1\",\"leaf\":\"true\"}\n", want: 1},
		{name: "string", raw: `"nope"`, wantErr: true},
		{name: "list of scalars", raw: `[1,2]`, wantErr: true},
		{name: "empty body", raw: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecords(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestDecodeRecordsObjectAndListAgree(t *testing.T) {
	obj, err := DecodeRecords(json.RawMessage(`{"id":"7","text":"Total","leaf":"true","y2020":"1"}`))
	require.NoError(t, err)
	list, err := DecodeRecords(json.RawMessage(`[{"id":"7","text":"Total","leaf":"true","y2020":"1"}]`))
	require.NoError(t, err)

	a, err := ParseRecord(obj[0])
	require.NoError(t, err)
	b, err := ParseRecord(list[0])
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantID    string
		wantLeaf  bool
		wantDates map[string]string
		wantErr   bool
	}{
		{
			name:      "string leaf false",
			raw:       `{"id":"10","text":"Region","leaf":"false","y2020":"100","y2021":"","ylabel":"x"}`,
			wantID:    "10",
			wantLeaf:  false,
			wantDates: map[string]string{"y2020": "100", "y2021": ""},
		},
		{
			name:     "string leaf true",
			raw:      `{"id":"11","leaf":"true"}`,
			wantID:   "11",
			wantLeaf: true,
		},
		{
			name:     "bool leaf",
			raw:      `{"id":"12","leaf":true}`,
			wantID:   "12",
			wantLeaf: true,
		},
		{
			name:      "numeric id and non-string date values dropped",
			raw:       `{"id":741917,"leaf":"true","y2019":5,"y2020":"5"}`,
			wantID:    "741917",
			wantLeaf:  true,
			wantDates: map[string]string{"y2020": "5"},
		},
		{name: "missing leaf", raw: `{"id":"1"}`, wantErr: true},
		{name: "unexpected leaf", raw: `{"id":"1","leaf":"maybe"}`, wantErr: true},
		{name: "missing id", raw: `{"leaf":"true"}`, wantErr: true},
		{name: "not an object", raw: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseRecord(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, rec.ID)
			assert.Equal(t, tt.wantLeaf, rec.Leaf)
			assert.Equal(t, tt.wantDates, rec.DateAttributes)
			assert.JSONEq(t, tt.raw, string(rec.Raw))
		})
	}
}

func TestIsDateKey(t *testing.T) {
	for k, want := range map[string]bool{
		"y2020":  true,
		"y1":     true,
		"y":      false,
		"ylabel": false,
		"Y2020":  false,
		"x2020":  false,
		"y20a":   false,
	} {
		assert.Equal(t, want, IsDateKey(k), k)
	}
	assert.Equal(t, "y2020", DateKey("2020"))
}

func TestDecodePeriods(t *testing.T) {
	ds, err := DecodePeriods(json.RawMessage(`{"dateList":["2020",2021],"periodNameList":["2020 value","2021 value"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"2020", "2021"}, ds.DateList)
	assert.Equal(t, []string{"2020 value", "2021 value"}, ds.PeriodNameList)
	assert.Equal(t, 2, ds.Len())

	_, err = DecodePeriods(json.RawMessage(`{"dateList":["2020"],"periodNameList":[]}`))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = DecodePeriods(json.RawMessage(`[]`))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = DecodePeriods(json.RawMessage(`{"dateList":[{}],"periodNameList":["a"]}`))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDateAttributes(t *testing.T) {
	attrs, err := DateAttributes(json.RawMessage(`{"id":"1","y2020":"3","y2021":4}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"y2020": "3"}, attrs)

	attrs, err = DateAttributes(nil)
	require.NoError(t, err)
	assert.Nil(t, attrs)
}
