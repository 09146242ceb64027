package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVTT(t *testing.T) {
	data := `WEBVTT
Kind: captions
Language: en

NOTE this is a comment

STYLE
::cue { color: white }

1
00:00:01.000 --> 00:00:03.000 align:start position:0%
Hello <c>world</c>

2
00:00:03.000 --> 00:00:05.000
<00:00:03.500>Tom &amp; Jerry
`
	text, err := Decode(FormatVTT, []byte(data), false)
	require.NoError(t, err)
	assert.Equal(t, "Hello world Tom & Jerry", text)
}

func TestDecodeOrdersByCueIndex(t *testing.T) {
	data := "3\n00:00:01,000 --> 00:00:02,000\nthird\n\n" +
		"1\n00:00:05,000 --> 00:00:06,000\nfirst\n\n" +
		"2\n00:00:03,000 --> 00:00:04,000\nsecond\n"

	text, err := Decode(FormatSRT, []byte(data), false)
	require.NoError(t, err)
	assert.Equal(t, "first second third", text)
}

func TestDecodeOrdersByStartWithoutIndices(t *testing.T) {
	data := "WEBVTT\n\n00:01:00.000 --> 00:01:02.000\nlater\n\n" +
		"00:00:10.000 --> 00:00:12.000\nearlier\n"

	text, err := Decode(FormatVTT, []byte(data), false)
	require.NoError(t, err)
	assert.Equal(t, "earlier later", text)
}

func TestDecodeCollapsesRollingDuplicates(t *testing.T) {
	data := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nwe are\n\n" +
		"00:00:02.000 --> 00:00:03.000\nwe are\ngoing home\n\n" +
		"00:00:03.000 --> 00:00:04.000\ngoing home\n"

	text, err := Decode(FormatVTT, []byte(data), true)
	require.NoError(t, err)
	assert.Equal(t, "we are going home", text)
}

func TestDecodeKeepsRepeatedLinesInAuthoredTracks(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:02,000\nNo.\n\n" +
		"2\n00:00:02,000 --> 00:00:03,000\nNo.\n\n" +
		"3\n00:00:03,000 --> 00:00:04,000\nStop it.\n"
	vtt := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nNo.\n\n" +
		"00:00:02.000 --> 00:00:03.000\nNo.\n\n" +
		"00:00:03.000 --> 00:00:04.000\nStop it.\n"

	tests := []struct {
		name   string
		format string
		data   string
	}{
		{"srt", FormatSRT, srt},
		{"vtt", FormatVTT, vtt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Decode(tt.format, []byte(tt.data), false)
			require.NoError(t, err)
			assert.Equal(t, "No. No. Stop it.", text)
		})
	}
}

func TestDecodeJSON3(t *testing.T) {
	data := `{"events":[
		{"tStartMs":4000,"segs":[{"utf8":"second"}]},
		{"tStartMs":0,"dDurationMs":100},
		{"tStartMs":1000,"segs":[{"utf8":"first"},{"utf8":" part"}]},
		{"tStartMs":2000,"segs":[{"utf8":"\n"}]}
	]}`

	text, err := Decode(FormatJSON3, []byte(data), false)
	require.NoError(t, err)
	assert.Equal(t, "first part second", text)
}

func TestDecodeJSON3Invalid(t *testing.T) {
	_, err := Decode(FormatJSON3, []byte("{not json"), false)
	assert.Error(t, err)
}

func TestDecodeSRV3(t *testing.T) {
	data := `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body>
<p t="2000" d="1000">beta</p>
<p t="1000" d="1000"><s>alpha</s> <s t="200">one</s></p>
</body></timedtext>`

	text, err := Decode(FormatSRV3, []byte(data), false)
	require.NoError(t, err)
	assert.Equal(t, "alpha one beta", text)
}

func TestDecodeSRV1(t *testing.T) {
	data := `<transcript><text start="0.5" dur="1">it&amp;#39;s fine</text></transcript>`

	text, err := Decode(FormatSRV1, []byte(data), false)
	require.NoError(t, err)
	assert.Equal(t, "it's fine", text)
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode("ass", []byte("whatever"), false)
	assert.Error(t, err)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{"WEBVTT\n\n", FormatVTT},
		{`{"events":[]}`, FormatJSON3},
		{"<timedtext/>", FormatSRV3},
		{"1\n00:00:01,000 --> 00:00:02,000\nhi", FormatSRT},
		{"plain words", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sniff([]byte(tt.data)), tt.data)
	}
}

func TestParseCueTimestamp(t *testing.T) {
	assert.Equal(t, int64(3723500), parseCueTimestamp("01:02:03.500").Milliseconds())
	assert.Equal(t, int64(63500), parseCueTimestamp("01:03,500").Milliseconds())
	assert.Equal(t, int64(0), parseCueTimestamp("garbage").Milliseconds())
}
