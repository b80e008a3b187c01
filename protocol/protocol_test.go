package protocol

import (
	"fmt"
	"testing"
	"unicode/utf8"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, host := range []string{"www.microsoft.com", "example.com"} {
		g.Assert(t, "request_"+host, BuildRequest(host))
	}
}

func TestBuildRequest_ExactFramingForAnyHost(t *testing.T) {
	for i := 0; i < 50; i++ {
		host := petname.Generate(3, "-") + ".test"
		want := fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nConnection: Close\r\n\r\n", host)

		assert.Equal(t, want, string(BuildRequest(host)), "host %s", host)
	}
}

func TestBuildRequest_FreshBuffer(t *testing.T) {
	a := BuildRequest("a.example")
	b := BuildRequest("b.example")

	a[0] = 'X'
	assert.Equal(t, byte('G'), b[0])
}

func TestDecoder_ASCIIReplacesHighBytes(t *testing.T) {
	dec, err := NewDecoder(EncodingASCII)
	require.NoError(t, err)

	got := dec.Decode([]byte{'H', 'i', 0xE9, 0x80, 0xFF, '!'})
	assert.Equal(t, "Hi???!", got)
}

func TestDecoder_Latin1MapsByteToCodePoint(t *testing.T) {
	dec, err := NewDecoder(EncodingLatin1)
	require.NoError(t, err)

	got := dec.Decode([]byte{'c', 'a', 'f', 0xE9})
	assert.Equal(t, "café", got)

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	decoded := dec.Decode(all)
	assert.Equal(t, 256, utf8.RuneCountInString(decoded))
	for i, r := range []rune(decoded) {
		assert.Equal(t, rune(i), r)
	}
}

func TestDecoder_Windows1252(t *testing.T) {
	dec, err := NewDecoder(EncodingWindows1252)
	require.NoError(t, err)

	// 0x80 is the euro sign in code page 1252.
	assert.Equal(t, "€5", dec.Decode([]byte{0x80, '5'}))
}

func TestDecoder_EmptyChunk(t *testing.T) {
	for _, enc := range Encodings {
		dec, err := NewDecoder(enc)
		require.NoError(t, err)
		assert.Equal(t, "", dec.Decode(nil), string(enc))
	}
}

func TestNewDecoder_Unknown(t *testing.T) {
	_, err := NewDecoder(Encoding("ebcdic"))
	assert.Error(t, err)
}

func TestParseEncoding(t *testing.T) {
	cases := map[string]Encoding{
		"ascii":        EncodingASCII,
		" US-ASCII ":   EncodingASCII,
		"latin1":       EncodingLatin1,
		"ISO-8859-1":   EncodingLatin1,
		"windows-1252": EncodingWindows1252,
		"cp1252":       EncodingWindows1252,
	}
	for in, want := range cases {
		got, err := ParseEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEncoding("utf-7")
	assert.ErrorContains(t, err, "unknown encoding")
}
