package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs(t *testing.T) {
	mapping := []string{"天气很好。", "a<b & c>d", `say "hi"`}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal(mapping)
			require.NoError(t, err)
			assert.Contains(t, string(b), "天气很好。", "non-ASCII must stay literal")
			assert.Contains(t, string(b), "a<b & c>d", "HTML characters must stay literal")

			var got []string
			require.NoError(t, c.Unmarshal(b, &got))
			assert.Equal(t, mapping, got)
		})
	}
}

func TestByName(t *testing.T) {
	c, ok := ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	c, ok = ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestGoJSONAppend(t *testing.T) {
	out, err := GoJSON{}.Append([]byte(`"k":`), []float32{1, 0.5})
	require.NoError(t, err)
	assert.Equal(t, `"k":[1,0.5]`, string(out))
}
