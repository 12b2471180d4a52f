package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		docs     []string
		min, max int
		want     []string
	}{
		{
			name: "ShortDocumentKeptWhole",
			docs: []string{"短文本。还有。"},
			min:  1, max: 20,
			want: []string{"短文本。还有。"},
		},
		{
			name: "StrongDelimiterAfterMinimum",
			docs: []string{"A。B，C。"},
			min:  2, max: 4,
			want: []string{"A。B，", "C。"},
		},
		{
			name: "StrongDelimiterSplitsEnglish",
			docs: []string{"Hello world. Bye now."},
			min:  5, max: 15,
			want: []string{"Hello world.", " Bye now."},
		},
		{
			name: "HardSplitWithoutDelimiters",
			docs: []string{"abcdefghij"},
			min:  2, max: 4,
			want: []string{"abcd", "efgh", "ij"},
		},
		{
			name: "QuotedSentenceNotSplit",
			docs: []string{"他说“你好。再见。”然后走了。"},
			min:  1, max: 12,
			want: []string{"他说“你好。再见。”然后", "走了。"},
		},
		{
			name: "WeakDelimiterFallback",
			docs: []string{"aa,bb,ccdd"},
			min:  1, max: 7,
			want: []string{"aa,bb,", "ccdd"},
		},
		{
			name: "DelimiterBeforeMinimumIgnored",
			docs: []string{"a.bcdef.gh"},
			min:  3, max: 8,
			want: []string{"a.bcdef.", "gh"},
		},
		{
			name: "MultipleDocumentsIndependent",
			docs: []string{"abc", "defgh。ij"},
			min:  1, max: 4,
			want: []string{"abc", "defg", "h。", "ij"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.docs, tt.min, tt.max))
		})
	}
}

func TestSplit_QuoteSpansWindow(t *testing.T) {
	// The quote never closes inside the window, so no strong split happens and
	// the chunk falls back to the window end.
	doc := "“一二三。四五六。七八九。"
	got := Split([]string{doc}, 1, 6)
	require.NotEmpty(t, got)
	assert.Equal(t, "“一二三。四", got[0])
	assert.Equal(t, doc, strings.Join(got, ""))
}

func TestSplit_Properties(t *testing.T) {
	docs := []string{
		strings.Repeat("春眠不觉晓，处处闻啼鸟。夜来风雨声，花落知多少。", 7),
		strings.Repeat("The quick brown fox; jumps over the lazy dog! ", 9),
		"“引用里的句子。还是引用。”" + strings.Repeat("外面的文字。", 5),
		"",
	}

	for _, sizes := range [][2]int{{5, 20}, {1, 8}, {10, 30}, {0, 3}} {
		minSize, maxSize := sizes[0], sizes[1]
		for _, doc := range docs {
			chunks := Split([]string{doc}, minSize, maxSize)

			assert.Equal(t, doc, strings.Join(chunks, ""), "concatenation must reproduce input")

			if utf8.RuneCountInString(doc) <= maxSize {
				assert.Equal(t, []string{doc}, chunks, "short documents are never split")
				continue
			}
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), maxSize)
				assert.NotEmpty(t, c)
			}
		}
	}
}

func TestSplit_NonFinalChunksRespectMinimum(t *testing.T) {
	doc := strings.Repeat("一。", 30)
	chunks := Split([]string{doc}, 5, 12)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(c), 5)
	}
}

func TestChunks_EarlyStop(t *testing.T) {
	var got []string
	for c := range Chunks([]string{"abcdefgh", "ijkl"}, 1, 2) {
		got = append(got, c)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"ab", "cd", "ef"}, got)
}

func TestSplit_Deterministic(t *testing.T) {
	docs := []string{strings.Repeat("你好，世界。", 20)}
	assert.Equal(t, Split(docs, 3, 10), Split(docs, 3, 10))
}
