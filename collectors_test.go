package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPage(t *testing.T) Page {
	t.Helper()
	b := newFakeBrowser()
	bctx, err := b.NewContext(context.Background())
	require.NoError(t, err)
	page, err := bctx.NewPage(context.Background())
	require.NoError(t, err)
	return page
}

func TestCollectWebVitals(t *testing.T) {
	v, err := CollectWebVitals(context.Background(), testPage(t))
	require.NoError(t, err)

	assert.Equal(t, 120.0, v.FCP)
	assert.Equal(t, 851.0, v.LCP, "最后一个 LCP 条目")
	assert.Equal(t, 0.062, v.CLS, "排除 hadRecentInput 的偏移")
	assert.Equal(t, 42.0, v.TTFB)
}

func TestComputeWebVitals_MissingEntriesAreZero(t *testing.T) {
	v := computeWebVitals(vitalsPayload{})
	assert.Equal(t, WebVitals{}, v)
}

func TestComputeWebVitals_NeverNegative(t *testing.T) {
	v := computeWebVitals(vitalsPayload{ResponseStart: -3, LCP: []float64{-1}})
	assert.Equal(t, 0.0, v.TTFB)
	assert.Equal(t, 0.0, v.LCP)
}

func TestCollectWebVitals_RejectsUnknownFields(t *testing.T) {
	page := staticPage{payload: `{"paints":[],"lcp":[],"layoutShifts":[],"responseStart":0,"inp":12}`}
	_, err := CollectWebVitals(context.Background(), page)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedReport))
}

func TestCollectWebVitals_RejectsMissingFields(t *testing.T) {
	page := staticPage{payload: `{"paints":[],"lcp":[]}`}
	_, err := CollectWebVitals(context.Background(), page)
	assert.True(t, errors.Is(err, ErrMalformedReport))
}

func TestCollectWebVitals_EvaluateErrorPropagates(t *testing.T) {
	boom := errors.New("target closed")
	_, err := CollectWebVitals(context.Background(), staticPage{err: boom})
	assert.True(t, errors.Is(err, boom))
}

func TestCollectResources(t *testing.T) {
	r, err := CollectResources(context.Background(), testPage(t))
	require.NoError(t, err)

	assert.Equal(t, 4000.0, r.JSTransferred)
	assert.Equal(t, 12000.0, r.JSUncompressed)
	assert.Equal(t, 1000.0, r.CSSTransferred)
	assert.Equal(t, 4000.0, r.CSSUncompressed)
	assert.Equal(t, 5000.0, r.OtherTransferred)
	assert.Equal(t, 5000.0, r.OtherUncompressed)
	assert.Equal(t, 4, r.ResourceCount)
	assert.Len(t, r.JSFiles, 2)
	assert.Len(t, r.CSSFiles, 1)
}

func TestSumResources_Empty(t *testing.T) {
	r := sumResources(nil)
	assert.Equal(t, 0, r.ResourceCount)
	assert.NotNil(t, r.JSFiles)
	assert.NotNil(t, r.CSSFiles)
}

func TestClassifyResource(t *testing.T) {
	tests := []struct {
		name      string
		initiator string
		url       string
		want      string
	}{
		{"script initiator", "script", "http://x/api/data", "script"},
		{"js suffix", "other", "http://x/main.js", "script"},
		{"js with query", "fetch", "http://x/main.js?v=3", "script"},
		{"upper case suffix", "other", "http://x/chunk.JS", "script"},
		{"mjs 不算脚本", "other", "http://x/chunk.mjs", "other"},
		{"stylesheet", "link", "http://x/app.css", "stylesheet"},
		{"stylesheet with query", "link", "http://x/app.css?v=2", "stylesheet"},
		{"css import 不算样式表", "css", "http://x/nested.css?v=2", "other"},
		{"link without css", "link", "http://x/font.woff2", "other"},
		{"image", "img", "http://x/logo.png", "other"},
		{"fetch json", "fetch", "http://x/boards.json", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyResource(tt.initiator, tt.url))
		})
	}
}

func TestCollectScriptEvaluation(t *testing.T) {
	se, err := CollectScriptEvaluation(context.Background(), testPage(t))
	require.NoError(t, err)

	assert.Equal(t, 50.0, se.TotalScriptEvalTime)
	assert.Equal(t, 2, se.ScriptCount)
	assert.Equal(t, 25.0, se.AverageScriptEvalTime)
}

func TestComputeScriptEvaluation_NoScripts(t *testing.T) {
	se := computeScriptEvaluation(measuresPayload{Measures: []measureEntry{{Name: "script", Duration: 9}}})
	assert.Equal(t, 9.0, se.TotalScriptEvalTime)
	assert.Equal(t, 0.0, se.AverageScriptEvalTime)
}

func TestCollectParseCompile(t *testing.T) {
	pc, err := CollectParseCompile(context.Background(), testPage(t))
	require.NoError(t, err)

	assert.Equal(t, 10.0, pc.JSParseTime)
	assert.Equal(t, 6.0, pc.StyleRecalcTime)
	assert.Equal(t, 16.0, pc.Total)
}

func TestComputeParseCompile_Buckets(t *testing.T) {
	pc := computeParseCompile([]measureEntry{
		{Name: "v8.parseScript", Duration: 1},
		{Name: "CompileScript", Duration: 2},
		{Name: "EvaluateScript", Duration: 3},
		{Name: "execute-handlers", Duration: 4},
		{Name: "ParseCSS", Duration: 5},
		{Name: "RecalculateStyles", Duration: 6},
		{Name: "Layout", Duration: 100},
	})

	assert.Equal(t, 1.0, pc.JSParseTime)
	assert.Equal(t, 2.0, pc.JSCompileTime)
	assert.Equal(t, 7.0, pc.JSExecutionTime)
	assert.Equal(t, 5.0, pc.CSSParseTime)
	assert.Equal(t, 6.0, pc.StyleRecalcTime)
	assert.Equal(t, 21.0, pc.Total, "未匹配的条目不计入")
}
