package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrendingPage = `<!DOCTYPE html>
<html>
<body>
<main>
  <article class="Box-row">
    <h2 class="h3 lh-condensed">
      <a href="/acme/widget?ref=trending">acme / widget</a>
    </h2>
  </article>
  <article class="Box-row">
    <h2 class="h3 lh-condensed">
      <a href="/zeta/toolkit">zeta / toolkit</a>
    </h2>
  </article>
  <article class="Box-row">
    <h2 class="h3 lh-condensed">
      <a href="/acme/widget">acme / widget</a>
    </h2>
  </article>
  <article class="other-row">
    <h2><a href="/not/trending">ignored</a></h2>
  </article>
</body>
</html>`

func TestParseTrendingHTML(t *testing.T) {
	names := ParseTrendingHTML(sampleTrendingPage)

	assert.Equal(t, []string{"acme/widget", "zeta/toolkit"}, names,
		"应去重并忽略非 Box-row 的区块")
}

func TestParseTrendingHTML_Garbage(t *testing.T) {
	assert.Empty(t, ParseTrendingHTML("<div>nothing here</div>"))
	assert.Empty(t, ParseTrendingHTML(""))
}

func TestNormalizeFullName(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{"标准链接", "/acme/widget", "acme/widget"},
		{"带查询参数", "/acme/widget?ref=trending", "acme/widget"},
		{"多余路径段只取前两段", "/acme/widget/tree/main", "acme/widget"},
		{"空串", "", ""},
		{"只有 owner", "/acme", ""},
		{"空段", "//widget", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeFullName(tt.href))
		})
	}
}

func TestTrendingDiscover(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		fmt.Fprint(w, sampleTrendingPage)
	}))
	defer srv.Close()

	source := NewTrendingSource([]string{"daily", "weekly"}, []string{"", "go"}, 0)
	source.baseURL = srv.URL

	names, err := source.Discover(context.Background())
	require.NoError(t, err)

	assert.Len(t, requests, 4, "2 个时间窗 × 2 个语言视图")
	assert.Equal(t, []string{"acme/widget", "zeta/toolkit"}, names, "并集去重后按名字排序")
}

func TestTrendingDiscover_Cap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleTrendingPage)
	}))
	defer srv.Close()

	source := NewTrendingSource([]string{"daily"}, []string{""}, 1)
	source.baseURL = srv.URL

	names, err := source.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/widget"}, names)
}

func TestTrendingDiscover_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	source := NewTrendingSource([]string{"daily"}, []string{""}, 0)
	source.baseURL = srv.URL

	names, err := source.Discover(context.Background())
	require.NoError(t, err, "单个组合失败不应让整个发现报错")
	assert.Empty(t, names)
}
