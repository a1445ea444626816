package discovery

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	trendingBaseURL   = "https://github.com/trending"
	trendingUserAgent = "github-intel-ingestion/1.0"
	trendingTimeout   = 25 * time.Second
)

// TrendingSource 实现了 port.DiscoverySource 接口
// 抓取 github.com/trending 的 HTML（时间窗 × 语言 的固定组合矩阵），
// 从标记里解析 owner/repo。页面结构变了就静默得到零结果，不报错
type TrendingSource struct {
	baseURL   string
	client    *http.Client
	since     []string
	languages []string
	totalCap  int
}

// NewTrendingSource 创建 Trending 页抓取发现源
func NewTrendingSource(since, languages []string, totalCap int) *TrendingSource {
	return &TrendingSource{
		baseURL:   trendingBaseURL,
		client:    &http.Client{Timeout: trendingTimeout},
		since:     since,
		languages: languages,
		totalCap:  totalCap,
	}
}

func (s *TrendingSource) Name() string { return "trending_scrape" }

// Discover 遍历全部组合取并集，单个组合抓取/解析失败跳过不中断
func (s *TrendingSource) Discover(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var ordered []string
	for _, since := range s.since {
		for _, lang := range s.languages {
			names, err := s.fetchOne(ctx, since, lang)
			if err != nil {
				display := lang
				if display == "" {
					display = "(all)"
				}
				log.Printf("⚠️ Trending 抓取失败 since=%s language=%s: %v", since, display, err)
				continue
			}
			for _, n := range names {
				if !seen[n] {
					seen[n] = true
					ordered = append(ordered, n)
				}
			}
		}
	}
	// 并集按名字排序，保证跨运行稳定
	sort.Strings(ordered)
	if s.totalCap > 0 && len(ordered) > s.totalCap {
		ordered = ordered[:s.totalCap]
	}
	return ordered, nil
}

func (s *TrendingSource) fetchOne(ctx context.Context, since, language string) ([]string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("since", since)
	if language != "" {
		q.Set("language", language)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", trendingUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trending 页返回状态 %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return ParseTrendingHTML(string(body)), nil
}

// ParseTrendingHTML 从 trending 页标记里解出 owner/repo 列表
// 结构约定：<article class="Box-row"> 里第一个 <h2> 下的 <a href="/owner/repo">
func ParseTrendingHTML(raw string) []string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "article" && hasClass(n, "Box-row") {
			if name := repoNameFromArticle(n); name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return names
}

func repoNameFromArticle(article *html.Node) string {
	h2 := findElement(article, "h2")
	if h2 == nil {
		return ""
	}
	a := findElement(h2, "a")
	if a == nil {
		return ""
	}
	return normalizeFullName(attr(a, "href"))
}

// normalizeFullName "/owner/repo?foo=1" -> "owner/repo"，解析不出来返回空串
func normalizeFullName(href string) string {
	href = strings.TrimPrefix(strings.TrimSpace(href), "/")
	if href == "" {
		return ""
	}
	href = strings.SplitN(href, "?", 2)[0]
	parts := strings.Split(href, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "/" + parts[1]
}

func findElement(n *html.Node, tag string) *html.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == tag {
			return child
		}
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
