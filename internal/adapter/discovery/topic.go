package discovery

import (
	"context"
	"log"
	"sort"

	"github.com/garg-prashant/github-intel/internal/port"
)

// TopicSearchSource 实现了 port.DiscoverySource 接口
// 逐个话题调搜索 API，按语言白名单过滤，去重时保留星数更高的记录
type TopicSearchSource struct {
	gateway  port.GitHubGateway
	topics   []string
	allowed  map[string]bool
	minStars int
	perTopic int
	totalCap int
}

// NewTopicSearchSource 创建话题搜索发现源
func NewTopicSearchSource(gateway port.GitHubGateway, topics []string, allowed map[string]bool, minStars, perTopic, totalCap int) *TopicSearchSource {
	return &TopicSearchSource{
		gateway:  gateway,
		topics:   topics,
		allowed:  allowed,
		minStars: minStars,
		perTopic: perTopic,
		totalCap: totalCap,
	}
}

func (s *TopicSearchSource) Name() string { return "topic_search" }

// Discover 单个话题失败只记日志，不影响其他话题
// 一个候选都没有时返回空列表，调用方按“无事可做”处理
func (s *TopicSearchSource) Discover(ctx context.Context) ([]string, error) {
	seen := make(map[string]int)
	for _, topic := range s.topics {
		hits, err := s.gateway.SearchByTopic(ctx, topic, s.minStars, s.perTopic)
		if err != nil {
			log.Printf("⚠️ 话题 %q 搜索失败: %v", topic, err)
			continue
		}
		for _, hit := range hits {
			if !s.allowed[hit.Language] {
				continue
			}
			if stars, ok := seen[hit.FullName]; !ok || stars < hit.Stars {
				seen[hit.FullName] = hit.Stars
			}
		}
	}
	if len(seen) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(seen))
	for fn := range seen {
		names = append(names, fn)
	}
	// 星数降序；星数相同按名字字典序，保证结果可复现
	sort.Slice(names, func(i, j int) bool {
		if seen[names[i]] != seen[names[j]] {
			return seen[names[i]] > seen[names[j]]
		}
		return names[i] < names[j]
	})
	if s.totalCap > 0 && len(names) > s.totalCap {
		names = names[:s.totalCap]
	}
	return names, nil
}
