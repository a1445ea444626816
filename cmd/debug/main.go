package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/garg-prashant/github-intel/internal/adapter/discovery"
	"github.com/garg-prashant/github-intel/internal/adapter/github"
	"github.com/garg-prashant/github-intel/internal/config"
	"github.com/garg-prashant/github-intel/internal/service"
)

func main() {
	settings := config.Load()
	ctx := context.Background()

	// 初始化组件
	gateway := github.NewClient(settings.GithubToken, settings.MaxConcurrentRequests)
	trending := discovery.NewTrendingSource([]string{"daily"}, []string{""}, 10)

	fmt.Println("🔍 调试模式：发现并打分候选仓库")

	// 1. 抓取 Trending 页
	fmt.Println("📥 正在抓取 GitHub Trending...")
	fullNames, err := trending.Discover(ctx)
	if err != nil {
		log.Printf("❌ 抓取 trending 失败: %v", err)
		return
	}
	fmt.Printf("✅ 成功发现 %d 个候选仓库\n", len(fullNames))

	if len(fullNames) == 0 {
		fmt.Println("❌ 没有发现任何候选")
		return
	}

	// 2. 拉取前几个仓库的档案（不落库）
	limit := 3
	if len(fullNames) < limit {
		limit = len(fullNames)
	}
	fmt.Printf("📊 拉取前 %d 个仓库的档案:\n", limit)

	now := time.Now().UTC()
	for i := 0; i < limit; i++ {
		owner, name, ok := splitCandidate(fullNames[i])
		if !ok {
			continue
		}

		fmt.Printf("  档案 #%d: %s\n", i+1, fullNames[i])
		repo, err := gateway.GetProfile(ctx, owner, name)
		if err != nil {
			log.Printf("    ⚠️ 拉取失败: %v", err)
			continue
		}

		_, hasReadme, err := gateway.GetReadme(ctx, owner, name)
		if err != nil {
			log.Printf("    ⚠️ README 拉取失败: %v", err)
		}
		repo.HasReadme = hasReadme

		fmt.Printf("    Stars: %d, Forks: %d\n", repo.StarsCount, repo.ForksCount)
		fmt.Printf("    主语言: %s\n", repo.PrimaryLanguageOrEmpty())
		fmt.Printf("    质量达标: %v\n", service.PassesQuality(repo, now))
		fmt.Println()
	}
}

func splitCandidate(fullName string) (string, string, bool) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:], true
		}
	}
	return "", "", false
}
