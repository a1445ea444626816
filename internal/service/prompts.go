package service

import (
	"fmt"
	"strings"

	"github.com/garg-prashant/github-intel/internal/common"
	"github.com/garg-prashant/github-intel/internal/domain"
)

// 生成参数：讲解类内容要稳定输出，温度压低
const (
	generateMaxTokens   = 2048
	generateTemperature = 0.4
	promptReadmeWindow  = 6000
)

// systemPrompt 所有变体共用的系统提示词
const systemPrompt = `You are a senior software engineer who writes clear, practical explanations of open-source projects for other developers. Write in Markdown. Be concrete and specific to the repository at hand. Never invent APIs, commands, or features that the provided context does not support. Keep the tone direct and technical, no marketing language.`

// variantInstructions 每个内容变体的写作指令
var variantInstructions = map[string]string{
	domain.ContentWhatAndWhy: `Write a "What & Why" explainer:
1. What this project is, in two sentences.
2. The concrete problem it solves and who hits that problem.
3. How it compares to the obvious alternatives (name them).
4. When you should NOT use it.
Target length: 300-500 words.`,

	domain.ContentQuickStart: `Write a "Quick Start" guide:
1. Prerequisites (runtime, tooling, accounts).
2. Installation steps with exact commands from the README.
3. A minimal working example.
4. The first thing to try after it runs.
Only use commands that appear in or follow directly from the README. Target length: 300-500 words.`,

	domain.ContentMentalModel: `Write a "Mental Model" piece:
1. The core abstraction the project is built around.
2. How data or control flows through it, step by step.
3. The key design trade-off its authors made and what it buys them.
Use one analogy at most, and only if it genuinely clarifies. Target length: 300-500 words.`,

	domain.ContentPracticalRecipe: `Write a "Practical Recipe":
1. Pick one realistic task this project is good at.
2. Walk through solving that task end to end with it.
3. Call out the two most likely mistakes and how to avoid them.
Target length: 300-500 words.`,

	domain.ContentLearningPath: `Write a "Learning Path":
1. What to learn before touching this project (prerequisites, concepts).
2. A week-by-week progression from first run to contributing.
3. Which parts of the codebase or docs to read at each step.
Target length: 300-500 words.`,
}

// buildUserPrompt 拼装某个仓库某个变体的用户提示词
func buildUserPrompt(repo *domain.Repository, contentType string) string {
	readme := common.TruncateUTF8(repo.ReadmeOrEmpty(), promptReadmeWindow)

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repo.FullName)
	fmt.Fprintf(&b, "URL: %s\n", repo.HTMLURL)
	if lang := repo.PrimaryLanguageOrEmpty(); lang != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", lang)
	}
	fmt.Fprintf(&b, "Stars: %d, Forks: %d\n", repo.StarsCount, repo.ForksCount)
	if desc := repo.DescriptionOrEmpty(); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	if len(repo.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(repo.Topics, ", "))
	}
	if readme != "" {
		fmt.Fprintf(&b, "\nREADME (may be truncated):\n%s\n", readme)
	}
	fmt.Fprintf(&b, "\n---\n\n%s\n", variantInstructions[contentType])
	return b.String()
}
