package domain

// CategorySeed 默认分类目录的一项，SearchTopic 用于话题搜索发现
type CategorySeed struct {
	Slug        string
	Name        string
	Description string
	Keywords    []string
	SearchTopic string
}

// DefaultCategories 默认目录，首次启动时播种到 categories 表
var DefaultCategories = []CategorySeed{
	{
		Slug:        "ai-ml",
		Name:        "AI & Machine Learning",
		Description: "Machine learning frameworks, training, and inference tooling",
		Keywords:    []string{"pytorch", "tensorflow", "neural", "machine learning", "deep learning", "training", "inference", "transformers"},
		SearchTopic: "AI",
	},
	{
		Slug:        "llms-agents",
		Name:        "LLMs & Agents",
		Description: "Large language models, agents, RAG, and orchestration",
		Keywords:    []string{"llm", "agent", "RAG", "retrieval", "langchain", "openai", "anthropic", "orchestration", "prompt"},
		SearchTopic: "agent",
	},
	{
		Slug:        "mcp-tooling",
		Name:        "MCP & Tooling",
		Description: "Model Context Protocol, MCP servers, and AI tooling",
		Keywords:    []string{"mcp", "model context protocol", "mcp server", "tool", "plugin"},
		SearchTopic: "MCP",
	},
	{
		Slug:        "backend",
		Name:        "Backend",
		Description: "API frameworks, services, and backend infrastructure",
		Keywords:    []string{"api", "backend", "framework", "rest", "graphql", "server", "microservice"},
		SearchTopic: "backend",
	},
	{
		Slug:        "python-libs",
		Name:        "Python Libraries",
		Description: "Popular Python libraries and utilities",
		Keywords:    []string{"python", "library", "package", "pip", "pypi"},
		SearchTopic: "python",
	},
	{
		Slug:        "web3-crypto",
		Name:        "Web3 & Crypto",
		Description: "Blockchain, smart contracts, and crypto tooling",
		Keywords:    []string{"blockchain", "ethereum", "smart contract", "web3", "crypto", "defi", "solidity"},
		SearchTopic: "crypto",
	},
	{
		Slug:        "devops-mlops",
		Name:        "DevOps & MLOps",
		Description: "CI/CD, deployment, and ML operations",
		Keywords:    []string{"devops", "mlops", "ci/cd", "deploy", "kubernetes", "docker", "pipeline", "monitoring"},
		SearchTopic: "devops",
	},
	{
		Slug:        "deepfake",
		Name:        "Deepfake & Synthetic Media",
		Description: "Tools and libraries for creating, detecting, and analyzing deepfakes and synthetic media",
		Keywords:    []string{"deepfake", "face swap", "synthetic media", "media manipulation", "deep learning", "detection", "forensics", "GAN", "voice cloning"},
		SearchTopic: "deepfake",
	},
}

// CategoryLanguageHints 分类 slug -> 偏好语言集合（语言信号的静态提示）
var CategoryLanguageHints = map[string]map[string]bool{
	"ai-ml":        {"python": true, "julia": true, "r": true},
	"llms-agents":  {"python": true, "typescript": true},
	"mcp-tooling":  {"typescript": true, "python": true, "rust": true},
	"backend":      {"python": true, "go": true, "rust": true, "java": true, "typescript": true},
	"python-libs":  {"python": true},
	"web3-crypto":  {"solidity": true, "rust": true, "typescript": true, "go": true},
	"devops-mlops": {"python": true, "go": true, "hcl": true},
}
