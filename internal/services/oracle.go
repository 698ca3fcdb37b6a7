package services

// 打分 Oracle 的两种实现：OpenAI 兼容的 Chat Completions 接口，以及离线的词法打分。

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
)

const (
	oracleSystemPrompt = "You are an assistant that judges whether two item descriptions refer to the same object. " +
		"Reply with a single number from 0 to 100 (integer or decimal) giving the likelihood that they are the same item. " +
		"Return only the number."
	maxOracleResponse = 1 << 20
)

// ChatOracle 通过 Chat Completions 接口打分，每个候选一次独立请求。
type ChatOracle struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

func NewChatOracle(cfg config.OracleConfig) *ChatOracle {
	mt := cfg.MaxTokens
	if mt <= 0 {
		mt = 10
	}
	// 超时由调用方 context 控制
	return &ChatOracle{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, model: cfg.Model, maxTokens: mt, client: &http.Client{}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *ChatOracle) Compare(ctx context.Context, lostText, foundText string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: oracleSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Lost item description:\n%s\n\nFound item description:\n%s\n\nHow similar are they? Return a number from 0 to 100.", lostText, foundText)},
		},
		MaxTokens:   o.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxOracleResponse))
		return "", fmt.Errorf("oracle status %d", resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOracleResponse)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// LexicalOracle 不依赖外部服务：全文词集合的 Dice 系数与名称的 Levenshtein 相似度加权。
type LexicalOracle struct{}

func (LexicalOracle) Compare(ctx context.Context, lostText, foundText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dice := diceCoefficient(words(lostText), words(foundText))
	name := stringSimilarity(strings.ToLower(nameLine(lostText)), strings.ToLower(nameLine(foundText)))
	score := 100 * (0.7*dice + 0.3*name)
	return strconv.FormatFloat(math.Round(score*100)/100, 'f', 2, 64), nil
}

// words 提取小写词集合，跳过 "Name:" 等行首标签。
func words(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, ":"); i >= 0 {
			line = line[i+1:]
		}
		for _, w := range strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			set[w] = struct{}{}
		}
	}
	return set
}

func diceCoefficient(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for w := range a {
		if _, ok := b[w]; ok {
			common++
		}
	}
	return 2 * float64(common) / float64(len(a)+len(b))
}

func nameLine(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(strings.TrimPrefix(first, "Name:"))
}

// stringSimilarity 计算 1 - 编辑距离/最大长度（按 rune）。
func stringSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		if s1 == "" {
			return 0
		}
		return 1
	}
	maxLen := math.Max(float64(len([]rune(s1))), float64(len([]rune(s2))))
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshteinDistance(s1, s2))/maxLen
}

func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	m, n := len(r1), len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}
	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		cur[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[n]
}
