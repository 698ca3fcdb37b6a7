package services

// 相似度排序：把失物描述与每个招领物品描述交给打分 Oracle，按分数倒序取前 top_k。

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/config"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/metrics"
	"github.com/tel-ran-de/141024-m-pt-microservices-api/internal/storage"
)

// Oracle 比较两段物品描述，返回原始文本形式的分数（期望为 0..100 的数字）。
type Oracle interface {
	Compare(ctx context.Context, lostText, foundText string) (string, error)
}

type lostItemGetter interface {
	Get(ctx context.Context, id uint64) (*storage.LostItem, error)
}

type foundItemLister interface {
	ListAll(ctx context.Context) ([]storage.FoundItem, error)
}

// Match 为一条排序结果；Score 已限制在 [0,100]。
type Match struct {
	Item  storage.FoundItem
	Score float64
}

// Ranker 对单个失物与全部招领物品做并发打分与排序。
type Ranker struct {
	lost    lostItemGetter
	found   foundItemLister
	oracle  Oracle
	workers int
	timeout time.Duration
}

func NewRanker(lost lostItemGetter, found foundItemLister, oracle Oracle, cfg config.OracleConfig) *Ranker {
	r := &Ranker{lost: lost, found: found, oracle: oracle, workers: cfg.Workers, timeout: cfg.Timeout}
	if r.workers <= 0 {
		r.workers = 1
	}
	if r.timeout <= 0 {
		r.timeout = 15 * time.Second
	}
	return r
}

// Rank 返回与失物最相似的至多 topK 个招领物品。
// 失物不存在时返回 ErrNotFound 且不调用 Oracle；单个候选打分失败记 0 分，不影响整体。
func (r *Ranker) Rank(ctx context.Context, lostID uint64, topK int) ([]Match, error) {
	if topK < 1 {
		return nil, newError(ErrInvalid, "top_k must be a positive integer")
	}
	lost, err := r.lost.Get(ctx, lostID)
	if err != nil {
		return nil, err
	}
	found, err := r.found.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return []Match{}, nil
	}
	lostText := describeLost(lost)

	// 分数按下标写回，合并后再做稳定排序，保证同分时保持遍历顺序
	scores := make([]float64, len(found))
	jobs := make(chan int)
	workers := r.workers
	if workers > len(found) {
		workers = len(found)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				scores[i] = r.score(ctx, lostText, describeFound(&found[i]), found[i].ID)
			}
		}()
	}
feed:
	for i := range found {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := make([]Match, len(found))
	for i := range found {
		matches[i] = Match{Item: found[i], Score: scores[i]}
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (r *Ranker) score(ctx context.Context, lostText, foundText string, foundID uint64) float64 {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	raw, err := r.oracle.Compare(cctx, lostText, foundText)
	metrics.OracleLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OracleCalls.WithLabelValues("error").Inc()
		if ctx.Err() == nil {
			log.WithError(err).WithField("found_item_id", foundID).Warn("oracle call failed, scoring 0")
		}
		return 0
	}
	v, ok := parseScore(raw)
	if !ok {
		metrics.OracleCalls.WithLabelValues("unparseable").Inc()
		log.WithFields(log.Fields{"found_item_id": foundID, "reply": truncate(raw, 32)}).Warn("oracle reply is not a number, scoring 0")
		return 0
	}
	metrics.OracleCalls.WithLabelValues("ok").Inc()
	return v
}

// ParseScore 解析 Oracle 回复："85.5" → 85.5，"  73% " → 73，"120" → 100，无法解析 → 0。
func ParseScore(raw string) float64 {
	v, _ := parseScore(raw)
	return v
}

func parseScore(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(raw), "%", ""))
	v, err := strconv.ParseFloat(s, 64)
	// 超出范围时 v 为 ±Inf 或 0，照常截断
	if (err != nil && !errors.Is(err, strconv.ErrRange)) || math.IsNaN(v) {
		return 0, false
	}
	return clampScore(v), true
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// DescribeItem 生成交给 Oracle 的物品文本：名称、描述，以及可选的分类与标签行。
func DescribeItem(name, description, category string, tags []string) string {
	lines := []string{"Name: " + name, "Description: " + description}
	if category != "" {
		lines = append(lines, "Category: "+category)
	}
	if len(tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(tags, ", "))
	}
	return strings.Join(lines, "\n")
}

func describeLost(it *storage.LostItem) string {
	return DescribeItem(it.Name, it.Description, categoryName(it.Category), TagNames(it.Tags))
}

func describeFound(it *storage.FoundItem) string {
	return DescribeItem(it.Name, it.Description, categoryName(it.Category), TagNames(it.Tags))
}

func categoryName(c *storage.Category) string {
	if c == nil {
		return ""
	}
	return c.Name
}

// TagNames 按原有顺序提取标签名。
func TagNames(tags []storage.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
