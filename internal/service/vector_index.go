package service

import (
	"math"
	"sort"
	"sync"
)

// 索引命名空间：文档切片与 QA 问题分开检索
const (
	NamespaceChunks      = "chunks"
	NamespaceQAQuestions = "qa_questions"
)

// IndexPayload 检索命中时随向量返回的业务数据
type IndexPayload struct {
	DocID   uint
	Content string
	Answer  string
}

type indexEntry struct {
	id      uint
	vector  []float32
	norm    float64
	seq     uint64
	payload IndexPayload
}

// SearchHit 检索结果，Score 为原始余弦相似度，范围 [-1, 1]
type SearchHit struct {
	ID      uint
	Score   float64
	Payload IndexPayload
}

// VectorIndex 进程内向量索引。全量驻留内存，暴力余弦检索，
// 启动时从数据库重建，写入与数据库落库同步进行。
type VectorIndex struct {
	mu         sync.RWMutex
	namespaces map[string]map[uint]*indexEntry
	seq        uint64
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		namespaces: map[string]map[uint]*indexEntry{
			NamespaceChunks:      {},
			NamespaceQAQuestions: {},
		},
	}
}

// Upsert 写入或覆盖一条向量。重复 ID 覆盖旧向量但保留原插入序，
// 保证同分命中的先后顺序稳定。
func (idx *VectorIndex) Upsert(namespace string, id uint, vector []float32, payload IndexPayload) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ns, ok := idx.namespaces[namespace]
	if !ok {
		ns = map[uint]*indexEntry{}
		idx.namespaces[namespace] = ns
	}

	seq := idx.seq
	if old, exists := ns[id]; exists {
		seq = old.seq
	} else {
		idx.seq++
	}

	ns[id] = &indexEntry{
		id:      id,
		vector:  vector,
		norm:    vectorNorm(vector),
		seq:     seq,
		payload: payload,
	}
}

func (idx *VectorIndex) Delete(namespace string, ids ...uint) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ns, ok := idx.namespaces[namespace]
	if !ok {
		return
	}
	for _, id := range ids {
		delete(ns, id)
	}
}

// Search 返回与查询向量余弦相似度最高的 topK 条记录，按分数降序。
// 同分时按插入顺序先入先出，结果可复现。
func (idx *VectorIndex) Search(namespace string, query []float32, topK int) []SearchHit {
	if topK <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ns, ok := idx.namespaces[namespace]
	if !ok || len(ns) == 0 {
		return nil
	}

	queryNorm := vectorNorm(query)
	if queryNorm == 0 {
		return nil
	}

	type scored struct {
		hit SearchHit
		seq uint64
	}
	candidates := make([]scored, 0, len(ns))
	for _, entry := range ns {
		if entry.norm == 0 || len(entry.vector) != len(query) {
			continue
		}
		score := dotProduct(query, entry.vector) / (queryNorm * entry.norm)
		candidates = append(candidates, scored{
			hit: SearchHit{ID: entry.id, Score: score, Payload: entry.payload},
			seq: entry.seq,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Score != candidates[j].hit.Score {
			return candidates[i].hit.Score > candidates[j].hit.Score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	hits := make([]SearchHit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.hit
	}
	return hits
}

func (idx *VectorIndex) Count(namespace string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.namespaces[namespace])
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
