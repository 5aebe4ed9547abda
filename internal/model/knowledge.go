package model

import (
	"time"
)

// DocStatus 知识文档状态，processing 为初始态，
// 只允许单向进入 ready 或 failed，不会回退。
type DocStatus string

const (
	DocStatusProcessing DocStatus = "processing"
	DocStatusReady      DocStatus = "ready"
	DocStatusFailed     DocStatus = "failed"
)

// swagger:model KnowledgeDoc
type KnowledgeDoc struct {
	BaseModel
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	ObjectKey  string    `gorm:"size:255" json:"-"` // 原始文件在对象存储中的路径
	Content    string    `gorm:"type:longtext" json:"-"`
	Status     DocStatus `gorm:"size:20;not null;default:'processing'" json:"status"`
	ChunkCount int       `gorm:"default:0" json:"chunkCount"`
	QACount    int       `gorm:"default:0" json:"qaCount"`
}

func (KnowledgeDoc) TableName() string {
	return "knowledge_docs"
}

// VectorChunk 文档切片，写入后不可变。Ordinal 保持原文顺序用于引用展示。
type VectorChunk struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocID     uint      `gorm:"not null;index" json:"docId"`
	Ordinal   int       `gorm:"not null;default:0" json:"ordinal"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Embedding []byte    `gorm:"type:longblob" json:"-"` // float32 小端序列化
	CreatedAt time.Time `json:"createdAt"`
}

func (VectorChunk) TableName() string {
	return "vector_chunks"
}

// QAPair 由文档自动生成的问答对，question 的向量用于高精度检索捷径。
type QAPair struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocID     uint      `gorm:"not null;index" json:"docId"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Embedding []byte    `gorm:"type:longblob" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (QAPair) TableName() string {
	return "qa_pairs"
}
