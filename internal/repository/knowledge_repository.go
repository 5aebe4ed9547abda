package repository

import (
	"ai_support_backend/internal/model"

	"gorm.io/gorm"
)

type KnowledgeRepository struct {
	DB *gorm.DB
}

func NewKnowledgeRepository(db *gorm.DB) *KnowledgeRepository {
	return &KnowledgeRepository{DB: db}
}

func (r *KnowledgeRepository) CreateDoc(doc *model.KnowledgeDoc) error {
	return r.DB.Create(doc).Error
}

func (r *KnowledgeRepository) FindDocByID(id uint) (*model.KnowledgeDoc, error) {
	var doc model.KnowledgeDoc
	err := r.DB.First(&doc, id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *KnowledgeRepository) ListDocs() ([]model.KnowledgeDoc, error) {
	var docs []model.KnowledgeDoc
	err := r.DB.Order("created_at DESC").Find(&docs).Error
	return docs, err
}

func (r *KnowledgeRepository) UpdateDocStatus(id uint, status model.DocStatus) error {
	return r.DB.Model(&model.KnowledgeDoc{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// MarkReady 入库完成，同时写入切片与问答对数量
func (r *KnowledgeRepository) MarkReady(id uint, chunkCount, qaCount int) error {
	return r.DB.Model(&model.KnowledgeDoc{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.DocStatusReady,
			"chunk_count": chunkCount,
			"qa_count":    qaCount,
		}).Error
}

func (r *KnowledgeRepository) MarkFailed(id uint) error {
	return r.UpdateDocStatus(id, model.DocStatusFailed)
}

// PersistIngestResult 在事务内写入入库产物并置 ready，
// 重试场景下先清后写，避免残留半成品切片。
func (r *KnowledgeRepository) PersistIngestResult(docID uint, chunks []model.VectorChunk, pairs []model.QAPair) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doc_id = ?", docID).Delete(&model.VectorChunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("doc_id = ?", docID).Delete(&model.QAPair{}).Error; err != nil {
			return err
		}
		if len(chunks) > 0 {
			if err := tx.CreateInBatches(chunks, 100).Error; err != nil {
				return err
			}
		}
		if len(pairs) > 0 {
			if err := tx.CreateInBatches(pairs, 100).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.KnowledgeDoc{}).
			Where("id = ?", docID).
			Updates(map[string]interface{}{
				"status":      model.DocStatusReady,
				"chunk_count": len(chunks),
				"qa_count":    len(pairs),
			}).Error
	})
}

// DeleteDocCascade 删除文档及其全部切片与问答对，
// 返回被删除的向量 ID 供内存索引同步清理。
// 文档不存在时返回 found=false，调用方按幂等删除处理。
func (r *KnowledgeRepository) DeleteDocCascade(docID uint) (chunkIDs []uint, qaIDs []uint, found bool, err error) {
	err = r.DB.Transaction(func(tx *gorm.DB) error {
		var doc model.KnowledgeDoc
		if e := tx.First(&doc, docID).Error; e != nil {
			if e == gorm.ErrRecordNotFound {
				return nil
			}
			return e
		}
		found = true

		if e := tx.Model(&model.VectorChunk{}).Where("doc_id = ?", docID).Pluck("id", &chunkIDs).Error; e != nil {
			return e
		}
		if e := tx.Model(&model.QAPair{}).Where("doc_id = ?", docID).Pluck("id", &qaIDs).Error; e != nil {
			return e
		}
		if e := tx.Where("doc_id = ?", docID).Delete(&model.VectorChunk{}).Error; e != nil {
			return e
		}
		if e := tx.Where("doc_id = ?", docID).Delete(&model.QAPair{}).Error; e != nil {
			return e
		}
		return tx.Delete(&model.KnowledgeDoc{}, docID).Error
	})
	return
}

// AllChunks 全量加载切片（含向量），服务启动时重建索引用
func (r *KnowledgeRepository) AllChunks() ([]model.VectorChunk, error) {
	var chunks []model.VectorChunk
	err := r.DB.Find(&chunks).Error
	return chunks, err
}

func (r *KnowledgeRepository) AllQAPairs() ([]model.QAPair, error) {
	var pairs []model.QAPair
	err := r.DB.Find(&pairs).Error
	return pairs, err
}
