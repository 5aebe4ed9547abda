package model

// QCResult 质检结果。ticket_id 唯一索引保证一个工单至多一条质检记录，
// 与 closed → reviewed 的状态变更在同一事务中落库。
type QCResult struct {
	BaseModel
	TicketID        uint    `gorm:"not null;uniqueIndex" json:"ticketId"`
	AccuracyScore   int     `gorm:"not null" json:"accuracyScore"`   // 知识准确性 1-5
	ComplianceScore int     `gorm:"not null" json:"complianceScore"` // 服务规范 1-5
	ResolutionScore int     `gorm:"not null" json:"resolutionScore"` // 问题解决度 1-5
	TotalScore      float64 `gorm:"not null" json:"totalScore"`
	Comment         string  `gorm:"type:text" json:"comment"`
}

func (QCResult) TableName() string {
	return "qc_results"
}
