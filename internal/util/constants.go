package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 知识库上传允许的文件后缀
var AllowedDocExtensions = []string{".md", ".txt"}
