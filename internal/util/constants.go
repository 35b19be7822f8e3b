package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 导出格式
const (
	ExportCSV  = "csv"
	ExportJSON = "json"
	ExportPDF  = "pdf"
	ExportXLSX = "xlsx"
)

const (
	MimeCSV  = "text/csv"
	MimeJSON = "application/json"
)
