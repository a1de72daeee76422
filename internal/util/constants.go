package util

const DateFormat = "2006-01-02"

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const MimeJSON = "application/json"
