package storage

import (
	"errors"
	"net/http"

	"github.com/minio/minio-go/v7"
)

// IsNoSuchKey 判断读取或删除备份时的错误是否只是对象已不存在。
func IsNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return true
	case "NoSuchBucket":
		return false
	}
	return resp.StatusCode == http.StatusNotFound
}
