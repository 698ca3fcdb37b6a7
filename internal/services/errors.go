package services

import (
	"errors"

	"gorm.io/gorm"
)

// 服务层错误分类；调用方用 errors.Is 判定，HTTP 层据此映射状态码。
var (
	ErrNotFound     = errors.New("not_found")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream")
)

// notFoundOr 把 gorm.ErrRecordNotFound 统一转换为 ErrNotFound（附带实体描述），其它错误原样返回。
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &detailError{kind: ErrNotFound, detail: what + " not found"}
	}
	return err
}

// detailError 携带面向客户端的说明文字，同时可被 errors.Is 识别为 kind。
type detailError struct {
	kind   error
	detail string
}

func (e *detailError) Error() string { return e.detail }
func (e *detailError) Unwrap() error { return e.kind }

func newError(kind error, detail string) error { return &detailError{kind: kind, detail: detail} }
