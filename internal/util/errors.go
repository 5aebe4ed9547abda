package util

import "errors"

// 核心错误分类。service 层用 fmt.Errorf("...: %w", Err*) 包装后上抛，
// controller 层通过 errors.Is 映射为 HTTP 状态码。
var (
	ErrValidation        = errors.New("请求参数不合法")
	ErrNotFound          = errors.New("资源不存在")
	ErrInvalidTransition = errors.New("当前工单状态不允许该操作")
	ErrConflict          = errors.New("操作冲突，数据已被其他请求修改")
	ErrForbidden         = errors.New("无权执行该操作")
	ErrUpstream          = errors.New("上游模型服务调用失败")
	ErrEmailRegistered   = errors.New("该邮箱已被注册")
)
