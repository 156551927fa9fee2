package xerr

import "fmt"

// 常用错误码定义
const (
	OK                 = 200
	RequestParamsError = 400
	Unauthorized       = 401
	RecordNotFound     = 404
	ServerCommonError  = 500
	DbError            = 501
	// ReconcileFatal 结算回写失败：外部网络和内部记录可能已经不一致，必须告警
	ReconcileFatal = 502
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// IsCode 判断 err 是否携带指定错误码
func IsCode(err error, code int) bool {
	if ce, ok := err.(*CodeError); ok {
		return ce.Code == code
	}
	return false
}

func MapErrMsg(code int) string {
	switch code {
	case RequestParamsError:
		return "参数错误"
	case Unauthorized:
		return "凭证无效"
	case RecordNotFound:
		return "记录不存在"
	case DbError:
		return "数据库繁忙"
	case ReconcileFatal:
		return "结算状态回写失败"
	case ServerCommonError:
		return "服务器开小差了"
	default:
		return "未知错误"
	}
}
