package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 身份错误 100xx
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 墙模块错误 200xx
	ErrResourceNotFound = 20001
	ErrWallForbidden    = 20002
	ErrVersionConflict  = 20003

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
