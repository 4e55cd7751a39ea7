package utils

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination 分页请求参数
type Pagination struct {
	Page  int `json:"page" form:"page"`
	Limit int `json:"limit" form:"limit"`
}

// PageResult 分页响应结果
type PageResult struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"totalPages"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
}

// Normalize 规范化分页参数：page < 1 取 1，limit <= 0 取默认值，超过上限截断到上限
func (p Pagination) Normalize(defaultLimit, maxLimit int) Pagination {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxPageLimit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// GetPageOffset 计算分页偏移量（使用默认上下限）
func (p *Pagination) GetPageOffset() (int, int) {
	*p = p.Normalize(DefaultPageLimit, MaxPageLimit)
	return (p.Page - 1) * p.Limit, p.Limit
}

// TotalPages ceil(total / limit)
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// NewPageResult 组装分页结果，超出最后一页时 data 为空但 total/totalPages 不变
func NewPageResult(data interface{}, total int64, p Pagination) PageResult {
	return PageResult{
		Data:       data,
		Total:      total,
		TotalPages: TotalPages(total, p.Limit),
		Page:       p.Page,
		Limit:      p.Limit,
	}
}
