package handler

import (
	"net/http"

	"campus_wall/internal/domain/wall/model"
	"campus_wall/internal/domain/wall/service"
	"campus_wall/internal/pkg/middleware"
	"campus_wall/pkg/apperror"
	"campus_wall/pkg/response"
	"campus_wall/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

type WallHandler struct {
	service service.WallService
}

func NewWallHandler(s service.WallService) *WallHandler {
	return &WallHandler{service: s}
}

// RegisterValidators 在 gin 的校验引擎上注册 notblank
func RegisterValidators() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return v.RegisterValidation("notblank", validators.NotBlank)
	}
	return nil
}

// RegisterRoutes 挂载墙模块路由，rg 需已带认证中间件
func RegisterRoutes(rg *gin.RouterGroup, h *WallHandler) {
	rg.POST("", h.CreatePost)
	rg.GET("", h.GetPostsByWall)
	rg.GET("/:id", h.GetPost)
	rg.POST("/:id/like", h.ToggleLike)
	rg.POST("/:id/hide", h.HidePost)
	rg.POST("/:id/unhide", h.UnhidePost)

	rg.POST("/:id/comments", h.AddComment)
	rg.GET("/:id/comments", h.GetComments)
	rg.POST("/:id/comments/:cid/hide", h.HideComment)
	rg.POST("/:id/comments/:cid/unhide", h.UnhideComment)
}

// CreatePostInput 发帖输入
type CreatePostInput struct {
	Content string `json:"content" binding:"required,notblank"`
	Wall    string `json:"wall" binding:"required"`
}

// CommentInput 评论输入
type CommentInput struct {
	Text string `json:"text" binding:"required,notblank"`
}

// ListQuery 列表查询参数
type ListQuery struct {
	Wall  string `form:"wall"`
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
}

func (q ListQuery) pagination() utils.Pagination {
	return utils.Pagination{Page: q.Page, Limit: q.Limit}
}

// CreatePost 发帖
// @Summary 发帖
// @Tags Wall
// @Accept json
// @Produce json
// @Param input body CreatePostInput true "帖子内容"
// @Success 200 {object} model.Post
// @Router /posts [post]
func (h *WallHandler) CreatePost(c *gin.Context) {
	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	post, err := h.service.CreatePost(c.Request.Context(), principal(c), input.Content, input.Wall)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, post)
}

// GetPostsByWall 墙列表
// @Summary 按墙分页获取帖子
// @Tags Wall
// @Param wall query string true "campus | national"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Param sort query string false "NEWEST | OLDEST | MOST_LIKED | LEAST_LIKED"
// @Success 200 {object} utils.PageResult
// @Router /posts [get]
func (h *WallHandler) GetPostsByWall(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	page, err := h.service.GetPostsByWall(c.Request.Context(), principal(c), q.Wall, q.pagination(), q.Sort)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, page)
}

// GetPost 帖子详情
// @Summary 帖子详情
// @Tags Wall
// @Param id path string true "帖子ID"
// @Success 200 {object} model.Post
// @Router /posts/{id} [get]
func (h *WallHandler) GetPost(c *gin.Context) {
	post, err := h.service.GetPost(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, post)
}

// ToggleLike 点赞/取消点赞
// @Summary 切换点赞状态
// @Tags Wall
// @Param id path string true "帖子ID"
// @Success 200 {object} service.LikeResult
// @Router /posts/{id}/like [post]
func (h *WallHandler) ToggleLike(c *gin.Context) {
	result, err := h.service.ToggleLike(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

// HidePost 隐藏帖子及其全部评论
// @Summary 隐藏帖子（仅作者）
// @Tags Wall
// @Param id path string true "帖子ID"
// @Success 200 {object} model.Post
// @Router /posts/{id}/hide [post]
func (h *WallHandler) HidePost(c *gin.Context) {
	post, err := h.service.HidePost(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, post)
}

// UnhidePost 恢复帖子及其全部评论
// @Summary 取消隐藏帖子（仅作者）
// @Tags Wall
// @Param id path string true "帖子ID"
// @Success 200 {object} model.Post
// @Router /posts/{id}/unhide [post]
func (h *WallHandler) UnhidePost(c *gin.Context) {
	post, err := h.service.UnhidePost(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, post)
}

// AddComment 发表评论
// @Summary 发表评论
// @Tags Wall
// @Accept json
// @Param id path string true "帖子ID"
// @Param input body CommentInput true "评论内容"
// @Success 200 {object} model.Comment
// @Router /posts/{id}/comments [post]
func (h *WallHandler) AddComment(c *gin.Context) {
	var input CommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	comment, err := h.service.AddComment(c.Request.Context(), principal(c), c.Param("id"), input.Text)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, comment)
}

// GetComments 评论列表
// @Summary 分页获取帖子评论
// @Tags Wall
// @Param id path string true "帖子ID"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Param sort query string false "NEWEST | OLDEST | MOST_LIKED | LEAST_LIKED"
// @Success 200 {object} utils.PageResult
// @Router /posts/{id}/comments [get]
func (h *WallHandler) GetComments(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	page, err := h.service.GetComments(c.Request.Context(), principal(c), c.Param("id"), q.pagination(), q.Sort)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, page)
}

// HideComment 隐藏评论
// @Summary 隐藏评论（仅评论作者）
// @Tags Wall
// @Param id path string true "帖子ID"
// @Param cid path string true "评论ID"
// @Success 200 {object} model.Comment
// @Router /posts/{id}/comments/{cid}/hide [post]
func (h *WallHandler) HideComment(c *gin.Context) {
	comment, err := h.service.HideComment(c.Request.Context(), principal(c), c.Param("id"), c.Param("cid"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, comment)
}

// UnhideComment 取消隐藏评论
// @Summary 取消隐藏评论（仅评论作者）
// @Tags Wall
// @Param id path string true "帖子ID"
// @Param cid path string true "评论ID"
// @Success 200 {object} model.Comment
// @Router /posts/{id}/comments/{cid}/unhide [post]
func (h *WallHandler) UnhideComment(c *gin.Context) {
	comment, err := h.service.UnhideComment(c.Request.Context(), principal(c), c.Param("id"), c.Param("cid"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, comment)
}

func principal(c *gin.Context) model.Principal {
	userID, domain, _ := middleware.Identity(c)
	return model.Principal{UserID: userID, SchoolDomain: domain}
}

// fail 业务错误映射状态码，内部错误挂到 gin 上下文由日志中间件输出
func fail(c *gin.Context, err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		_ = c.Error(err)
	}
	response.FromError(c, err)
}
