package service

import (
	"campus_wall/internal/domain/wall/model"
	"campus_wall/pkg/apperror"
)

// CanAct 判断调用方能否读取或操作某个墙上的资源
// national 对所有已认证用户开放；campus 要求调用方有学校域且与资源一致。
func CanAct(p model.Principal, wall model.Wall, schoolDomain string) error {
	if p.UserID == "" {
		return apperror.Forbidden("authentication required")
	}
	switch wall {
	case model.WallNational:
		return nil
	case model.WallCampus:
		if !p.HasDomain() || p.SchoolDomain != schoolDomain {
			return apperror.Forbidden("campus content is restricted to its school")
		}
		return nil
	default:
		return apperror.Forbidden("unknown wall")
	}
}

// CanActOnPost 以帖子的墙和学校域为准
func CanActOnPost(p model.Principal, post *model.Post) error {
	return CanAct(p, post.Wall, post.Domain())
}

// CanCreate 发帖规则：campus 帖子要求调用方有学校域
func CanCreate(p model.Principal, wall model.Wall) error {
	if p.UserID == "" {
		return apperror.Forbidden("authentication required")
	}
	if wall == model.WallCampus && !p.HasDomain() {
		return apperror.Forbidden("a school domain is required to post on the campus wall")
	}
	return nil
}
