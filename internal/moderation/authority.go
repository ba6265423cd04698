// Package moderation решает, может ли вызывающий выполнить административное действие.
package moderation

import (
	"github.com/thereayou/artem-chat/internal/models"
)

type Action string

const (
	ActionSearch  Action = "search"
	ActionBan     Action = "ban"
	ActionUnban   Action = "unban"
	ActionMute    Action = "mute"
	ActionUnmute  Action = "unmute"
	ActionPromote Action = "promote"
	ActionDemote  Action = "demote"
	ActionAudit   Action = "audit"
	ActionStats   Action = "stats"
)

// минимальная роль вызывающего для каждого действия
var required = map[Action]models.Role{
	ActionSearch:  models.RoleAdmin,
	ActionBan:     models.RoleAdmin,
	ActionUnban:   models.RoleAdmin,
	ActionMute:    models.RoleAdmin,
	ActionUnmute:  models.RoleAdmin,
	ActionAudit:   models.RoleAdmin,
	ActionStats:   models.RoleAdmin,
	ActionPromote: models.RoleOwner,
	ActionDemote:  models.RoleOwner,
}

// HasTarget сообщает, применяется ли действие к конкретному пользователю.
func (a Action) HasTarget() bool {
	switch a {
	case ActionBan, ActionUnban, ActionMute, ActionUnmute, ActionPromote, ActionDemote:
		return true
	}
	return false
}

// Authorize возвращает nil, если caller может выполнить action над target.
// target == nil проверяет только права вызывающего.
// Неизвестное действие запрещено.
func Authorize(caller models.Role, action Action, target *models.Role) error {
	need, ok := required[action]
	if !ok || !caller.AtLeast(need) {
		return models.ErrInsufficientPrivilege
	}
	if target != nil && action.HasTarget() && target.IsOwner() {
		return models.ErrProtectedTarget
	}
	return nil
}
