package middleware

import "github.com/certmgmt/backend/internal/domain"

type StaticRoleAuthorizer struct {
	roles map[string]map[domain.Privilege]struct{}
}

func NewStaticRoleAuthorizer(roles map[string][]string) *StaticRoleAuthorizer {
	index := make(map[string]map[domain.Privilege]struct{}, len(roles))
	for role, privileges := range roles {
		set := make(map[domain.Privilege]struct{}, len(privileges))
		for _, p := range privileges {
			set[domain.Privilege(p)] = struct{}{}
		}
		index[role] = set
	}
	return &StaticRoleAuthorizer{roles: index}
}

func (a *StaticRoleAuthorizer) RoleHasPrivilege(roleID string, privilege domain.Privilege) bool {
	_, ok := a.roles[roleID][privilege]
	return ok
}
