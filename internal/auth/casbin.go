package auth

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/util"
	sqlxadapter "github.com/memwey/casbin-sqlx-adapter"
)

// accessModel is role based: subjects inherit roles through g, and policy
// paths use keyMatch2 wildcards.
const accessModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// NewEnforcer creates a Casbin enforcer. Policies are kept in the casbin_rule
// table of the given database, or only in memory when driverName is
// "memory" or empty.
func NewEnforcer(driverName, dsn string) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(accessModel)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.Enforcer
	if driverName == "" || driverName == "memory" {
		enforcer, err = casbin.NewEnforcer(m)
	} else {
		adapter := sqlxadapter.NewAdapterFromOptions(&sqlxadapter.AdapterOptions{
			DriverName:     driverName,
			DataSourceName: dsn,
			TableName:      "casbin_rule",
		})
		enforcer, err = casbin.NewEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}

	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)

	if driverName != "" && driverName != "memory" {
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	return enforcer, nil
}
