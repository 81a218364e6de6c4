/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ddl

import (
	"fmt"
	"strings"
)

// Securable object kinds a grant can target
const (
	ObjectDatabase     = "DATABASE"
	ObjectSchema       = "SCHEMA"
	ObjectStage        = "STAGE"
	ObjectIntegration  = "INTEGRATION"
	ObjectWarehouse    = "WAREHOUSE"
	ObjectDatabaseRole = "DATABASE ROLE"
	ObjectRole         = "ROLE"
)

// DefaultCortexRole is the database role that carries the Cortex functions
const DefaultCortexRole = "SNOWFLAKE.CORTEX_USER"

// Grant is an authorization edge from an object to an account role. Grants on
// ROLE or DATABASE ROLE objects carry no privileges and grant the role itself.
type Grant struct {
	Privileges []string
	ObjectType string
	// Object is the already rendered object name
	Object string
	Role   string
}

// SQL renders the GRANT statement
func (g Grant) SQL() string {
	if g.isRoleGrant() {
		return fmt.Sprintf("GRANT %s %s TO ROLE %s", g.ObjectType, g.Object, Ident(g.Role))
	}
	return fmt.Sprintf("GRANT %s ON %s %s TO ROLE %s",
		strings.Join(g.Privileges, ", "), g.ObjectType, g.Object, Ident(g.Role))
}

func (g Grant) String() string {
	if g.isRoleGrant() {
		return fmt.Sprintf("%s %s -> %s", g.ObjectType, g.Object, g.Role)
	}
	return fmt.Sprintf("%s on %s %s -> %s", strings.Join(g.Privileges, ","), g.ObjectType, g.Object, g.Role)
}

func (g Grant) isRoleGrant() bool {
	return g.ObjectType == ObjectDatabaseRole || g.ObjectType == ObjectRole
}

// AccessObjects names everything the consumer role needs to reach.
// IntegrationUsage opts in to USAGE on an external stage's integration.
type AccessObjects struct {
	Stage            Stage
	Warehouse        string
	CortexRole       string
	IntegrationUsage bool
}

// AccessGrants returns the least-privilege grant set for role, in the order
// they must be applied
func AccessGrants(role string, objects AccessObjects) []Grant {
	stage := objects.Stage
	ns := stage.Namespace

	grants := []Grant{
		{Privileges: []string{"USAGE"}, ObjectType: ObjectDatabase, Object: Ident(ns.Database), Role: role},
		{Privileges: []string{"USAGE"}, ObjectType: ObjectSchema, Object: ns.String(), Role: role},
	}

	if stage.Mode == StageExternal {
		grants = append(grants,
			Grant{Privileges: []string{"USAGE"}, ObjectType: ObjectStage, Object: stage.FullName(), Role: role})
		if objects.IntegrationUsage && stage.Integration != "" {
			grants = append(grants,
				Grant{Privileges: []string{"USAGE"}, ObjectType: ObjectIntegration, Object: Ident(stage.Integration), Role: role})
		}
	} else {
		grants = append(grants,
			Grant{Privileges: []string{"READ", "WRITE"}, ObjectType: ObjectStage, Object: stage.FullName(), Role: role})
	}

	if objects.Warehouse != "" {
		grants = append(grants,
			Grant{Privileges: []string{"USAGE"}, ObjectType: ObjectWarehouse, Object: Ident(objects.Warehouse), Role: role})
	}

	cortexRole := objects.CortexRole
	if cortexRole == "" {
		cortexRole = DefaultCortexRole
	}
	roleType := ObjectDatabaseRole
	if !strings.Contains(cortexRole, ".") {
		roleType = ObjectRole
	}
	grants = append(grants, Grant{ObjectType: roleType, Object: QualifiedIdent(SplitQualified(cortexRole)...), Role: role})

	return grants
}
