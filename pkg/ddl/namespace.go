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

import "fmt"

// Namespace is the database and schema that own the stage
type Namespace struct {
	Database string
	Schema   string
}

func (n Namespace) Validate() error {
	if err := ValidateIdentifier("database", n.Database); err != nil {
		return err
	}
	return ValidateIdentifier("schema", n.Schema)
}

// String returns DB.SCHEMA
func (n Namespace) String() string {
	return QualifiedIdent(n.Database, n.Schema)
}

// Qualify returns DB.SCHEMA.name
func (n Namespace) Qualify(name string) string {
	return QualifiedIdent(n.Database, n.Schema, name)
}

// CreateDatabase is a no-op when the database already exists
func (n Namespace) CreateDatabase() string {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", Ident(n.Database))
}

// CreateSchema is a no-op when the schema already exists
func (n Namespace) CreateSchema() string {
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", n.String())
}
