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

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/redhat-data-and-ai/cortexstage/pkg/trustpolicy"
)

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("iamrolearn", validateRoleARN)
}

func validateRoleARN(fl validator.FieldLevel) bool {
	_, err := trustpolicy.ParseRoleARN(fl.Field().String())
	return err == nil
}

// Validate checks the sections every command relies on. Connection settings are
// checked separately by ValidateConnection since offline commands do not need them.
func Validate(cfg *AppConfig) error {
	if err := structErrors("setup", configValidate.Struct(cfg.Setup)); err != nil {
		return err
	}
	if cfg.Setup.Integration.RoleARN != "" {
		if err := configValidate.Var(cfg.Setup.Integration.RoleARN, "iamrolearn"); err != nil {
			return fmt.Errorf("invalid config: setup.integration.role_arn %q is not an IAM role ARN",
				cfg.Setup.Integration.RoleARN)
		}
	}
	return structErrors("jobs", configValidate.Struct(cfg.Jobs))
}

// ValidateConnection checks the Snowflake connection settings
func ValidateConnection(cfg *AppConfig) error {
	return structErrors("snowflake", configValidate.Struct(cfg.Snowflake))
}

// structErrors flattens validator errors into one readable message
func structErrors(section string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %s: %w", section, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
