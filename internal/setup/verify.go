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

package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redhat-data-and-ai/cortexstage/pkg/clients/snowflake"
	"github.com/redhat-data-and-ai/cortexstage/pkg/ddl"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"
)

const probeResultColumn = "RESULT"

// Verification is the outcome of the smoke test
type Verification struct {
	Stage      string                 `json:"stage" yaml:"stage"`
	Files      []StageFile            `json:"files" yaml:"files"`
	ProbedFile string                 `json:"probedFile" yaml:"probedFile"`
	Response   map[string]interface{} `json:"response,omitempty" yaml:"response,omitempty"`
}

// StageFile is a LIST row with the path TO_FILE expects
type StageFile struct {
	snowflake.StageFile `yaml:",inline"`
	RelativePath        string `json:"relativePath" yaml:"relativePath"`
}

// extractOutput is the object AI_EXTRACT returns
type extractOutput struct {
	Error    interface{}            `json:"error"`
	Response map[string]interface{} `json:"response"`
}

// Verify lists the stage and runs AI_EXTRACT on the first file found. It
// distinguishes a missing stage, a missing AI function and an empty stage.
func (o *Orchestrator) Verify(ctx context.Context, stage ddl.Stage, opts VerifyOptions) (*Verification, error) {
	log := logger.Logger(ctx).WithFields(logrus.Fields{"step": StepVerify, "stage": stage.FullName()})

	if opts.Refresh && stage.Mode == ddl.StageExternal {
		if _, err := o.execute(ctx, stage.Refresh()); err != nil {
			log.WithError(err).Error("error refreshing stage directory")
			return nil, o.diagnose(StepVerify, stage.FullName(), err)
		}
	}

	result, err := o.execute(ctx, stage.List())
	if err != nil {
		log.WithError(err).Error("error listing stage")
		return nil, o.diagnose(StepVerify, stage.FullName(), err)
	}

	listed, err := snowflake.ParseStageFiles(result)
	if err != nil {
		return nil, o.diagnose(StepVerify, stage.FullName(), err)
	}

	v := &Verification{Stage: stage.FullName(), Files: make([]StageFile, 0, len(listed))}
	for _, f := range listed {
		v.Files = append(v.Files, StageFile{StageFile: f, RelativePath: stage.RelativePath(f.Name)})
	}

	probed, ok := pickProbeFile(v.Files)
	if !ok {
		log.Warn("stage has no files")
		return v, &Diagnostic{Step: StepVerify, Kind: KindNoFilesFound, Object: stage.Reference(), Remedy: noFilesRemedy(stage)}
	}
	v.ProbedFile = probed.RelativePath

	probeSQL, err := ddl.ExtractProbe{Stage: stage, Path: probed.RelativePath, ResponseFormat: opts.ResponseFormat}.SQL()
	if err != nil {
		return v, &Diagnostic{Step: StepVerify, Kind: KindInvalidConfiguration, Cause: err,
			Remedy: "set setup.verify.response_format to a JSON object of questions"}
	}

	result, err = o.execute(ctx, probeSQL)
	if err != nil {
		log.WithError(err).WithField("file", probed.RelativePath).Error("extraction probe failed")
		return v, o.diagnose(StepVerify, stage.FullName(), err)
	}

	out, err := parseExtractOutput(result)
	if err != nil {
		return v, &Diagnostic{Step: StepVerify, Kind: KindExtractionFailed, Object: probed.RelativePath, Cause: err,
			Remedy: "check that the file is a readable PDF and the stage uses server-side encryption"}
	}
	v.Response = out.Response

	if opts.ResponseSchema != "" {
		for _, problem := range validateResponse(opts.ResponseSchema, out.Response) {
			warn(ctx, problem)
		}
	}

	log.WithFields(logrus.Fields{"file": probed.RelativePath, "files": len(v.Files)}).Info("extraction probe succeeded")
	return v, nil
}

// pickProbeFile returns the first listed PDF, or the first file when none
// carries a .pdf suffix
func pickProbeFile(files []StageFile) (StageFile, bool) {
	if len(files) == 0 {
		return StageFile{}, false
	}
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.RelativePath), ".pdf") {
			return f, true
		}
	}
	return files[0], true
}

func parseExtractOutput(result *snowflake.Result) (*extractOutput, error) {
	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("AI_EXTRACT returned no rows")
	}
	raw := result.Value(0, probeResultColumn)
	if raw == "" && len(result.Rows[0]) > 0 {
		raw = result.Rows[0][0]
	}

	var out extractOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("AI_EXTRACT returned an unexpected value %q: %w", raw, err)
	}
	if out.Error != nil && out.Error != "" {
		return nil, fmt.Errorf("AI_EXTRACT reported: %v", out.Error)
	}
	return &out, nil
}

// CompileResponseSchema checks that a configured response schema is usable
func CompileResponseSchema(schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid response schema: %w", err)
	}
	compiled, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("invalid response schema: %w", err)
	}
	return compiled, nil
}

// validateResponse returns schema problems with the answer. The probe already
// proved the function works, so these are warnings.
func validateResponse(schema string, response map[string]interface{}) []string {
	compiled, err := CompileResponseSchema(schema)
	if err != nil {
		return []string{err.Error()}
	}

	// round-trip so numbers are the types the validator expects
	b, err := json.Marshal(response)
	if err != nil {
		return []string{fmt.Sprintf("response could not be encoded: %v", err)}
	}
	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return []string{fmt.Sprintf("response could not be decoded: %v", err)}
	}

	if err := compiled.Validate(doc); err != nil {
		return []string{fmt.Sprintf("response does not match the configured schema: %v", err)}
	}
	return nil
}
