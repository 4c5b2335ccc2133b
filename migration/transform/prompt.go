/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transform

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/cloudwego/tuxmigrate/migration"
)

//go:embed templates/system.md
var SystemPrompt string

//go:embed templates/migrate.md
var migrateTemplateText string

//go:embed templates/fix.md
var fixTemplateText string

var (
	migrateTpl = template.Must(template.New("migrate").Parse(migrateTemplateText))
	fixTpl     = template.Must(template.New("fix").Parse(fixTemplateText))
)

type migratePromptData struct {
	Component string
	Code      string
	Guide     string
}

type fixPromptData struct {
	StepName   string
	Attempt    int
	Code       string
	ErrorsJSON string
	// Omitted counts errors dropped by the fix error limit.
	Omitted int
	Focus   string
}

// stepPresentation holds the human-facing name and fix focus per step type.
var stepPresentation = map[migration.StepType]struct {
	Name  string
	Focus string
}{
	migration.StepESLint: {
		Name: "ESLint",
		Focus: "Please fix ONLY these specific lint errors in the code while preserving the functionality.\n" +
			"Do not introduce new issues or change unrelated code.",
	},
	migration.StepTypeScript: {
		Name: "TypeScript",
		Focus: "Please fix ONLY these specific TypeScript errors in the code while preserving the functionality.\n" +
			"Focus on fixing type issues, adding proper type annotations, and ensuring type safety.\n" +
			"Do not introduce new issues or change unrelated code.",
	},
	migration.StepBuild: {
		Name: "Build",
		Focus: "Please fix ONLY these specific build errors in the code while preserving the functionality.\n" +
			"Focus on fixing issues that prevent successful compilation during the build process.\n" +
			"Do not introduce new issues or change unrelated code.",
	},
}

func stepName(t migration.StepType) string {
	if p, ok := stepPresentation[t]; ok {
		return p.Name
	}
	return string(t)
}

func stepFocus(t migration.StepType) string {
	if p, ok := stepPresentation[t]; ok {
		return p.Focus
	}
	return "Please fix the " + string(t) + " errors in the code while preserving the functionality."
}

func renderTemplate(tpl *template.Template, data any) string {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		// Templates are embedded and data is plain strings; execution cannot
		// fail at runtime unless the template itself is broken.
		panic(err)
	}
	return buf.String()
}
