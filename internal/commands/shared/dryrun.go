// Copyright 2025 Rowboat Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"fmt"
	"strings"
)

// PlanAction labels one planned document change.
type PlanAction string

const (
	// PlanCreate indicates an entity would be created.
	PlanCreate PlanAction = "CREATE"
	// PlanModify indicates an entity would be modified.
	PlanModify PlanAction = "MODIFY"
	// PlanSkip indicates a change that would not be applied.
	PlanSkip PlanAction = "SKIP"
)

// DryRunPlan collects the changes a command would make without making them.
type DryRunPlan struct {
	lines []string
}

// NewDryRunPlan creates an empty plan.
func NewDryRunPlan() *DryRunPlan {
	return &DryRunPlan{}
}

// Create records an entity that would be created.
func (d *DryRunPlan) Create(kind, name string) {
	d.lines = append(d.lines, fmt.Sprintf("%s: %s %s", PlanCreate, kind, name))
}

// Modify records the fields of an entity that would change.
func (d *DryRunPlan) Modify(kind, name string, fields []string) {
	d.lines = append(d.lines, fmt.Sprintf("%s: %s %s (%s)", PlanModify, kind, name, strings.Join(fields, ", ")))
}

// Skip records a change that would not be applied and why.
func (d *DryRunPlan) Skip(kind, name, reason string) {
	d.lines = append(d.lines, fmt.Sprintf("%s: %s %s (%s)", PlanSkip, kind, name, reason))
}

// Len returns the number of recorded lines.
func (d *DryRunPlan) Len() int {
	return len(d.lines)
}

// String formats the plan:
//
//	Dry run: the following changes would be made:
//
//	CREATE: tool send_email
//	MODIFY: agent Router (instructions)
//
//	Run without --dry-run to apply.
func (d *DryRunPlan) String() string {
	if len(d.lines) == 0 {
		return "Dry run: no changes would be made.\n"
	}
	var b strings.Builder
	b.WriteString("Dry run: the following changes would be made:\n\n")
	for _, line := range d.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nRun without --dry-run to apply.\n")
	return b.String()
}
