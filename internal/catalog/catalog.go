// Package catalog holds the static registry of securable items and their
// operations. The catalog is resolved once at process start and shared
// read-only; consumers receive deep copies they may annotate freely.
package catalog

import "fmt"

// OperationRef names one operation on one securable item.
type OperationRef struct {
	Item      string `json:"item"`
	Operation string `json:"operation"`
}

// Operation is one permissible action on a securable item. Status is false
// in the master catalog; it only carries meaning when an item list reports
// or submits a role's current grants. Prerequisites are validation guidance
// for clients editing a permission matrix, never enforced by the checker.
type Operation struct {
	ShortName     string         `json:"shortName"`
	Description   string         `json:"description"`
	Status        bool           `json:"status"`
	Prerequisites []OperationRef `json:"prerequisites,omitempty"`
}

// Item is a protected resource category owning an ordered operation list.
type Item struct {
	ShortName   string      `json:"shortName"`
	Description string      `json:"description"`
	Operations  []Operation `json:"operations"`
}

// Provider exposes the two independent catalogs.
type Provider interface {
	GlobalItems() []Item
	WorkspaceItems() []Item
}

// Securable item short names.
const (
	ItemUser      = "user"
	ItemRole      = "role"
	ItemAuditLog  = "auditlog"
	ItemOptions   = "options"
	ItemWorkspace = "workspace"
	ItemWSRole    = "wsrole"
)

// Operation short names.
const (
	OpView    = "view"
	OpAdd     = "add"
	OpModify  = "modify"
	OpDelete  = "delete"
	OpAssign  = "assign"
	OpModUser = "moduser"
)

type static struct {
	global    []Item
	workspace []Item
}

func (s *static) GlobalItems() []Item    { return cloneItems(s.global) }
func (s *static) WorkspaceItems() []Item { return cloneItems(s.workspace) }

// Base returns the fixed application catalog.
func Base() Provider {
	return &static{
		global: []Item{
			{
				ShortName:   ItemUser,
				Description: "User accounts",
				Operations: []Operation{
					{ShortName: OpView, Description: "View users"},
					{ShortName: OpAdd, Description: "Create users"},
					{ShortName: OpModify, Description: "Modify users", Prerequisites: []OperationRef{{Item: ItemUser, Operation: OpView}}},
					{ShortName: OpDelete, Description: "Delete users", Prerequisites: []OperationRef{{Item: ItemUser, Operation: OpView}}},
				},
			},
			{
				ShortName:   ItemRole,
				Description: "Global roles",
				Operations: []Operation{
					{ShortName: OpView, Description: "View roles"},
					{ShortName: OpAdd, Description: "Create roles"},
					{ShortName: OpModify, Description: "Modify roles", Prerequisites: []OperationRef{{Item: ItemRole, Operation: OpView}}},
					{ShortName: OpDelete, Description: "Delete roles", Prerequisites: []OperationRef{{Item: ItemRole, Operation: OpView}}},
					{ShortName: OpAssign, Description: "Assign roles to users", Prerequisites: []OperationRef{{Item: ItemRole, Operation: OpView}}},
				},
			},
			{
				ShortName:   ItemAuditLog,
				Description: "Audit log",
				Operations: []Operation{
					{ShortName: OpView, Description: "View audit entries"},
				},
			},
			{
				ShortName:   ItemOptions,
				Description: "Global options",
				Operations: []Operation{
					{ShortName: OpView, Description: "View global options"},
					{ShortName: OpModify, Description: "Modify global options", Prerequisites: []OperationRef{{Item: ItemOptions, Operation: OpView}}},
				},
			},
			{
				ShortName:   ItemWorkspace,
				Description: "Workspace creation",
				Operations: []Operation{
					{ShortName: OpAdd, Description: "Create workspaces"},
				},
			},
		},
		workspace: []Item{
			{
				ShortName:   ItemWorkspace,
				Description: "Workspace settings",
				Operations: []Operation{
					{ShortName: OpView, Description: "View workspace settings"},
					{ShortName: OpModify, Description: "Modify workspace settings", Prerequisites: []OperationRef{{Item: ItemWorkspace, Operation: OpView}}},
					{ShortName: OpDelete, Description: "Delete the workspace"},
					{ShortName: OpModUser, Description: "Manage workspace members", Prerequisites: []OperationRef{{Item: ItemWorkspace, Operation: OpView}}},
				},
			},
			{
				ShortName:   ItemWSRole,
				Description: "Workspace roles",
				Operations: []Operation{
					{ShortName: OpView, Description: "View workspace roles"},
					{ShortName: OpAdd, Description: "Create workspace roles"},
					{ShortName: OpModify, Description: "Modify workspace roles", Prerequisites: []OperationRef{{Item: ItemWSRole, Operation: OpView}}},
					{ShortName: OpDelete, Description: "Delete workspace roles", Prerequisites: []OperationRef{{Item: ItemWSRole, Operation: OpView}}},
					{ShortName: OpAssign, Description: "Assign workspace roles", Prerequisites: []OperationRef{{Item: ItemWSRole, Operation: OpView}}},
				},
			},
		},
	}
}

// Compose merges base with extension providers, appending extension items
// after the base entries. Base entries are always preserved. It fails on a
// duplicate item short name within a catalog scope or on a prerequisite
// that names no catalog entry. Prerequisite cycles are not detected.
func Compose(base Provider, extensions ...Provider) (Provider, error) {
	global := cloneItems(base.GlobalItems())
	workspace := cloneItems(base.WorkspaceItems())
	for _, ext := range extensions {
		var err error
		if global, err = appendItems(global, ext.GlobalItems()); err != nil {
			return nil, fmt.Errorf("catalog: global scope: %w", err)
		}
		if workspace, err = appendItems(workspace, ext.WorkspaceItems()); err != nil {
			return nil, fmt.Errorf("catalog: workspace scope: %w", err)
		}
	}
	if err := validatePrerequisites(global); err != nil {
		return nil, fmt.Errorf("catalog: global scope: %w", err)
	}
	if err := validatePrerequisites(workspace); err != nil {
		return nil, fmt.Errorf("catalog: workspace scope: %w", err)
	}
	return &static{global: global, workspace: workspace}, nil
}

// Extension builds a Provider from literal item lists, for application
// specific additions composed on top of Base.
func Extension(global, workspace []Item) Provider {
	return &static{global: cloneItems(global), workspace: cloneItems(workspace)}
}

// Contains reports whether the item/operation pair exists in the list.
func Contains(items []Item, item, operation string) bool {
	for _, it := range items {
		if it.ShortName != item {
			continue
		}
		for _, op := range it.Operations {
			if op.ShortName == operation {
				return true
			}
		}
	}
	return false
}

func appendItems(existing, added []Item) ([]Item, error) {
	seen := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		seen[it.ShortName] = struct{}{}
	}
	for _, it := range added {
		if _, dup := seen[it.ShortName]; dup {
			return nil, fmt.Errorf("duplicate securable item %q", it.ShortName)
		}
		seen[it.ShortName] = struct{}{}
		existing = append(existing, cloneItem(it))
	}
	return existing, nil
}

func validatePrerequisites(items []Item) error {
	for _, it := range items {
		for _, op := range it.Operations {
			for _, pre := range op.Prerequisites {
				if !Contains(items, pre.Item, pre.Operation) {
					return fmt.Errorf("operation %s:%s references unknown prerequisite %s:%s",
						it.ShortName, op.ShortName, pre.Item, pre.Operation)
				}
			}
		}
	}
	return nil
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = cloneItem(it)
	}
	return out
}

func cloneItem(it Item) Item {
	ops := make([]Operation, len(it.Operations))
	for i, op := range it.Operations {
		ops[i] = op
		if len(op.Prerequisites) > 0 {
			ops[i].Prerequisites = append([]OperationRef(nil), op.Prerequisites...)
		}
	}
	it.Operations = ops
	return it
}
