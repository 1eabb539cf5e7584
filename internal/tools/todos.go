package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/tasktalk/pkg/models"
)

// DefaultSearchLimit is the number of hits returned when the model gives no limit.
const DefaultSearchLimit = 5

const maxSearchLimit = 20

// TaskStore is the storage collaborator. Absent records are reported as nil.
type TaskStore interface {
	Insert(ctx context.Context, title string, description *string) (*models.Task, error)
	ListAll(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, id int64) (*models.Task, error)
	Update(ctx context.Context, id int64, u models.TaskUpdate) (*models.Task, error)
	Delete(ctx context.Context, id int64) (*models.Task, error)
}

// Index is the retrieval collaborator.
type Index interface {
	Rebuild(ctx context.Context, tasks []models.Task) error
	Query(ctx context.Context, text string, limit int) ([]models.SearchHit, error)
}

// ValidateTitle trims title and checks its length.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", ErrValidation, models.MaxTitleLength)
	}
	return title, nil
}

type todoTools struct {
	store TaskStore
	index Index
	limit int

	// searchMu keeps rebuild and query of one search together.
	searchMu sync.Mutex
}

// NewRegistry builds the registry of the five task tools.
// searchLimit <= 0 selects DefaultSearchLimit.
func NewRegistry(store TaskStore, index Index, searchLimit int) *Registry {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	t := &todoTools{store: store, index: index, limit: searchLimit}

	return newRegistry(
		Spec{
			Declaration: Declaration{
				Name: NameCreate,
				Description: "Create a new todo item. Use this when the user wants to add a new task, " +
					"create a todo, or add something to their list.",
				Params: []Param{
					{Name: "title", Type: "string", Description: "The title/name of the todo task", Required: true},
					{Name: "description", Type: "string", Description: "Optional detailed description of the task"},
				},
			},
			Action:  models.ActionCreated,
			handler: t.create,
		},
		Spec{
			Declaration: Declaration{
				Name: NameRead,
				Description: "Read and return all todos, newest first. Use this when the user wants to see " +
					"their tasks, list todos, or check what's on their list.",
			},
			Action:  models.ActionRead,
			handler: t.read,
		},
		Spec{
			Declaration: Declaration{
				Name: NameUpdate,
				Description: "Update an existing todo. Requires the todo ID and at least one field to change. " +
					"Use this when the user wants to modify, change, edit, or rename a task.",
				Params: []Param{
					{Name: "todo_id", Type: "integer", Description: "The ID of the todo to update", Required: true},
					{Name: "title", Type: "string", Description: "New title for the todo"},
					{Name: "description", Type: "string", Description: "New description for the todo"},
				},
			},
			Action:  models.ActionUpdated,
			handler: t.update,
		},
		Spec{
			Declaration: Declaration{
				Name:        NameDelete,
				Description: "Delete a todo. Use this when the user wants to remove, delete, or get rid of a task.",
				Params: []Param{
					{Name: "todo_id", Type: "integer", Description: "The ID of the todo to delete", Required: true},
				},
			},
			Action:  models.ActionDeleted,
			handler: t.delete,
		},
		Spec{
			Declaration: Declaration{
				Name: NameSearch,
				Description: "Search todos by meaning rather than exact words. Use this ONLY for semantic or " +
					"analytical questions such as \"what have I been postponing?\" or \"tasks related to exams\". " +
					"Do not use it for plain create, update, delete or list requests.",
				Params: []Param{
					{Name: "query", Type: "string", Description: "Natural language description of what to search for", Required: true},
					{Name: "limit", Type: "integer", Description: fmt.Sprintf("Maximum number of results (default %d)", searchLimit)},
				},
			},
			Action:  models.ActionSemanticSearch,
			handler: t.search,
		},
	)
}

func (t *todoTools) create(ctx context.Context, args gjson.Result) models.ToolResult {
	title, err := ValidateTitle(args.Get("title").String())
	if err != nil {
		return failure(models.ActionCreated, models.CodeValidation, "Failed to create todo: "+strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	}

	task, err := t.store.Insert(ctx, title, optionalString(args, "description"))
	if err != nil {
		return failure(models.ActionCreated, models.CodeStorage, fmt.Sprintf("Failed to create todo: %v", err))
	}

	return models.ToolResult{
		Success: true,
		Action:  models.ActionCreated,
		Task:    task,
		Message: fmt.Sprintf("Successfully created todo: '%s'", task.Title),
	}
}

func (t *todoTools) read(ctx context.Context, _ gjson.Result) models.ToolResult {
	tasks, err := t.store.ListAll(ctx)
	if err != nil {
		return failure(models.ActionRead, models.CodeStorage, fmt.Sprintf("Failed to read todos: %v", err))
	}

	return models.ToolResult{
		Success: true,
		Action:  models.ActionRead,
		Tasks:   tasks,
		Count:   len(tasks),
		Message: fmt.Sprintf("Found %d todo(s)", len(tasks)),
	}
}

func (t *todoTools) update(ctx context.Context, args gjson.Result) models.ToolResult {
	id, ok := todoID(args)
	if !ok {
		return failure(models.ActionUpdated, models.CodeValidation, "Failed to update todo: todo_id must be a positive integer")
	}

	var u models.TaskUpdate
	if args.Get("title").Exists() && args.Get("title").Type != gjson.Null {
		title, err := ValidateTitle(args.Get("title").String())
		if err != nil {
			return failure(models.ActionUpdated, models.CodeValidation, "Failed to update todo: "+strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
		}
		u.Title = &title
	}
	u.Description = optionalString(args, "description")

	task, err := t.store.Update(ctx, id, u)
	if err != nil {
		return failure(models.ActionUpdated, models.CodeStorage, fmt.Sprintf("Failed to update todo: %v", err))
	}
	if task == nil {
		return failure(models.ActionUpdated, models.CodeNotFound, fmt.Sprintf("No todo found with ID %d", id))
	}

	msg := fmt.Sprintf("Successfully updated todo ID %d", id)
	if u.Empty() {
		msg = fmt.Sprintf("No changes requested for todo ID %d", id)
	}
	return models.ToolResult{
		Success: true,
		Action:  models.ActionUpdated,
		Task:    task,
		Message: msg,
	}
}

func (t *todoTools) delete(ctx context.Context, args gjson.Result) models.ToolResult {
	id, ok := todoID(args)
	if !ok {
		return failure(models.ActionDeleted, models.CodeValidation, "Failed to delete todo: todo_id must be a positive integer")
	}

	task, err := t.store.Delete(ctx, id)
	if err != nil {
		return failure(models.ActionDeleted, models.CodeStorage, fmt.Sprintf("Failed to delete todo: %v", err))
	}
	if task == nil {
		return failure(models.ActionDeleted, models.CodeNotFound, fmt.Sprintf("No todo found with ID %d", id))
	}

	return models.ToolResult{
		Success:      true,
		Action:       models.ActionDeleted,
		DeletedID:    task.ID,
		DeletedTitle: task.Title,
		Message:      fmt.Sprintf("Successfully deleted todo: '%s' (ID: %d)", task.Title, task.ID),
	}
}

func (t *todoTools) search(ctx context.Context, args gjson.Result) models.ToolResult {
	query := strings.TrimSpace(args.Get("query").String())
	if query == "" {
		return failure(models.ActionSemanticSearch, models.CodeValidation, "Semantic search failed: query must not be empty")
	}

	limit := t.limit
	if l := args.Get("limit"); l.Exists() && l.Int() > 0 {
		limit = int(l.Int())
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	t.searchMu.Lock()
	defer t.searchMu.Unlock()

	tasks, err := t.store.ListAll(ctx)
	if err != nil {
		return failure(models.ActionSemanticSearch, models.CodeStorage, fmt.Sprintf("Semantic search failed: %v", err))
	}
	if err := t.index.Rebuild(ctx, tasks); err != nil {
		return failure(models.ActionSemanticSearch, models.CodeIndexUnavailable, fmt.Sprintf("Semantic search failed: %v", err))
	}
	hits, err := t.index.Query(ctx, query, limit)
	if err != nil {
		return failure(models.ActionSemanticSearch, models.CodeIndexUnavailable, fmt.Sprintf("Semantic search failed: %v", err))
	}

	msg := fmt.Sprintf("Found %d relevant todo(s)", len(hits))
	if len(hits) == 0 {
		msg = "No matching todos found"
	}
	return models.ToolResult{
		Success: true,
		Action:  models.ActionSemanticSearch,
		Query:   query,
		Results: hits,
		Count:   len(hits),
		Message: msg,
	}
}

// todoID reads todo_id, accepting numbers and numeric strings.
func todoID(args gjson.Result) (int64, bool) {
	v := args.Get("todo_id")
	if !v.Exists() {
		return 0, false
	}
	switch v.Type {
	case gjson.Number:
		if v.Num != float64(int64(v.Num)) {
			return 0, false
		}
	case gjson.String:
		if _, err := fmt.Sscanf(strings.TrimSpace(v.Str), "%d", new(int64)); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	id := v.Int()
	return id, id > 0
}

func optionalString(args gjson.Result, key string) *string {
	v := args.Get(key)
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	return &s
}
