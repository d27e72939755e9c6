package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nwthomas/deep-learning-research-agent/internal/llm"
)

// Built-in tool names.
const (
	ToolLs         = "ls"
	ToolReadFile   = "read_file"
	ToolWriteFile  = "write_file"
	ToolWriteTodos = "write_todos"
	ToolThink      = "think_tool"
	ToolTask       = "task"
)

const defaultReadLimit = 2000

// BuiltinTools returns the fixed capability set over the virtual file
// system and todo list.
func BuiltinTools() []Tool {
	return []Tool{lsTool(), readFileTool(), writeFileTool(), writeTodosTool(), thinkTool()}
}

func lsTool() Tool {
	return NewFuncTool(llm.ToolSpec{
		Name:        ToolLs,
		Description: "List all files in the virtual file system.",
		Parameters:  objectSchema(nil, nil),
	}, func(_ context.Context, inv Invocation) (ToolResult, error) {
		names := make([]string, 0, len(inv.State.Files))
		for name := range inv.State.Files {
			names = append(names, name)
		}
		slices.Sort(names)
		return ToolResult{Output: fmt.Sprintf("%v", names)}, nil
	})
}

func readFileTool() Tool {
	return NewFuncTool(llm.ToolSpec{
		Name:        ToolReadFile,
		Description: "Read a file from the virtual file system with line numbers.",
		Parameters: objectSchema([]string{"file_path"}, map[string]*llm.Schema{
			"file_path": stringProp("Path of the file to read."),
			"offset":    {Type: "integer", Description: "Line to start reading from."},
			"limit":     {Type: "integer", Description: "Maximum number of lines to read."},
		}),
	}, func(_ context.Context, inv Invocation) (ToolResult, error) {
		path, err := stringArg(ToolReadFile, inv.Call.Args, "file_path")
		if err != nil {
			return ToolResult{}, err
		}
		offset, err := intArg(ToolReadFile, inv.Call.Args, "offset", 0)
		if err != nil {
			return ToolResult{}, err
		}
		limit, err := intArg(ToolReadFile, inv.Call.Args, "limit", defaultReadLimit)
		if err != nil {
			return ToolResult{}, err
		}

		content, ok := inv.State.Files[path]
		if !ok {
			return ToolResult{}, inputErrorf(ToolReadFile, "File '%s' not found", path)
		}
		if strings.TrimSpace(content) == "" {
			return ToolResult{Output: "System reminder: File exists but has empty contents"}, nil
		}

		lines := strings.Split(content, "\n")
		if offset < 0 {
			offset = 0
		}
		if offset >= len(lines) {
			return ToolResult{}, inputErrorf(ToolReadFile, "Line offset %d exceeds file length (%d lines)", offset, len(lines))
		}
		end := min(offset+max(limit, 0), len(lines))

		var b strings.Builder
		for i := offset; i < end; i++ {
			if i > offset {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%6d\t%s", i+1, lines[i])
		}
		return ToolResult{Output: b.String()}, nil
	})
}

func writeFileTool() Tool {
	return NewFuncTool(llm.ToolSpec{
		Name:        ToolWriteFile,
		Description: "Write content to a file in the virtual file system.",
		Parameters: objectSchema([]string{"file_path", "content"}, map[string]*llm.Schema{
			"file_path": stringProp("Path of the file to write."),
			"content":   stringProp("Full file content."),
		}),
	}, func(_ context.Context, inv Invocation) (ToolResult, error) {
		path, err := stringArg(ToolWriteFile, inv.Call.Args, "file_path")
		if err != nil {
			return ToolResult{}, err
		}
		content, err := stringArg(ToolWriteFile, inv.Call.Args, "content")
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{
			Output: fmt.Sprintf("Updated file %s", path),
			Files:  map[string]string{path: content},
		}, nil
	})
}

func writeTodosTool() Tool {
	return NewFuncTool(llm.ToolSpec{
		Name:        ToolWriteTodos,
		Description: "Replace the todo list used to plan and track research progress.",
		Parameters: objectSchema([]string{"todos"}, map[string]*llm.Schema{
			"todos": {
				Type: "array",
				Items: objectSchema([]string{"content", "status"}, map[string]*llm.Schema{
					"content": stringProp("Short description of the task."),
					"status":  stringProp("One of pending, in_progress, completed."),
				}),
			},
		}),
	}, func(_ context.Context, inv Invocation) (ToolResult, error) {
		raw, ok := inv.Call.Args["todos"].([]any)
		if !ok {
			return ToolResult{}, inputErrorf(ToolWriteTodos, "argument \"todos\" must be a list")
		}

		todos := make([]Todo, 0, len(raw))
		for i, item := range raw {
			obj, ok := item.(map[string]any)
			if !ok {
				return ToolResult{}, inputErrorf(ToolWriteTodos, "todo %d must be an object", i)
			}
			content, _ := obj["content"].(string)
			status, _ := obj["status"].(string)
			switch TodoStatus(status) {
			case TodoPending, TodoInProgress, TodoCompleted:
			default:
				return ToolResult{}, inputErrorf(ToolWriteTodos, "todo %d has invalid status %q", i, status)
			}
			todos = append(todos, Todo{Content: content, Status: TodoStatus(status)})
		}

		return ToolResult{
			Output: fmt.Sprintf("Updated todo list to %v", todos),
			Todos:  todos,
		}, nil
	})
}

func thinkTool() Tool {
	return NewFuncTool(llm.ToolSpec{
		Name:        ToolThink,
		Description: "Record a reflection on research progress and decide next steps.",
		Parameters: objectSchema([]string{"reflection"}, map[string]*llm.Schema{
			"reflection": stringProp("Your reflection on progress, gaps and next steps."),
		}),
	}, func(_ context.Context, inv Invocation) (ToolResult, error) {
		reflection, err := stringArg(ToolThink, inv.Call.Args, "reflection")
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Output: "Reflection recorded: " + reflection}, nil
	})
}
