// Package mcpserver exposes the revision engine as MCP tools so agent hosts
// can build forms over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kayz/formforge/internal/engine"
	"github.com/kayz/formforge/internal/form"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "formforge"
	ServerVersion = "0.3.0"

	// All MCP callers share one logical form, like the CLI loop.
	mcpSession = "mcp"
)

// New builds the MCP server over the given session store.
func New(sessions *engine.SessionStore) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))

	s.AddTool(
		mcp.NewTool("get_form",
			mcp.WithDescription("Return the current form schema as JSON."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(sessions.Form(mcpSession).JSON()), nil
		},
	)

	s.AddTool(
		mcp.NewTool("revise_form",
			mcp.WithDescription("Apply a natural-language instruction to the current form, e.g. 'add a required email field'. Returns the updated form."),
			mcp.WithString("instruction", mcp.Required(),
				mcp.Description("What to change about the form")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			instruction, _ := req.Params.Arguments["instruction"].(string)
			if instruction == "" {
				return mcp.NewToolResultError("instruction is required"), nil
			}
			rev, err := sessions.Revise(ctx, mcpSession, instruction)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("revision failed: %v", err)), nil
			}
			payload, err := json.Marshal(rev)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(string(payload)), nil
		},
	)

	s.AddTool(
		mcp.NewTool("reset_form",
			mcp.WithDescription("Discard every field and start from an empty form."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessions.Reset(mcpSession)
			return mcp.NewToolResultText(`{"fields":[]}`), nil
		},
	)

	s.AddTool(
		mcp.NewTool("delete_field",
			mcp.WithDescription("Remove one field by name without calling the model."),
			mcp.WithString("name", mcp.Required(),
				mcp.Description("The snake_case field name to remove")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, _ := req.Params.Arguments["name"].(string)
			if name == "" {
				return mcp.NewToolResultError("name is required"), nil
			}
			updated, err := sessions.DeleteField(mcpSession, name)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(updated.JSON()), nil
		},
	)

	s.AddTool(
		mcp.NewTool("put_field",
			mcp.WithDescription("Create or replace one field directly from a JSON definition, bypassing the model."),
			mcp.WithString("name", mcp.Required(),
				mcp.Description("The snake_case field name to create or replace")),
			mcp.WithString("definition", mcp.Required(),
				mcp.Description(`Field JSON, e.g. {"name":"email","label":"Email","type":"email","required":true}`)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, _ := req.Params.Arguments["name"].(string)
			definition, _ := req.Params.Arguments["definition"].(string)
			var def form.Field
			if err := json.Unmarshal([]byte(definition), &def); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid field definition: %v", err)), nil
			}
			updated, err := sessions.PutField(mcpSession, name, def)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(updated.JSON()), nil
		},
	)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
