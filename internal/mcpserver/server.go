// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Lynx search tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/lynx/internal/apperr"
	"github.com/starford/lynx/internal/contentservice"
	"github.com/starford/lynx/internal/eventservice"
	"github.com/starford/lynx/internal/filter"
	"github.com/starford/lynx/internal/models"
)

const referenceURI = "lynx://filter-reference"

// OrgLookup finds orgs by id or slug.
type OrgLookup interface {
	Org(ctx context.Context, id int64) (*models.Org, error)
	OrgBySlug(ctx context.Context, slug string) (*models.Org, error)
}

// Server wraps the MCP server with Lynx tools.
type Server struct {
	mcp     *server.MCPServer
	content *contentservice.Service
	events  *eventservice.Service
	orgs    OrgLookup
}

// New creates a new MCP server with all Lynx tools registered.
func New(content *contentservice.Service, events *eventservice.Service, orgs OrgLookup) *Server {
	s := &Server{content: content, events: events, orgs: orgs}

	s.mcp = server.NewMCPServer(
		"Lynx",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	orgArg := mcp.WithString("org", mcp.Required(), mcp.Description("Org id or slug"))
	filtersArg := mcp.WithString("filters",
		mcp.Description("Extra filters as a URL query string; see "+referenceURI))

	s.mcp.AddTool(mcp.NewTool("search_content",
		mcp.WithDescription("Search an org's content items. Returns one page of items, "+
			"the total match count, and any requested facets."),
		orgArg,
		mcp.WithString("query", mcp.Description("Full-text query")),
		filtersArg,
	), s.searchContent)

	s.mcp.AddTool(mcp.NewTool("get_content_item",
		mcp.WithDescription("Read one content item."),
		orgArg,
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Content item id")),
		mcp.WithBoolean("incl_body", mcp.Description("Include the item body")),
	), s.getContentItem)

	s.mcp.AddTool(mcp.NewTool("search_events",
		mcp.WithDescription("Search an org's events. Only pending events are returned "+
			"unless a status is given."),
		orgArg,
		mcp.WithString("query", mcp.Description("Full-text query")),
		mcp.WithString("status", mcp.Description("Event status"),
			mcp.Enum(append([]string{models.All}, models.EventStatuses...)...)),
		filtersArg,
	), s.searchEvents)

	s.mcp.AddTool(mcp.NewTool("get_event",
		mcp.WithDescription("Read one event with its tag, thing and content item ids."),
		orgArg,
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Event id")),
	), s.getEvent)

	s.mcp.AddTool(mcp.NewTool("list_facets",
		mcp.WithDescription("List the facets a search can request."),
		mcp.WithString("entity", mcp.Required(), mcp.Enum("content", "events"),
			mcp.Description("Which search the facets belong to")),
	), s.listFacets)

	s.mcp.AddResource(
		mcp.NewResource(referenceURI, "Filter Reference",
			mcp.WithResourceDescription("Parameters accepted by the search tools' filters argument."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFilterReference,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) org(ctx context.Context, req mcp.CallToolRequest) (*models.Org, error) {
	ref, err := req.RequireString("org")
	if err != nil {
		return nil, err
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.orgs.Org(ctx, id)
	}
	return s.orgs.OrgBySlug(ctx, ref)
}

// query merges the filters argument with the named scalar arguments.
func query(req mcp.CallToolRequest, args ...string) (url.Values, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(req.GetString("filters", ""), "?"))
	if err != nil {
		return nil, apperr.Validation("filters: %s", err.Error())
	}
	for _, arg := range args {
		if v := req.GetString(arg, ""); v != "" {
			key := arg
			if arg == "query" {
				key = "q"
			}
			q.Set(key, v)
		}
	}
	return q, nil
}

func toolResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(apperr.Message(err, err.Error())), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

type searchResult struct {
	Items  any            `json:"items"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Facets map[string]any `json:"facets,omitempty"`
}

func (s *Server) searchContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	org, err := s.org(ctx, req)
	if err != nil {
		return toolResult(nil, err)
	}
	q, err := query(req, "query")
	if err != nil {
		return toolResult(nil, err)
	}
	p, err := filter.ContentParamsFromQuery(org.ID, q)
	if err != nil {
		return toolResult(nil, err)
	}
	res, err := s.content.Search(ctx, p)
	if err != nil {
		return toolResult(nil, err)
	}
	return toolResult(searchResult{Items: res.Items, Total: res.Total, Page: res.Page, Facets: res.Facets}, nil)
}

func (s *Server) getContentItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	org, err := s.org(ctx, req)
	if err != nil {
		return toolResult(nil, err)
	}
	id, err := req.RequireInt("id")
	if err != nil {
		return toolResult(nil, err)
	}
	return toolResult(s.content.Get(ctx, org.ID, int64(id), req.GetBool("incl_body", false)))
}

func (s *Server) searchEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	org, err := s.org(ctx, req)
	if err != nil {
		return toolResult(nil, err)
	}
	q, err := query(req, "query", "status")
	if err != nil {
		return toolResult(nil, err)
	}
	p, err := filter.EventParamsFromQuery(org.ID, q)
	if err != nil {
		return toolResult(nil, err)
	}
	res, err := s.events.Search(ctx, p)
	if err != nil {
		return toolResult(nil, err)
	}
	return toolResult(searchResult{Items: res.Items, Total: res.Total, Page: res.Page, Facets: res.Facets}, nil)
}

func (s *Server) getEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	org, err := s.org(ctx, req)
	if err != nil {
		return toolResult(nil, err)
	}
	id, err := req.RequireInt("id")
	if err != nil {
		return toolResult(nil, err)
	}
	return toolResult(s.events.Get(ctx, org.ID, int64(id)))
}

func (s *Server) listFacets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity, err := req.RequireString("entity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch entity {
	case "content":
		return mcp.NewToolResultText(strings.Join(s.content.FacetNames(), "\n")), nil
	case "events":
		return mcp.NewToolResultText(strings.Join(s.events.FacetNames(), "\n")), nil
	}
	return mcp.NewToolResultError(`entity must be "content" or "events"`), nil
}

func (s *Server) readFilterReference(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      referenceURI,
			MIMEType: "text/markdown",
			Text:     FilterReference,
		},
	}, nil
}
