// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes quill's post store for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/frontmatter"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/postservice"
)

// PostFormatURI names the post format resource.
const PostFormatURI = "quill://post-format"

// Server wraps the MCP server with quill tools.
type Server struct {
	mcp   *server.MCPServer
	posts *postservice.Service
}

// New creates a new MCP server with all quill tools registered.
func New(posts *postservice.Service) *Server {
	s := &Server{posts: posts}

	s.mcp = server.NewMCPServer(
		"Quill",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List all blog posts, newest first, without their bodies."),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("get_post",
		mcp.WithDescription("Read a blog post, metadata and Markdown body, by slug."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Post slug (file name without .md)")),
	), s.getPost)

	createOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Create a blog post. The slug is derived from the title. " +
			"Read the format first via get_post_format or the " + PostFormatURI + " resource."),
	}, postFields(true)...)
	s.mcp.AddTool(mcp.NewTool("create_post", createOpts...), s.createPost)

	updateOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Rewrite an existing blog post. Every field is replaced; " +
			"the original publish date is kept."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of the post to update")),
	}, postFields(false)...)
	s.mcp.AddTool(mcp.NewTool("update_post", updateOpts...), s.updatePost)

	diffOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Preview update_post: returns the unified diff of the post file without writing."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of the post to compare")),
	}, postFields(false)...)
	s.mcp.AddTool(mcp.NewTool("diff_post", diffOpts...), s.diffPost)

	s.mcp.AddTool(mcp.NewTool("delete_post",
		mcp.WithDescription("Delete a blog post file."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of the post to delete")),
	), s.deletePost)

	s.mcp.AddTool(mcp.NewTool("get_post_format",
		mcp.WithDescription("Returns the post file format: frontmatter fields, defaults and slug rules. "+
			"Call this before creating or updating posts."),
	), s.getPostFormat)

	s.mcp.AddResource(
		mcp.NewResource(PostFormatURI, "Post Format",
			mcp.WithResourceDescription("Markdown file format every blog post is stored in."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

func postFields(create bool) []mcp.ToolOption {
	desc := mcp.Description("Post title")
	if create {
		desc = mcp.Description("Post title; also the source of the slug")
	}
	return []mcp.ToolOption{
		mcp.WithString("title", mcp.Required(), desc),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithString("author", mcp.Description("Author name (defaults to the configured author)")),
		mcp.WithString("excerpt", mcp.Description("Short summary")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("categories", mcp.Description("Comma-separated categories")),
		mcp.WithString("image", mcp.Description("Cover image URL")),
		mcp.WithString("metaDescription", mcp.Description("SEO description (defaults to the excerpt)")),
	}
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// postInput reads the shared post fields from req.
func postInput(req mcp.CallToolRequest) (models.PostInput, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return models.PostInput{}, err
	}
	content, err := req.RequireString("content")
	if err != nil {
		return models.PostInput{}, err
	}
	return models.PostInput{
		Title:           title,
		Content:         content,
		Author:          req.GetString("author", ""),
		Excerpt:         req.GetString("excerpt", ""),
		Tags:            frontmatter.SplitList(req.GetString("tags", "")),
		Categories:      frontmatter.SplitList(req.GetString("categories", "")),
		Image:           req.GetString("image", ""),
		MetaDescription: req.GetString("metaDescription", ""),
	}, nil
}

// toolError turns a service error into a tool-level error result.
func toolError(slug string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("post not found: %s", slug))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("post already exists: %s", slug))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("post changed concurrently, retry: %s", slug))
	}
	return mcp.NewToolResultError(err.Error())
}

type postSummary struct {
	Slug   string   `json:"slug"`
	Title  string   `json:"title"`
	Date   string   `json:"date"`
	Author string   `json:"author"`
	Tags   []string `json:"tags"`
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]postSummary, len(posts))
	for i, p := range posts {
		out[i] = postSummary{Slug: p.Slug, Title: p.Title, Date: p.Date, Author: p.Author, Tags: p.Tags}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.posts.GetPost(ctx, slug)
	if err != nil {
		return toolError(slug, err), nil
	}
	if post == nil {
		return toolError(slug, apperr.ErrNotFound), nil
	}
	data, _ := json.MarshalIndent(post, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := postInput(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.posts.CreatePost(ctx, in)
	if err != nil {
		return toolError(postservice.Slugify(in.Title), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", res.Slug)), nil
}

func (s *Server) updatePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in, err := postInput(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.posts.UpdatePost(ctx, slug, in); err != nil {
		return toolError(slug, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", slug)), nil
}

func (s *Server) diffPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in, err := postInput(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	diff, err := s.posts.DiffPost(ctx, slug, in)
	if err != nil {
		return toolError(slug, err), nil
	}
	if diff == "" {
		return mcp.NewToolResultText("no changes"), nil
	}
	return mcp.NewToolResultText(diff), nil
}

func (s *Server) deletePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.posts.DeletePost(ctx, slug); err != nil {
		return toolError(slug, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", slug)), nil
}

func (s *Server) getPostFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PostFormatURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
