package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/quill/internal/postservice"
	"github.com/starford/quill/internal/storage"
	"github.com/starford/quill/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.FakeGitHub) {
	t.Helper()

	fake := testutil.NewFakeGitHub(t)
	gh, err := storage.NewGitHub(storage.GitHubConfig{
		APIURL:     fake.URL(),
		Owner:      fake.Owner,
		Repo:       fake.Repo,
		Token:      fake.Token,
		HTTPClient: fake.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	posts := postservice.New(gh, postservice.Config{Now: func() time.Time { return now }})
	return New(posts), fake
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_posts":
		result, err = srv.listPosts(ctx, req)
	case "get_post":
		result, err = srv.getPost(ctx, req)
	case "create_post":
		result, err = srv.createPost(ctx, req)
	case "update_post":
		result, err = srv.updatePost(ctx, req)
	case "diff_post":
		result, err = srv.diffPost(ctx, req)
	case "delete_post":
		result, err = srv.deletePost(ctx, req)
	case "get_post_format":
		result, err = srv.getPostFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndGetPost(t *testing.T) {
	srv, fake := testServer(t)

	r := callTool(t, srv, "create_post", map[string]any{
		"title":   "Hello, World!",
		"content": "# Hi\nthere",
		"tags":    "go, mcp",
	})
	if text := resultText(r); text != "created: hello-world" {
		t.Fatalf("create result = %q", text)
	}
	content, ok := fake.File("posts/hello-world.md")
	if !ok || !strings.Contains(content, `tags: ["go", "mcp"]`) {
		t.Errorf("stored file = %q", content)
	}

	r = callTool(t, srv, "get_post", map[string]any{"slug": "hello-world"})
	var post struct {
		Title   string   `json:"title"`
		Tags    []string `json:"tags"`
		Content string   `json:"content"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	if post.Title != "Hello, World!" || post.Content != "# Hi\nthere" || len(post.Tags) != 2 {
		t.Errorf("post = %+v", post)
	}

	r = callTool(t, srv, "create_post", map[string]any{"title": "Hello World", "content": "again"})
	if !r.IsError || !strings.Contains(resultText(r), "already exists") {
		t.Errorf("duplicate create = %q", resultText(r))
	}
}

func TestCreatePost_MissingArgs(t *testing.T) {
	srv, fake := testServer(t)
	r := callTool(t, srv, "create_post", map[string]any{"title": "No body"})
	if !r.IsError {
		t.Error("expected error without content")
	}
	if fake.Calls("PUT") != 0 {
		t.Error("nothing should be written")
	}
}

func TestListPosts(t *testing.T) {
	srv, fake := testServer(t)
	fake.Seed("posts/a.md", "---\ntitle: \"A\"\ndate: \"2024-01-01T00:00:00.000Z\"\n---\n\na")
	fake.Seed("posts/b.md", "---\ntitle: \"B\"\ndate: \"2024-02-01T00:00:00.000Z\"\n---\n\nb")

	r := callTool(t, srv, "list_posts", map[string]any{})
	var list []postSummary
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 || list[0].Slug != "b" || list[1].Title != "A" {
		t.Errorf("list = %+v", list)
	}
}

func TestUpdateDiffDelete(t *testing.T) {
	srv, fake := testServer(t)
	fake.Seed("posts/p.md", "---\ntitle: \"P\"\ndate: \"2023-01-01T00:00:00.000Z\"\n---\n\nold")

	args := map[string]any{"slug": "p", "title": "P", "content": "new"}
	r := callTool(t, srv, "diff_post", args)
	if text := resultText(r); !strings.Contains(text, "-old") || !strings.Contains(text, "+new") {
		t.Errorf("diff = %q", text)
	}
	if fake.Calls("PUT") != 0 {
		t.Error("diff must not write")
	}

	r = callTool(t, srv, "update_post", args)
	if text := resultText(r); text != "updated: p" {
		t.Fatalf("update = %q", text)
	}
	content, _ := fake.File("posts/p.md")
	if !strings.Contains(content, `date: "2023-01-01T00:00:00.000Z"`) || !strings.Contains(content, "updatedAt:") {
		t.Errorf("updated file = %q", content)
	}

	r = callTool(t, srv, "delete_post", map[string]any{"slug": "p"})
	if text := resultText(r); text != "deleted: p" {
		t.Errorf("delete = %q", text)
	}
	r = callTool(t, srv, "delete_post", map[string]any{"slug": "p"})
	if !r.IsError || resultText(r) != "post not found: p" {
		t.Errorf("second delete = %q", resultText(r))
	}
}

func TestToolsRegistered(t *testing.T) {
	srv, _ := testServer(t)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	data, err := json.Marshal(srv.mcp.HandleMessage(context.Background(), msg))
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	var resp struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				InputSchema struct {
					Properties map[string]any `json:"properties"`
					Required   []string       `json:"required"`
				} `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, data)
	}

	required := map[string][]string{
		"create_post": {"title", "content"},
		"update_post": {"slug", "title", "content"},
		"diff_post":   {"slug", "title", "content"},
	}
	seen := map[string]bool{}
	for _, tool := range resp.Result.Tools {
		seen[tool.Name] = true
		want, ok := required[tool.Name]
		if !ok {
			continue
		}
		if tool.Description == "" {
			t.Errorf("%s has no description", tool.Name)
		}
		if _, ok := tool.InputSchema.Properties["metaDescription"]; !ok {
			t.Errorf("%s is missing the post fields: %v", tool.Name, tool.InputSchema.Properties)
		}
		for _, field := range want {
			found := false
			for _, r := range tool.InputSchema.Required {
				found = found || r == field
			}
			if !found {
				t.Errorf("%s: %q not required (required = %v)", tool.Name, field, tool.InputSchema.Required)
			}
		}
	}
	for _, name := range []string{"list_posts", "get_post", "create_post", "update_post", "diff_post", "delete_post", "get_post_format"} {
		if !seen[name] {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestGetPostMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_post", map[string]any{"slug": "nope"})
	if !r.IsError {
		t.Error("expected error for missing post")
	}
}

func TestPostFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_post_format", nil)
	if !strings.Contains(resultText(r), "# Quill Post Format") {
		t.Errorf("format = %q", resultText(r))
	}

	contents, err := srv.readPostFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != PostFormatURI || tc.Text != PostFormatContract {
		t.Errorf("resource = %+v", contents[0])
	}
}
