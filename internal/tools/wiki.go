package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const wikiLookupSchema = `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search term, e.g. a mob, block, or item name"}
  },
  "required": ["query"]
}`

type wikiLookupArgs struct {
	Query string `json:"query"`
}

// mediaWikiSearchResponse is the subset of the MediaWiki "action=query&
// list=search" response this tool reads.
type mediaWikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// WikiLookupTool is a second, collaborator-shaped tool demonstrating a
// stateless HTTP-backed capability alongside the connection-scoped
// run_minecraft_command RPC tool: it looks up a short snippet from the
// Minecraft Wiki's public MediaWiki search API.
type WikiLookupTool struct {
	client  *http.Client
	baseURL string
}

// NewWikiLookupTool returns a tool querying baseURL (a MediaWiki
// "api.php" endpoint); an empty baseURL defaults to the Minecraft Wiki.
func NewWikiLookupTool(client *http.Client, baseURL string) *WikiLookupTool {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://minecraft.wiki/api.php"
	}
	return &WikiLookupTool{client: client, baseURL: baseURL}
}

func (t *WikiLookupTool) Name() string { return "minecraft_wiki_lookup" }

func (t *WikiLookupTool) Description() string {
	return "Searches the Minecraft Wiki and returns a short snippet for the best-matching article."
}

func (t *WikiLookupTool) Schema() json.RawMessage {
	return json.RawMessage(wikiLookupSchema)
}

func (t *WikiLookupTool) Execute(ctx context.Context, connID string, params json.RawMessage) (*Result, error) {
	var args wikiLookupArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return &Result{Content: "missing required argument: query", IsError: true}, nil
	}

	reqURL := t.baseURL + "?" + url.Values{
		"action": {"query"},
		"list":   {"search"},
		"srsearch": {args.Query},
		"format": {"json"},
		"srlimit": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &Result{Content: fmt.Sprintf("building request: %v", err), IsError: true}, nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &Result{Content: fmt.Sprintf("wiki lookup failed: %v", err), IsError: true}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{Content: fmt.Sprintf("reading wiki response: %v", err), IsError: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return &Result{Content: fmt.Sprintf("wiki lookup returned status %d", resp.StatusCode), IsError: true}, nil
	}

	var parsed mediaWikiSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &Result{Content: fmt.Sprintf("decoding wiki response: %v", err), IsError: true}, nil
	}
	if len(parsed.Query.Search) == 0 {
		return &Result{Content: fmt.Sprintf("no wiki article found for %q", args.Query)}, nil
	}

	best := parsed.Query.Search[0]
	snippet := stripWikiMarkup(best.Snippet)
	return &Result{Content: fmt.Sprintf("%s: %s", best.Title, snippet)}, nil
}

// stripWikiMarkup removes MediaWiki search-snippet highlight tags.
func stripWikiMarkup(s string) string {
	replacer := strings.NewReplacer(
		`<span class="searchmatch">`, "",
		"</span>", "",
		"&quot;", `"`,
		"&amp;", "&",
	)
	return replacer.Replace(s)
}
