package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
	"github.com/Sumatoshi-tech/blockaudit/pkg/blocks"
	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
	"github.com/Sumatoshi-tech/blockaudit/pkg/report"
)

// Tool names.
const (
	ToolNameAudit = "blockaudit_audit"
	ToolNameParse = "block_parse"
)

// MaxContentBytes is the largest markup accepted by the parse tool (1 MB).
const MaxContentBytes = 1 << 20

// NoResultsMessage is returned when an audit finds nothing after the cursor.
const NoResultsMessage = "No results. Call again with rewind=true to reset the cursor."

// Sentinel errors for tool input validation.
var (
	ErrNoStore         = errors.New("audit tool has no document store")
	ErrEmptyContent    = errors.New("content parameter is required and must not be empty")
	ErrContentTooLarge = errors.New("content exceeds maximum size")
)

const (
	auditToolDescription = "Count block usage across stored documents added since the previous call " +
		"with the same filters. Returns one row per block type with counts, an example URL, " +
		"categories and details."

	parseToolDescription = "Parse serialized block markup and return every block, nested ones " +
		"included, in document order."
)

// AuditInput is the input schema for the blockaudit_audit tool.
type AuditInput struct {
	Filters []string `json:"filters,omitempty"  jsonschema:"document filters as key=value[,value...]; keys: category status author"`
	OrderBy string   `json:"order_by,omitempty" jsonschema:"row order: name count or post_count (default name)"`
	Rewind  bool     `json:"rewind,omitempty"   jsonschema:"reset the cursor for these filters instead of auditing"`
}

// ParseInput is the input schema for the block_parse tool.
type ParseInput struct {
	Content string `json:"content" jsonschema:"serialized block markup"`
}

// ParsedBlock is one entry of the parse tool result.
type ParsedBlock struct {
	Name  string         `json:"name"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// ToolOutput is the structured output of every tool.
type ToolOutput struct {
	Data any `json:"data"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func textResult(text string, data any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}, ToolOutput{Data: data}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return textResult(string(data), value)
}

func (s *Server) handleAudit(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input AuditInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) { //nolint:whitespace // multi-line signature.
	filters, err := query.Parse(input.Filters)
	if err != nil {
		return errorResult(err)
	}

	orderBy, err := audit.ParseOrderBy(input.OrderBy)
	if err != nil {
		return errorResult(err)
	}

	if s.audit.Docs == nil || s.audit.Cursors == nil {
		return errorResult(ErrNoStore)
	}

	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	rep, err := audit.Run(ctx, s.audit, audit.Request{Filters: filters, OrderBy: orderBy, Rewind: input.Rewind})

	switch {
	case errors.Is(err, audit.ErrNoResults):
		return textResult(NoResultsMessage, json.RawMessage("[]"))
	case err != nil:
		return errorResult(err)
	case rep.Rewound:
		return textResult("Cursor reset for "+filters.String(), map[string]bool{"rewound": true})
	}

	var buf bytes.Buffer

	err = report.Render(&buf, report.FormatJSON, rep.Result)
	if err != nil {
		return errorResult(err)
	}

	rows := bytes.TrimSpace(buf.Bytes())

	return textResult(string(rows), json.RawMessage(rows))
}

func handleParse(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input ParseInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) { //nolint:whitespace // multi-line signature.
	if input.Content == "" {
		return errorResult(ErrEmptyContent)
	}

	if len(input.Content) > MaxContentBytes {
		return errorResult(fmt.Errorf("%w: %d bytes (max %d)", ErrContentTooLarge, len(input.Content), MaxContentBytes))
	}

	root, err := blocks.Parse(input.Content)
	if err != nil {
		return errorResult(err)
	}

	flat := blocks.Flatten(root)
	out := make([]ParsedBlock, 0, len(flat))

	for _, b := range flat {
		out = append(out, ParsedBlock{Name: b.Name, Attrs: b.Attrs})
	}

	return jsonResult(out)
}
