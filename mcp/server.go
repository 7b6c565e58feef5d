// Package mcp exposes the policy pipeline over the Model Context Protocol so
// external agent hosts can call policy search as a tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/youthlab/policyrag/pipeline"
	"github.com/youthlab/policyrag/pkg/logging"
	"github.com/youthlab/policyrag/session"
)

// sessionTTL bounds how long an idle MCP conversation is kept.
const sessionTTL = 30 * time.Minute

// NewServer builds an MCP server wrapping the given pipeline. Repeated calls
// with the same session_id continue one conversation.
func NewServer(p *pipeline.Pipeline) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "policyrag",
		Version: "0.1.0",
		Title:   "청년정책 검색 서버",
	}, nil)

	sessions := session.NewManager(p, sessionTTL)
	addPolicySearchTool(server, sessions)
	addSupportedCategoriesTool(server)

	return server
}

func addPolicySearchTool(server *mcp.Server, sessions *session.Manager) {
	logger := logging.WithComponent("mcp")

	type args struct {
		Question  string `json:"question" jsonschema:"자연어 질문 (주거/일자리 청년정책 관련)"`
		SessionID string `json:"session_id,omitempty" jsonschema:"Optional session identifier for history tracking"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "policy_search",
		Description: "청년 주거/일자리 정책 질문에 대한 맞춤 답변과 선정 정책 목록을 반환합니다",
	}, func(ctx context.Context, req *mcp.CallToolRequest, a args) (*mcp.CallToolResult, any, error) {
		question := strings.TrimSpace(a.Question)
		if question == "" {
			return nil, nil, fmt.Errorf("question is required")
		}

		sessionID := a.SessionID
		if sessionID == "" {
			sessionID = "mcp"
		}

		result, err := sessions.Run(ctx, sessionID, question)
		if err != nil {
			logger.Error("policy_search tool run failed", "error", err)
			return nil, nil, err
		}

		content := []mcp.Content{&mcp.TextContent{Text: result.Response}}
		if len(result.Selected) > 0 {
			selected, err := json.Marshal(result.Selected)
			if err == nil {
				content = append(content, &mcp.TextContent{Text: string(selected)})
			}
		}

		return &mcp.CallToolResult{Content: content}, nil, nil
	})
}

func addSupportedCategoriesTool(server *mcp.Server) {
	type args struct{}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "supported_categories",
		Description: "이 서버가 답변할 수 있는 정책 분야를 나열합니다",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ args) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "주거, 일자리, 일반"},
			},
		}, nil, nil
	})
}
