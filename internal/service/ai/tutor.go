package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"tutorgo/internal/config"
	"tutorgo/internal/models"
	"tutorgo/internal/tutor"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

const tutorPersona = `You are a patient, encouraging tutor. Explain concepts step by step, check understanding with a short question when useful, and never just hand over answers to graded homework.
Use the student's recent lessons, quizzes and conversations below to pitch the explanation at the right level and to connect new ideas to what they already studied.`

// TutorService answers student messages. With tools it runs a ReAct agent.
type TutorService struct {
	model  model.ToolCallingChatModel
	agent  *react.Agent
	logger *slog.Logger
}

// NewTutorService wraps chatModel. tools may be empty.
func NewTutorService(ctx context.Context, chatModel model.ToolCallingChatModel, tools []tool.BaseTool, logger *slog.Logger) (*TutorService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TutorService{model: chatModel, logger: logger}
	if len(tools) > 0 {
		agent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: tools,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
		s.agent = agent
	}
	return s, nil
}

// Respond implements tutor.Endpoint.
func (s *TutorService) Respond(ctx context.Context, req tutor.Request) (tutor.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
	defer cancel()
	ctx = WithToolUser(ctx, req.StudentID)

	msgs, err := buildTutorMessages(req)
	if err != nil {
		return tutor.Response{}, err
	}

	var out *schema.Message
	if s.agent != nil {
		out, err = s.agent.Generate(ctx, msgs)
	} else {
		out, err = s.model.Generate(ctx, msgs)
	}
	if err != nil {
		return tutor.Response{}, fmt.Errorf("generate tutor reply: %w", err)
	}
	if out == nil {
		return tutor.Response{}, nil
	}
	return tutor.Response{Text: strings.TrimSpace(out.Content)}, nil
}

func buildTutorMessages(req tutor.Request) ([]*schema.Message, error) {
	learning, err := json.Marshal(req.LearningHistory)
	if err != nil {
		return nil, fmt.Errorf("encode learning history: %w", err)
	}

	var sys strings.Builder
	sys.WriteString(tutorPersona)
	sys.WriteString("\n\n")
	if p := req.UserProfile; p != nil {
		name := p.FullName
		if name == "" {
			name = p.Username
		}
		fmt.Fprintf(&sys, "Student: %s (role: %s)\n", name, p.Role)
	}
	if req.TrackID != "" {
		fmt.Fprintf(&sys, "Active track: %s\n", req.TrackID)
	}
	sys.WriteString("Learning history (JSON):\n")
	sys.Write(learning)

	msgs := make([]*schema.Message, 0, len(req.MessageHistory)+2)
	msgs = append(msgs, schema.SystemMessage(sys.String()))
	for _, m := range req.MessageHistory {
		switch m.Role {
		case models.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		case models.RoleSystem:
			msgs = append(msgs, schema.SystemMessage(m.Content))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}
	msgs = append(msgs, schema.UserMessage(req.Message))
	return msgs, nil
}
